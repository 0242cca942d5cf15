package tree

import (
	"context"
	"fmt"
	"strings"
)

// Find walks from the connection nodes down the given path, expanding nodes
// as needed. Each segment matches a node name or label, exactly first and
// then case-insensitively.
func Find(ctx context.Context, roots []*Node, path ...string) (*Node, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	candidates := roots
	var found *Node
	for i, seg := range path {
		found = match(candidates, seg)
		if found == nil {
			return nil, fmt.Errorf("%q not found under %s", seg, strings.Join(path[:i], "/"))
		}
		if found.Kind == KindInfo {
			return nil, found.Err
		}
		if i < len(path)-1 {
			candidates = found.Children(ctx, false)
			if len(candidates) == 1 && candidates[0].Kind == KindInfo {
				return nil, candidates[0].Err
			}
		}
	}
	return found, nil
}

func match(nodes []*Node, seg string) *Node {
	for _, n := range nodes {
		if n.Name == seg || n.label == seg {
			return n
		}
	}
	for _, n := range nodes {
		if strings.EqualFold(n.Name, seg) || strings.EqualFold(n.label, seg) {
			return n
		}
	}
	return nil
}
