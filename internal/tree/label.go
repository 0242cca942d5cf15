package tree

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/pkg/core"
)

// connectionLabels derives the label and description of a connection node.
// The address reads host@port, or sshHost@sshPort when tunneled. With a name
// set, preferConnectionName decides which of the two is the label.
func connectionLabels(d core.Descriptor, family core.Family, s config.Settings) (label, description string) {
	addr := address(d, family)
	label, description = addr, d.Name
	if d.Name != "" && s.PreferConnectionName {
		label, description = d.Name, addr
	}
	if d.Disabled {
		description = strings.TrimSpace(description + " closed")
	}
	return label, description
}

func address(d core.Descriptor, family core.Family) string {
	if d.UsingSSH() {
		port := d.SSH.Port
		if port == 0 {
			port = 22
		}
		return fmt.Sprintf("%s@%d", d.SSH.Host, port)
	}
	if d.Socket != "" {
		return filepath.Base(d.Socket)
	}
	host := d.Host
	if family == core.FamilySearch {
		host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	}
	if d.Port == 0 {
		return host
	}
	return fmt.Sprintf("%s@%d", host, d.Port)
}
