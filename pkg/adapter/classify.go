package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// authMarkers are fragments drivers put in authentication failures.
var authMarkers = []string{
	"password authentication failed",
	"sqlstate 28",
	"access denied",
	"authentication failed",
	"wrongpass",
	"noauth",
	"invalid username-password",
	"security_exception",
	"unable to authenticate",
	"login failed",
}

// Classify wraps a driver error with the matching core sentinel so callers
// can branch with core.Is*Err. Errors already classified are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case core.IsConnectTimeoutErr(err), core.IsAuthenticationErr(err),
		core.IsBackendUnavailableErr(err), core.IsTransportErr(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", core.ErrConnectTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", core.ErrAuthentication, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", core.ErrConnectTimeout, err)
		}
		return fmt.Errorf("%w: %w", core.ErrBackendUnavailable, err)
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return fmt.Errorf("%w: %w", core.ErrBackendUnavailable, err)
	}
	return err
}
