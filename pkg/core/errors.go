package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes surfaced by the connection layer.
// Transport and session failures are returned to the caller and never
// retried inside LeapDB; callers decide retry policy.
var (
	// ErrConnectTimeout is returned when no liveness acknowledgment arrives
	// within the descriptor's connect timeout.
	ErrConnectTimeout = errors.New("leapdb: connect timed out")

	// ErrAuthentication is returned when the backend rejects the credentials.
	ErrAuthentication = errors.New("leapdb: authentication failed")

	// ErrTransport is returned when the SSH tunnel could not be established.
	ErrTransport = errors.New("leapdb: transport failure")

	// ErrBackendUnavailable is returned when the backend cannot be reached or
	// does not answer a ping after connecting.
	ErrBackendUnavailable = errors.New("leapdb: backend unavailable")

	// ErrUnsupportedOperation is returned when a backend mode cannot perform an
	// operation, such as raw command passthrough on a cluster.
	ErrUnsupportedOperation = errors.New("leapdb: unsupported operation")

	// ErrInvalidConfirmation marks a destructive action whose typed
	// confirmation did not match. It is treated as a cancellation.
	ErrInvalidConfirmation = errors.New("leapdb: confirmation does not match")

	// ErrCacheMiss is internal: a node cache is empty and must be recomputed.
	ErrCacheMiss = errors.New("leapdb: cache miss")
)

// IsConnectTimeoutErr returns true if err is or wraps ErrConnectTimeout.
func IsConnectTimeoutErr(err error) bool {
	return errors.Is(err, ErrConnectTimeout)
}

// IsAuthenticationErr returns true if err is or wraps ErrAuthentication.
func IsAuthenticationErr(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsTransportErr returns true if err is or wraps ErrTransport.
func IsTransportErr(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsBackendUnavailableErr returns true if err is or wraps ErrBackendUnavailable.
func IsBackendUnavailableErr(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsUnsupportedOperationErr returns true if err is or wraps ErrUnsupportedOperation.
func IsUnsupportedOperationErr(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// ConnectError ties a connect failure to the identity it was raised for.
type ConnectError struct {
	Identity Identity
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Identity, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Describe renders an error as a short human-readable message for users.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConnectTimeoutErr(err):
		return "Connection timed out. Check that the server is reachable and the port is open."
	case IsAuthenticationErr(err):
		return "Authentication failed. Check the user name and password."
	case IsTransportErr(err):
		return fmt.Sprintf("Could not open the SSH tunnel: %v", err)
	case IsBackendUnavailableErr(err):
		return fmt.Sprintf("Server unavailable: %v", err)
	case IsUnsupportedOperationErr(err):
		return "This operation is not supported for this connection."
	default:
		return err.Error()
	}
}
