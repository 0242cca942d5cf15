// Package core defines the shared language of the LeapDB system.
//
// This package contains:
//   - Backend families and connection descriptors (Family, Descriptor, SSHConfig)
//   - Connection identities used to deduplicate live sessions (Identity)
//   - Adapter configuration and query results (AdapterConfig, Result)
//   - Identifier quoting configuration shared by dialects (IdentifierConfig)
//   - The error taxonomy surfaced by the connection and tunnel layers
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
