package config

import (
	"os"
	"regexp"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func ExpandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// ExpandConnectionEnvVars expands environment variables in the fields of a
// descriptor that usually carry secrets or deployment-specific addresses.
func ExpandConnectionEnvVars(d *core.Descriptor) {
	if d == nil {
		return
	}
	d.Host = ExpandEnvVars(d.Host)
	d.Socket = ExpandEnvVars(d.Socket)
	d.User = ExpandEnvVars(d.User)
	d.Password = ExpandEnvVars(d.Password)
	d.Database = ExpandEnvVars(d.Database)
	if d.SSH != nil {
		d.SSH.Host = ExpandEnvVars(d.SSH.Host)
		d.SSH.User = ExpandEnvVars(d.SSH.User)
		d.SSH.Password = ExpandEnvVars(d.SSH.Password)
		d.SSH.Passphrase = ExpandEnvVars(d.SSH.Passphrase)
		d.SSH.PrivateKeyPath = ExpandEnvVars(d.SSH.PrivateKeyPath)
	}
}
