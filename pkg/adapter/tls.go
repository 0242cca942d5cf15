package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// TLSConfig builds a client TLS configuration from descriptor SSL settings.
// It returns nil when TLS is disabled.
func TLSConfig(ssl *core.SSLConfig, serverName string) (*tls.Config, error) {
	if ssl == nil || !ssl.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if ssl.CAPath != "" {
		pem, err := os.ReadFile(ssl.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", ssl.CAPath)
		}
		cfg.RootCAs = pool
	}

	if ssl.CertPath != "" || ssl.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(ssl.CertPath, ssl.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
