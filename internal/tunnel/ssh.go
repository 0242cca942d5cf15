package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client is the part of an SSH client a tunnel needs.
// *ssh.Client satisfies it.
type Client interface {
	Dial(network, addr string) (net.Conn, error)
	Close() error
}

// Dialer opens an authenticated SSH client.
type Dialer interface {
	Dial(ctx context.Context, cfg core.SSHConfig) (Client, error)
}

// SSHDialer dials real SSH servers with golang.org/x/crypto/ssh.
type SSHDialer struct {
	Logger *slog.Logger

	// KnownHosts verifies servers of configs that name no known_hosts file.
	// Empty means ~/.ssh/known_hosts.
	KnownHosts string
}

// Dial connects and performs the SSH handshake, bounded by the SSH timeout.
func (d SSHDialer) Dial(ctx context.Context, cfg core.SSHConfig) (Client, error) {
	hostKey, err := hostKeyCallback(cfg, d.KnownHosts, d.Logger)
	if err != nil {
		return nil, err
	}
	clientCfg, err := clientConfig(cfg, hostKey)
	if err != nil {
		return nil, err
	}

	addr := cfg.Address()
	nd := net.Dialer{Timeout: cfg.Timeout()}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(cfg.Timeout())
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// hostKeyCallback verifies against the config's known_hosts file, then the
// fallback file (~/.ssh/known_hosts when empty). With neither present host
// keys are not checked, and a warning says so.
func hostKeyCallback(cfg core.SSHConfig, fallback string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		return cb, nil
	}

	if fallback == "" {
		if home, err := os.UserHomeDir(); err == nil {
			fallback = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	if fallback != "" {
		if _, err := os.Stat(fallback); err == nil {
			cb, err := knownhosts.New(fallback)
			if err != nil {
				return nil, fmt.Errorf("failed to load known hosts: %w", err)
			}
			return cb, nil
		}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Warn("ssh host key verification disabled, no known_hosts file",
		slog.String("host", cfg.Address()))
	return ssh.InsecureIgnoreHostKey(), nil
}

func clientConfig(cfg core.SSHConfig, hostKey ssh.HostKeyCallback) (*ssh.ClientConfig, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout(),
	}, nil
}

func authMethods(cfg core.SSHConfig) ([]ssh.AuthMethod, error) {
	switch cfg.Auth {
	case core.SSHAuthPrivateKey:
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case core.SSHAuthPassword, "":
		password := cfg.Password
		// Servers that only offer keyboard-interactive get the password for every question.
		interactive := ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		})
		return []ssh.AuthMethod{ssh.Password(password), interactive}, nil
	default:
		return nil, fmt.Errorf("unsupported ssh auth method %q", cfg.Auth)
	}
}
