package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	mydialect "github.com/leapstack-labs/leapdb/pkg/dialects/mysql"
)

// Params holds MySQL-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	Charset         string `mapstructure:"charset"`
	Collation       string `mapstructure:"collation"`
	AllowCleartext  bool   `mapstructure:"allow_cleartext_passwords"`
	AllowNativePass *bool  `mapstructure:"allow_native_passwords"`
}

// Adapter implements the adapter.Adapter interface for MySQL and MariaDB.
type Adapter struct {
	adapter.BaseSQLAdapter

	flavor string
	tlsKey string
}

// New creates a new adapter for the given flavor ("mysql" or "mariadb").
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger, flavor string) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: adapter.DiscardLogger(logger)},
		flavor:         flavor,
	}
}

// Dialect returns the MySQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	if a.flavor == "mariadb" {
		return mydialect.MariaDB
	}
	return mydialect.MySQL
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}

	mc, err := a.buildConfig(cfg, params)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to mysql", slog.String("addr", mc.Addr), slog.String("database", mc.DBName))
	if err := a.Open(ctx, "mysql", mc.FormatDSN(), cfg); err != nil {
		a.deregisterTLS()
		return err
	}
	return nil
}

// buildConfig maps adapter settings onto the driver configuration.
func (a *Adapter) buildConfig(cfg adapter.Config, params Params) (*mysql.Config, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.Timeout
	if mc.Timeout <= 0 {
		mc.Timeout = defaultTimeout
	}
	mc.AllowCleartextPasswords = params.AllowCleartext
	if params.AllowNativePass != nil {
		mc.AllowNativePasswords = *params.AllowNativePass
	}
	if params.Collation != "" {
		mc.Collation = params.Collation
	}
	if params.Charset != "" {
		mc.Params = map[string]string{"charset": params.Charset}
	}

	if cfg.Path != "" {
		mc.Net = "unix"
		mc.Addr = cfg.Path
	} else {
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	tlsCfg, err := adapter.TLSConfig(cfg.SSL, cfg.Host)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		a.tlsKey = "leapdb-" + uuid.NewString()
		if err := mysql.RegisterTLSConfig(a.tlsKey, tlsCfg); err != nil {
			return nil, fmt.Errorf("failed to register TLS config: %w", err)
		}
		mc.TLSConfig = a.tlsKey
	}
	return mc, nil
}

func (a *Adapter) deregisterTLS() {
	if a.tlsKey != "" {
		mysql.DeregisterTLSConfig(a.tlsKey)
		a.tlsKey = ""
	}
}

// Close closes the pool and drops the registered TLS profile.
func (a *Adapter) Close() error {
	err := a.BaseSQLAdapter.Close()
	a.deregisterTLS()
	return err
}

// Version returns the server version.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	return a.QueryString(ctx, "SELECT VERSION()")
}

// defaultTimeout is used for the driver dial when none is configured.
const defaultTimeout = 5 * time.Second

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
