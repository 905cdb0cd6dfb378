package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// ER_ACCESS_DENIED_ERROR
const errAccessDenied = 1045

// ConnectionConfig holds MySQL connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Socket   string
	TLSMode  string // "", "disabled", "preferred", "required", "skip-verify", "custom"
	TLSCA    string // path to CA certificate file (required when TLSMode == "custom")

	// AllowCleartext is required for RDS IAM tokens.
	AllowCleartext bool
}

// Addr returns host:port, or the socket path for socket connections.
func (c ConnectionConfig) Addr() string {
	if c.Socket != "" {
		return c.Socket
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Connect opens the single connection a conversion run uses and verifies it.
// The caller owns the returned handle and must Close it.
func Connect(ctx context.Context, cfg ConnectionConfig) (*sql.DB, error) {
	if cfg.TLSMode == "custom" {
		if cfg.TLSCA == "" {
			return nil, fmt.Errorf("--tls-ca is required when --tls=custom")
		}
		if err := registerCustomTLS(cfg.TLSCA); err != nil {
			return nil, fmt.Errorf("TLS setup failed: %w", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	// Every statement of a run goes through the same session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", describeError(err))
	}

	return db, nil
}

// registerCustomTLS reads a CA certificate PEM file and registers it as a named TLS config.
func registerCustomTLS(caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate %q: %w", caPath, err)
	}

	rootCAs := x509.NewCertPool()
	if !rootCAs.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no valid certificates found in %q", caPath)
	}

	return mysqldriver.RegisterTLSConfig("utf8mb4-convert-custom", &tls.Config{
		RootCAs: rootCAs,
	})
}

func buildDSN(cfg ConnectionConfig) (string, error) {
	c := mysqldriver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	if cfg.Socket != "" {
		c.Net = "unix"
		c.Addr = cfg.Socket
	} else {
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	c.DBName = cfg.Database
	if c.DBName == "" {
		c.DBName = "information_schema"
	}
	c.InterpolateParams = true
	c.AllowCleartextPasswords = cfg.AllowCleartext

	switch cfg.TLSMode {
	case "", "disabled":
	case "preferred":
		c.TLSConfig = "preferred"
	case "required":
		c.TLSConfig = "true"
	case "skip-verify":
		c.TLSConfig = "skip-verify"
	case "custom":
		c.TLSConfig = "utf8mb4-convert-custom"
	default:
		return "", fmt.Errorf("invalid TLS mode %q: valid values are disabled, preferred, required, skip-verify, custom", cfg.TLSMode)
	}

	return c.FormatDSN(), nil
}

// describeError adds a hint to driver errors a user can act on.
func describeError(err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errAccessDenied {
		return fmt.Errorf("%w (check --user, --password or MYSQL_PWD)", err)
	}
	return err
}
