package mysql

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ConnectionConfig
		wantNet  string
		wantAddr string
		wantUser string
		wantPass string
		wantDB   string
		wantTLS  string
	}{
		{
			name: "TCP connection with all fields",
			cfg: ConnectionConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "secret",
				Database: "mydb",
			},
			wantNet:  "tcp",
			wantAddr: "localhost:3306",
			wantUser: "root",
			wantPass: "secret",
			wantDB:   "mydb",
		},
		{
			name: "TCP connection without database",
			cfg: ConnectionConfig{
				Host:     "192.168.1.100",
				Port:     3307,
				User:     "admin",
				Password: "pass123",
			},
			wantNet:  "tcp",
			wantAddr: "192.168.1.100:3307",
			wantUser: "admin",
			wantPass: "pass123",
			wantDB:   "information_schema",
		},
		{
			name: "Unix socket connection",
			cfg: ConnectionConfig{
				Socket:   "/var/run/mysqld/mysqld.sock",
				Host:     "ignored",
				User:     "app",
				Password: "apppass",
			},
			wantNet:  "unix",
			wantAddr: "/var/run/mysqld/mysqld.sock",
			wantUser: "app",
			wantPass: "apppass",
			wantDB:   "information_schema",
		},
		{
			name: "Empty password",
			cfg: ConnectionConfig{
				Host: "localhost",
				Port: 3306,
				User: "readonly",
			},
			wantNet:  "tcp",
			wantAddr: "localhost:3306",
			wantUser: "readonly",
			wantDB:   "information_schema",
		},
		{
			name: "Special characters in password",
			cfg: ConnectionConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "p@ss:w0rd!",
			},
			wantNet:  "tcp",
			wantAddr: "localhost:3306",
			wantUser: "user",
			wantPass: "p@ss:w0rd!",
			wantDB:   "information_schema",
		},
		{
			name: "IPv6 host",
			cfg: ConnectionConfig{
				Host: "::1",
				Port: 3306,
				User: "root",
			},
			wantNet:  "tcp",
			wantAddr: "[::1]:3306",
			wantUser: "root",
			wantDB:   "information_schema",
		},
		{
			name: "TLS required",
			cfg: ConnectionConfig{
				Host:    "db.example.com",
				Port:    3306,
				User:    "root",
				TLSMode: "required",
			},
			wantNet:  "tcp",
			wantAddr: "db.example.com:3306",
			wantUser: "root",
			wantDB:   "information_schema",
			wantTLS:  "true",
		},
		{
			name: "TLS skip-verify",
			cfg: ConnectionConfig{
				Host:    "db.example.com",
				Port:    3306,
				User:    "root",
				TLSMode: "skip-verify",
			},
			wantNet:  "tcp",
			wantAddr: "db.example.com:3306",
			wantUser: "root",
			wantDB:   "information_schema",
			wantTLS:  "skip-verify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v", err)
			}
			got, err := mysqldriver.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("ParseDSN(%q) error = %v", dsn, err)
			}
			if got.Net != tt.wantNet {
				t.Errorf("Net = %q, want %q", got.Net, tt.wantNet)
			}
			if got.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", got.Addr, tt.wantAddr)
			}
			if got.User != tt.wantUser {
				t.Errorf("User = %q, want %q", got.User, tt.wantUser)
			}
			if got.Passwd != tt.wantPass {
				t.Errorf("Passwd = %q, want %q", got.Passwd, tt.wantPass)
			}
			if got.DBName != tt.wantDB {
				t.Errorf("DBName = %q, want %q", got.DBName, tt.wantDB)
			}
			if got.TLSConfig != tt.wantTLS {
				t.Errorf("TLSConfig = %q, want %q", got.TLSConfig, tt.wantTLS)
			}
			if !got.InterpolateParams {
				t.Error("InterpolateParams should be enabled")
			}
		})
	}
}

func TestBuildDSN_InvalidTLSMode(t *testing.T) {
	_, err := buildDSN(ConnectionConfig{Host: "localhost", Port: 3306, TLSMode: "sometimes"})
	if err == nil {
		t.Fatal("expected error for invalid TLS mode")
	}
	if !strings.Contains(err.Error(), "sometimes") {
		t.Errorf("error should name the mode, got: %v", err)
	}
}

func TestBuildDSN_Cleartext(t *testing.T) {
	dsn, err := buildDSN(ConnectionConfig{Host: "h", Port: 3306, User: "u", AllowCleartext: true})
	if err != nil {
		t.Fatalf("buildDSN() error = %v", err)
	}
	got, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN() error = %v", err)
	}
	if !got.AllowCleartextPasswords {
		t.Errorf("AllowCleartextPasswords not set in %q", dsn)
	}
}

func TestConnectionConfig_Addr(t *testing.T) {
	if got := (ConnectionConfig{Host: "localhost", Port: 3306}).Addr(); got != "localhost:3306" {
		t.Errorf("Addr() = %q", got)
	}
	if got := (ConnectionConfig{Host: "localhost", Port: 3306, Socket: "/tmp/mysql.sock"}).Addr(); got != "/tmp/mysql.sock" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestDescribeError(t *testing.T) {
	denied := &mysqldriver.MySQLError{Number: 1045, Message: "Access denied for user 'root'@'localhost'"}

	err := describeError(fmt.Errorf("ping: %w", denied))
	if !strings.Contains(err.Error(), "MYSQL_PWD") {
		t.Errorf("access denied should mention MYSQL_PWD, got: %v", err)
	}
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		t.Error("driver error should stay reachable with errors.As")
	}

	other := errors.New("connection refused")
	if got := describeError(other); got != other {
		t.Errorf("unrelated errors should pass through, got: %v", got)
	}
}

func TestConnect_CustomTLSRequiresCA(t *testing.T) {
	_, err := Connect(t.Context(), ConnectionConfig{Host: "localhost", Port: 3306, TLSMode: "custom"})
	if err == nil || !strings.Contains(err.Error(), "--tls-ca") {
		t.Errorf("Connect() error = %v, want --tls-ca hint", err)
	}
}

// Note: Connect against a live server is covered by the integration tests.
