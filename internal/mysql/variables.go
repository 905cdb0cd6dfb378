package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrReadOnly is returned by Preflight when DDL would be executed against a
// server that refuses writes.
var ErrReadOnly = errors.New("server is read-only")

var (
	auroraVersionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.mysql_aurora\.(\d+\.\d+\.\d+)`)
	versionRe       = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
)

// ServerVersion represents a parsed MySQL version.
type ServerVersion struct {
	Raw           string // e.g. "8.0.35-27-Percona XtraDB Cluster"
	Major         int
	Minor         int
	Patch         int
	Flavor        string // "mysql", "percona", "percona-xtradb-cluster", "mariadb", "aurora-mysql"
	AuroraVersion string
}

// String returns a human-readable version string.
func (v ServerVersion) String() string {
	if v.AuroraVersion != "" {
		return fmt.Sprintf("%d.%d (aurora-mysql %s)", v.Major, v.Minor, v.AuroraVersion)
	}
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

// AtLeast returns true if the server version is >= the given version.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// SupportsCollation reports whether the server knows the named utf8mb4
// collation. The UCA 9.0.0 collations (utf8mb4_0900_*) arrived in MySQL 8.0
// and do not exist in MariaDB.
func (v ServerVersion) SupportsCollation(collation string) bool {
	if !strings.HasPrefix(strings.ToLower(collation), "utf8mb4_0900_") {
		return true
	}
	return v.Flavor != "mariadb" && v.AtLeast(8, 0, 0)
}

// GetServerVersion queries and parses the MySQL server version.
func GetServerVersion(ctx context.Context, db *sql.DB) (ServerVersion, error) {
	var raw string
	err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw)
	if err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

// ParseVersion parses a MySQL version string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	// Aurora versions have no numeric patch, so check them first.
	if m := auroraVersionRe.FindStringSubmatch(raw); len(m) >= 4 {
		v.Major, _ = strconv.Atoi(m[1])
		v.Minor, _ = strconv.Atoi(m[2])
		v.Flavor = "aurora-mysql"
		v.AuroraVersion = m[3]
		return v, nil
	}

	matches := versionRe.FindStringSubmatch(raw)
	if len(matches) < 4 {
		return v, fmt.Errorf("could not parse version: %s", raw)
	}

	v.Major, _ = strconv.Atoi(matches[1])
	v.Minor, _ = strconv.Atoi(matches[2])
	v.Patch, _ = strconv.Atoi(matches[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona xtradb cluster"):
		v.Flavor = "percona-xtradb-cluster"
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}

	return v, nil
}

// GetVariable reads a single global MySQL variable.
// Returns the value, or empty string if the variable doesn't exist.
func GetVariable(ctx context.Context, db *sql.DB, name string) (string, error) {
	return showGlobal(ctx, db, "VARIABLES", name)
}

// GetStatus reads a single MySQL global status variable.
func GetStatus(ctx context.Context, db *sql.DB, name string) (string, error) {
	return showGlobal(ctx, db, "STATUS", name)
}

func showGlobal(ctx context.Context, db *sql.DB, kind, name string) (string, error) {
	var varName, value sql.NullString

	// Escape the variable name for LIKE clause
	escapedName := strings.ReplaceAll(name, "_", "\\_")
	escapedName = strings.ReplaceAll(escapedName, "%", "\\%")

	// Note: SHOW commands don't support prepared statements in all MySQL drivers
	query := fmt.Sprintf("SHOW GLOBAL %s LIKE '%s'", kind, escapedName)
	err := db.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query failed: %w", err)
	}
	if !value.Valid {
		return "", nil
	}
	return value.String, nil
}

// ServerInfo is what Preflight learned about the server.
type ServerInfo struct {
	Version       ServerVersion
	ReadOnly      bool
	SuperReadOnly bool
}

// Preflight reads the server version and, when the run will execute DDL,
// refuses to continue against a read-only server.
func Preflight(ctx context.Context, db *sql.DB, willWrite bool) (*ServerInfo, error) {
	version, err := GetServerVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	info := &ServerInfo{Version: version}
	if !willWrite {
		return info, nil
	}

	ro, err := GetVariable(ctx, db, "read_only")
	if err != nil {
		return nil, fmt.Errorf("reading read_only: %w", err)
	}
	info.ReadOnly = ro == "ON"

	sro, err := GetVariable(ctx, db, "super_read_only")
	if err != nil {
		return nil, fmt.Errorf("reading super_read_only: %w", err)
	}
	info.SuperReadOnly = sro == "ON"

	if info.ReadOnly || info.SuperReadOnly {
		return info, fmt.Errorf("%w: read_only=%s super_read_only=%s", ErrReadOnly, onOff(info.ReadOnly), onOff(info.SuperReadOnly))
	}
	return info, nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
