package convert

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TargetCharset is the character set every converted object ends up with.
	TargetCharset = "utf8mb4"
	// DefaultCollation is used unless Options.Collation overrides it.
	DefaultCollation = "utf8mb4_0900_ai_ci"
	// MaxIndexPrefix is the longest index prefix, in characters, that stays within
	// the 767-byte key limit once a column is widened to 4 bytes per character.
	MaxIndexPrefix = 191
)

// SystemSchemas are never converted.
var SystemSchemas = []string{
	"information_schema",
	"mysql",
	"performance_schema",
	"sys",
}

// ErrInvalidSkipSpec is returned for a --skip value that is not db[.table[.column]].
var ErrInvalidSkipSpec = errors.New("invalid skip spec")

// TableRef identifies a table within a database.
type TableRef struct {
	Database string
	Table    string
}

// ColumnRef identifies a column within a table.
type ColumnRef struct {
	Database string
	Table    string
	Column   string
}

// SkipSpec is a parsed --skip value. Table and Column are empty when the spec
// names a coarser object.
type SkipSpec struct {
	Database string
	Table    string
	Column   string
}

// ParseSkipSpec parses "db", "db.table" or "db.table.column".
func ParseSkipSpec(spec string) (SkipSpec, error) {
	if spec == "" {
		return SkipSpec{}, fmt.Errorf("%w: %q", ErrInvalidSkipSpec, spec)
	}
	parts := strings.Split(spec, ".")
	if len(parts) > 3 {
		return SkipSpec{}, fmt.Errorf("%w: %q", ErrInvalidSkipSpec, spec)
	}
	for _, p := range parts {
		if p == "" {
			return SkipSpec{}, fmt.Errorf("%w: %q", ErrInvalidSkipSpec, spec)
		}
	}

	s := SkipSpec{Database: parts[0]}
	if len(parts) > 1 {
		s.Table = parts[1]
	}
	if len(parts) > 2 {
		s.Column = parts[2]
	}
	return s, nil
}

// Options is the immutable configuration for a conversion run. Build it with
// NewOptions once flag parsing is complete.
type Options struct {
	SkipDatabases  []string
	SkipTables     []TableRef
	SkipColumns    []ColumnRef
	LimitDatabases []string

	Collation      string
	MakeItSo       bool
	ForceLatin1    bool
	BulkTable      bool
	MyISAMToInnoDB bool
}

// Settings are the raw user choices NewOptions turns into Options.
type Settings struct {
	Skip           []string
	Limit          []string
	Collation      string
	MakeItSo       bool
	ForceLatin1    bool
	BulkTable      bool
	MyISAMToInnoDB bool
}

// NewOptions validates every skip spec and routes it to the database, table
// or column skip list. Nothing is returned if any spec is invalid.
func NewOptions(s Settings) (Options, error) {
	o := Options{
		SkipDatabases:  append([]string(nil), SystemSchemas...),
		LimitDatabases: append([]string(nil), s.Limit...),
		Collation:      s.Collation,
		MakeItSo:       s.MakeItSo,
		ForceLatin1:    s.ForceLatin1,
		BulkTable:      s.BulkTable,
		MyISAMToInnoDB: s.MyISAMToInnoDB,
	}
	if o.Collation == "" {
		o.Collation = DefaultCollation
	}

	for _, raw := range s.Skip {
		spec, err := ParseSkipSpec(raw)
		if err != nil {
			return Options{}, err
		}
		switch {
		case spec.Column != "":
			o.SkipColumns = append(o.SkipColumns, ColumnRef{spec.Database, spec.Table, spec.Column})
		case spec.Table != "":
			o.SkipTables = append(o.SkipTables, TableRef{spec.Database, spec.Table})
		default:
			o.SkipDatabases = append(o.SkipDatabases, spec.Database)
		}
	}
	return o, nil
}

// Charsets returns the source character sets selected for conversion.
func (o Options) Charsets() []string {
	if o.ForceLatin1 {
		return []string{"utf8", "latin1", "utf8mb3"}
	}
	return []string{"utf8", "utf8mb3"}
}
