package parser

import (
	"fmt"
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

// DDLOperation classifies a conversion statement.
type DDLOperation string

const (
	AlterDatabase  DDLOperation = "ALTER_DATABASE"
	ChangeEngine   DDLOperation = "CHANGE_ENGINE"
	ChangeCharset  DDLOperation = "CHANGE_CHARSET"  // ALTER TABLE ... DEFAULT CHARACTER SET ... (table default only)
	ConvertCharset DDLOperation = "CONVERT_CHARSET" // ALTER TABLE ... CONVERT TO CHARACTER SET ... (rewrites all columns)
	ModifyColumn   DDLOperation = "MODIFY_COLUMN"
	OtherDDL       DDLOperation = "OTHER"
)

// ParsedDDL holds what we read back from a generated statement.
type ParsedDDL struct {
	Op        DDLOperation
	Database  string
	Table     string
	Column    string
	Charset   string // lowercase
	Collation string // lowercase
	Engine    string // lowercase
	NotNull   bool
}

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// Classify returns the operation a statement performs, or OtherDDL with an
// error when it cannot be parsed.
func Classify(sql string) (DDLOperation, error) {
	parsed, err := Parse(sql)
	if err != nil {
		return OtherDDL, err
	}
	return parsed.Op, nil
}

// Parse parses a single ALTER DATABASE or ALTER TABLE statement.
func Parse(sql string) (*ParsedDDL, error) {
	sql = strings.TrimRight(strings.TrimSpace(sql), ";")

	p, err := getParser()
	if err != nil {
		return nil, fmt.Errorf("creating parser: %w", err)
	}

	stmt, err := p.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	result := &ParsedDDL{Op: OtherDDL}

	switch s := stmt.(type) {
	case *sqlparser.AlterDatabase:
		result.Op = AlterDatabase
		result.Database = s.DBName.String()
		for _, opt := range s.AlterOptions {
			switch opt.Type {
			case sqlparser.CharacterSetType:
				result.Charset = strings.ToLower(opt.Value)
			case sqlparser.CollateType:
				result.Collation = strings.ToLower(opt.Value)
			}
		}

	case *sqlparser.AlterTable:
		result.Database = s.Table.Qualifier.String()
		result.Table = s.Table.Name.String()
		if len(s.AlterOptions) == 1 {
			classifyAlterOption(s.AlterOptions[0], result)
		}
	}

	return result, nil
}

func classifyAlterOption(opt sqlparser.AlterOption, result *ParsedDDL) {
	switch opt := opt.(type) {
	case *sqlparser.AlterCharset:
		result.Op = ConvertCharset
		result.Charset = strings.ToLower(opt.CharacterSet)
		result.Collation = strings.ToLower(opt.Collate)

	case *sqlparser.ModifyColumn:
		result.Op = ModifyColumn
		col := opt.NewColDefinition
		result.Column = col.Name.String()
		if col.Type != nil {
			result.Charset = strings.ToLower(col.Type.Charset.Name)
			if col.Type.Options != nil {
				result.Collation = strings.ToLower(col.Type.Options.Collate)
				result.NotNull = col.Type.Options.Null != nil && !*col.Type.Options.Null
			}
		}

	case sqlparser.TableOptions:
		for _, tableOpt := range opt {
			name := strings.ToUpper(tableOpt.Name)
			switch {
			case name == "ENGINE":
				result.Op = ChangeEngine
				result.Engine = strings.ToLower(tableOpt.String)
			case strings.Contains(name, "CHARSET") || strings.Contains(name, "CHARACTER SET"):
				result.Op = ChangeCharset
				result.Charset = strings.ToLower(tableOpt.String)
			case strings.Contains(name, "COLLATE"):
				result.Collation = strings.ToLower(tableOpt.String)
			}
		}
	}
}
