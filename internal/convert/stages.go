package convert

import (
	"fmt"

	"github.com/nethalo/utf8mb4-convert/internal/mysql"
)

// Stage names, in pipeline order.
const (
	StageDatabases      = "databases"
	StageMyISAM         = "myisam"
	StageTables         = "tables"
	StageProblemColumns = "problem-columns"
	StageColumns        = "columns"
)

// DatabasesQuery selects databases whose default charset needs converting.
func DatabasesQuery(o Options) Query {
	where := []Predicate{
		In{Column: "SCHEMA_NAME", Values: o.SkipDatabases, Negate: true},
	}
	if len(o.LimitDatabases) > 0 {
		where = append(where, In{Column: "SCHEMA_NAME", Values: o.LimitDatabases})
	}
	where = append(where, In{Column: "DEFAULT_CHARACTER_SET_NAME", Values: o.Charsets()})

	return Query{
		Columns: []string{"SCHEMA_NAME"},
		From:    "information_schema.SCHEMATA",
		Where:   where,
	}
}

// MyISAMTablesQuery selects MyISAM tables to move to InnoDB.
func MyISAMTablesQuery(o Options) Query {
	where := []Predicate{
		Equals{Column: "ENGINE", Value: "MyISAM"},
		In{Column: "TABLE_SCHEMA", Values: o.SkipDatabases, Negate: true},
	}
	if len(o.LimitDatabases) > 0 {
		where = append(where, In{Column: "TABLE_SCHEMA", Values: o.LimitDatabases})
	}
	where = append(where, tableExclusions(o, "TABLE_SCHEMA", "TABLE_NAME")...)

	return Query{
		Columns: []string{"TABLE_SCHEMA", "TABLE_NAME"},
		From:    "information_schema.TABLES",
		Where:   where,
	}
}

// TablesQuery selects base tables whose collation belongs to a charset being
// converted. Views are excluded.
func TablesQuery(o Options) Query {
	where := []Predicate{
		In{Column: "T.TABLE_SCHEMA", Values: o.SkipDatabases, Negate: true},
	}
	where = append(where, tableExclusions(o, "T.TABLE_SCHEMA", "T.TABLE_NAME")...)
	if len(o.LimitDatabases) > 0 {
		where = append(where, In{Column: "T.TABLE_SCHEMA", Values: o.LimitDatabases})
	}
	where = append(where,
		In{Column: "CCSA.CHARACTER_SET_NAME", Values: o.Charsets()},
		Equals{Column: "T.TABLE_TYPE", Value: "BASE TABLE"},
	)

	return Query{
		Columns: []string{"T.TABLE_SCHEMA", "T.TABLE_NAME"},
		From:    "information_schema.COLLATION_CHARACTER_SET_APPLICABILITY CCSA",
		Joins: []Join{{
			Table: "information_schema.TABLES T",
			On:    []On{{"CCSA.COLLATION_NAME", "T.TABLE_COLLATION"}},
		}},
		Where: where,
	}
}

// ProblemColumnsQuery selects indexed columns whose index prefix will not fit
// once the column holds 4-byte characters.
func ProblemColumnsQuery(o Options) Query {
	where := columnFilter(o)
	where = append(where, AnyOf{
		AllOf{
			IsNull{Column: "S.SUB_PART"},
			GreaterThan{Column: "C.CHARACTER_MAXIMUM_LENGTH", Value: MaxIndexPrefix},
		},
		GreaterThan{Column: "S.SUB_PART", Value: MaxIndexPrefix},
	})

	return Query{
		Columns: []string{
			"S.INDEX_NAME",
			"S.INDEX_TYPE",
			"C.TABLE_SCHEMA",
			"C.TABLE_NAME",
			"C.COLUMN_NAME",
			"C.DATA_TYPE",
			"C.CHARACTER_MAXIMUM_LENGTH",
			"S.SUB_PART",
		},
		From: "information_schema.COLUMNS C",
		Joins: []Join{{
			Table: "information_schema.STATISTICS S",
			On: []On{
				{"C.TABLE_SCHEMA", "S.TABLE_SCHEMA"},
				{"C.TABLE_NAME", "S.TABLE_NAME"},
				{"C.COLUMN_NAME", "S.COLUMN_NAME"},
			},
		}},
		Where:   where,
		OrderBy: []string{"C.TABLE_SCHEMA ASC", "C.TABLE_NAME ASC", "S.INDEX_NAME ASC"},
	}
}

// ColumnsQuery selects every column stored in a charset being converted.
func ColumnsQuery(o Options) Query {
	return Query{
		Columns: []string{
			"C.TABLE_SCHEMA",
			"C.TABLE_NAME",
			"C.COLUMN_NAME",
			"C.COLUMN_TYPE",
			"C.IS_NULLABLE",
		},
		From:    "information_schema.COLUMNS C",
		Where:   columnFilter(o),
		OrderBy: []string{"C.TABLE_SCHEMA ASC", "C.TABLE_NAME ASC", "C.ORDINAL_POSITION ASC"},
	}
}

// columnFilter is shared by the problem-column check and the column stage.
func columnFilter(o Options) []Predicate {
	where := []Predicate{
		In{Column: "C.TABLE_SCHEMA", Values: o.SkipDatabases, Negate: true},
		In{Column: "C.CHARACTER_SET_NAME", Values: o.Charsets()},
	}
	where = append(where, tableExclusions(o, "C.TABLE_SCHEMA", "C.TABLE_NAME")...)
	for _, c := range o.SkipColumns {
		where = append(where, Exclude{
			{Column: "C.TABLE_SCHEMA", Value: c.Database},
			{Column: "C.TABLE_NAME", Value: c.Table},
			{Column: "C.COLUMN_NAME", Value: c.Column},
		})
	}
	if len(o.LimitDatabases) > 0 {
		where = append(where, In{Column: "C.TABLE_SCHEMA", Values: o.LimitDatabases})
	}
	return where
}

func tableExclusions(o Options, schemaCol, tableCol string) []Predicate {
	var where []Predicate
	for _, t := range o.SkipTables {
		where = append(where, Exclude{
			{Column: schemaCol, Value: t.Database},
			{Column: tableCol, Value: t.Table},
		})
	}
	return where
}

// DatabaseRow is a row of DatabasesQuery.
type DatabaseRow struct {
	Schema string
}

// TableRow is a row of MyISAMTablesQuery or TablesQuery.
type TableRow struct {
	Schema string
	Table  string
}

// ColumnRow is a row of ColumnsQuery.
type ColumnRow struct {
	Schema     string
	Table      string
	Column     string
	ColumnType string // verbatim COLUMN_TYPE, e.g. "varchar(50)"
	IsNullable string // "YES" or "NO"
}

// ProblemColumn is a row of ProblemColumnsQuery.
type ProblemColumn struct {
	IndexName string
	IndexType string
	Schema    string
	Table     string
	Column    string
	DataType  string
	MaxLength *int64
	SubPart   *int64
}

// PrefixLength is the indexed length that triggered the warning.
func (p ProblemColumn) PrefixLength() int64 {
	if p.SubPart != nil {
		return *p.SubPart
	}
	if p.MaxLength != nil {
		return *p.MaxLength
	}
	return 0
}

// String formats the column the way it appears in the problem report.
func (p ProblemColumn) String() string {
	return fmt.Sprintf("%s.%s.%s (%s %s %d)",
		mysql.QuoteIdentifier(p.Schema),
		mysql.QuoteIdentifier(p.Table),
		mysql.QuoteIdentifier(p.Column),
		mysql.QuoteIdentifier(p.IndexName),
		p.IndexType,
		p.PrefixLength())
}

func qualified(schema, table string) string {
	return mysql.QuoteIdentifier(schema) + "." + mysql.QuoteIdentifier(table)
}

// AlterDatabaseDDL changes a database's default charset and collation.
func AlterDatabaseDDL(db, collation string) string {
	return fmt.Sprintf("ALTER DATABASE %s CHARACTER SET = %s COLLATE = %s",
		mysql.QuoteIdentifier(db), TargetCharset, collation)
}

// EngineDDL moves a table to InnoDB.
func EngineDDL(t TableRow) string {
	return fmt.Sprintf("ALTER TABLE %s ENGINE=InnoDB", qualified(t.Schema, t.Table))
}

// ConvertTableDDL rewrites a table and all of its columns in one statement.
func ConvertTableDDL(t TableRow, collation string) string {
	return fmt.Sprintf("ALTER TABLE %s CONVERT TO CHARACTER SET %s COLLATE %s",
		qualified(t.Schema, t.Table), TargetCharset, collation)
}

// TableDefaultDDL changes only the default charset used for new columns.
func TableDefaultDDL(t TableRow, collation string) string {
	return fmt.Sprintf("ALTER TABLE %s DEFAULT CHARACTER SET %s COLLATE %s",
		qualified(t.Schema, t.Table), TargetCharset, collation)
}

// ModifyColumnDDL re-declares a column with its original type and nullability.
// ColumnType is copied verbatim, so enum and set members keep their spacing.
func ModifyColumnDDL(c ColumnRow, collation string) string {
	ddl := fmt.Sprintf("ALTER TABLE %s MODIFY %s %s CHARACTER SET %s COLLATE %s",
		qualified(c.Schema, c.Table), mysql.QuoteIdentifier(c.Column), c.ColumnType,
		TargetCharset, collation)
	if c.IsNullable == "NO" {
		ddl += " NOT NULL"
	}
	return ddl
}
