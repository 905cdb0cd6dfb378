package mysql

import "strings"

// QuoteIdentifier wraps a database, table or column name in backticks,
// doubling any backtick inside it.
func QuoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\x00", `\0`, "\n", `\n`, "\r", `\r`)

// QuoteLiteral renders s as a single-quoted string literal.
func QuoteLiteral(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}
