package conn

import (
	"fmt"
	"strings"
)

// Dialect identifies a SQL vendor. It only covers the two things statement
// building needs from a vendor: how to qualify a table name with its schema
// and what parameter placeholders look like.
type Dialect int

const (
	Generic Dialect = iota
	MySQL
	Postgres
	SQLServer
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLServer:
		return "sqlserver"
	default:
		return "generic"
	}
}

// Placeholder returns the parameter placeholder for the n-th bind position,
// 1-based. Postgres uses numbered placeholders, everyone else uses '?'.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QualifyTable joins a schema and table name the way the vendor expects.
// SQL Server interposes the dbo owner segment between schema and table.
// An empty schema yields the bare table name.
func (d Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return table
	}
	if d == SQLServer {
		return schema + ".dbo." + table
	}
	return schema + "." + table
}

// ParseDialect maps a vendor name to a Dialect. Unknown names map to Generic.
func ParseDialect(name string) Dialect {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL
	case "postgres", "postgresql", "pgx", "pq":
		return Postgres
	case "sqlserver", "mssql":
		return SQLServer
	default:
		return Generic
	}
}
