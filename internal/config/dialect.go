package config

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
)

// dialect captures the per-driver differences the resource store cares
// about: driver name, placeholder style, identifier quoting and column types.
type dialect struct {
	name       string
	driver     string
	bindType   int
	quote      func(string) string
	seqColumn  string
	keyType    string
	textType   string
	intType    string
	boolType   string
	jsonType   string
	singleConn bool
	// createGuard wraps a CREATE TABLE statement for backends without
	// CREATE TABLE IF NOT EXISTS. Nil means the statement carries the
	// IF NOT EXISTS clause itself.
	createGuard func(table, stmt string) string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:       "sqlite",
		driver:     "sqlite",
		bindType:   sqlx.QUESTION,
		quote:      query.PostgresQuote,
		seqColumn:  "seq INTEGER PRIMARY KEY AUTOINCREMENT",
		keyType:    "TEXT",
		textType:   "TEXT",
		intType:    "INTEGER",
		boolType:   "INTEGER",
		jsonType:   "TEXT",
		singleConn: true,
	},
	"postgres": {
		name:      "postgres",
		driver:    "pgx",
		bindType:  sqlx.DOLLAR,
		quote:     query.PostgresQuote,
		seqColumn: "seq BIGSERIAL PRIMARY KEY",
		keyType:   "VARCHAR(255)",
		textType:  "TEXT",
		intType:   "BIGINT",
		boolType:  "BOOLEAN",
		jsonType:  "TEXT",
	},
	"mysql": {
		name:      "mysql",
		driver:    "mysql",
		bindType:  sqlx.QUESTION,
		quote:     query.MySQLQuote,
		seqColumn: "seq BIGINT AUTO_INCREMENT PRIMARY KEY",
		keyType:   "VARCHAR(255)",
		textType:  "TEXT",
		intType:   "BIGINT",
		boolType:  "BOOLEAN",
		jsonType:  "LONGTEXT",
	},
	"mssql": {
		name:      "mssql",
		driver:    "sqlserver",
		bindType:  sqlx.AT,
		quote:     query.MSSQLQuote,
		seqColumn: "seq BIGINT IDENTITY(1,1) PRIMARY KEY",
		keyType:   "NVARCHAR(255)",
		textType:  "NVARCHAR(MAX)",
		intType:   "BIGINT",
		boolType:  "BIT",
		jsonType:  "NVARCHAR(MAX)",
		createGuard: func(table, stmt string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", table, stmt)
		},
	},
}

// SupportedDrivers lists the storage drivers accepted in storage.driver.
func SupportedDrivers() []string {
	return []string{"sqlite", "postgres", "mysql", "mssql"}
}

func lookupDialect(driver string) (dialect, error) {
	if driver == "" {
		driver = "sqlite"
	}
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedDriver, driver, strings.Join(SupportedDrivers(), ", "))
	}
	return d, nil
}

func (d dialect) columnType(f model.Field) string {
	switch f.Type {
	case model.FieldKey:
		return d.keyType
	case model.FieldInt:
		return d.intType
	case model.FieldBool:
		return d.boolType
	case model.FieldJSON:
		return d.jsonType
	default:
		return d.textType
	}
}

func (d dialect) rebind(q string) string {
	return sqlx.Rebind(d.bindType, q)
}
