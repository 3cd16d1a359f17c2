package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUndefinedTable     = "42P01"
	mysqlNoSuchTable     = 1146
	sqliteNoSuchTableMsg = "no such table"
)

// IsMissingTable reports whether err is the store saying a queried table
// does not exist.
func IsMissingTable(err error) bool {
	_, ok := MissingTable(err)
	return ok
}

// IsMissingTableNamed reports whether err is the store saying that table
// does not exist. Any other missing table does not match.
func IsMissingTableNamed(err error, table string) bool {
	name, ok := MissingTable(err)
	return ok && strings.EqualFold(name, table)
}

// MissingTable classifies err as a missing-table error and returns the
// unqualified table name when the store reports one.
func MissingTable(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUndefinedTable {
			return "", false
		}
		if pgErr.TableName != "" {
			return pgErr.TableName, true
		}
		// relation "public.customers" does not exist
		return unqualified(between(pgErr.Message, `"`, `"`)), true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != mysqlNoSuchTable {
			return "", false
		}
		// Table 'crm.customers' doesn't exist
		return unqualified(between(myErr.Message, "'", "'")), true
	}

	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), sqliteNoSuchTableMsg)
	if idx < 0 {
		return "", false
	}
	// no such table: main.customers
	rest := strings.TrimPrefix(strings.TrimSpace(msg[idx+len(sqliteNoSuchTableMsg):]), ":")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", true
	}
	return unqualified(fields[0]), true
}

func between(s, open, close string) string {
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	s = s[start+len(open):]
	end := strings.Index(s, close)
	if end < 0 {
		return ""
	}
	return s[:end]
}

func unqualified(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
