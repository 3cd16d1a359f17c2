package repository

import (
	"fmt"
	"strings"
)

// Dialect identifies the SQL variant of the connected store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ListSeparator joins aggregated values in every dialect, so decoding does
// not depend on the store.
const ListSeparator = ","

// likeEscape is accepted as a LIKE escape character by all supported dialects.
const likeEscape = "!"

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported sql dialect %q", name)
}

func (d Dialect) String() string {
	return string(d)
}

// Concat joins SQL expressions into one string expression.
func (d Dialect) Concat(parts ...string) string {
	if d == MySQL {
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	}
	return "(" + strings.Join(parts, " || ") + ")"
}

// AsText casts an expression to the dialect's string type.
func (d Dialect) AsText(expr string) string {
	if d == MySQL {
		return "CAST(" + expr + " AS CHAR)"
	}
	return "CAST(" + expr + " AS TEXT)"
}

// AggregateDistinct collapses the distinct non-null values of expr per group
// into one ListSeparator-delimited string. MySQL cuts the result at
// group_concat_max_len without an error; ConnectDB raises it per connection,
// and a result longer than that still loses its tail.
func (d Dialect) AggregateDistinct(expr string) string {
	switch d {
	case Postgres:
		return "STRING_AGG(DISTINCT " + expr + ", '" + ListSeparator + "')"
	case MySQL:
		return "GROUP_CONCAT(DISTINCT " + expr + " SEPARATOR '" + ListSeparator + "')"
	default:
		// SQLite does not accept a custom separator together with DISTINCT;
		// its default separator is ListSeparator.
		return "GROUP_CONCAT(DISTINCT " + expr + ")"
	}
}

// ContainsPredicate returns a case-insensitive substring predicate for col
// and the bind value that goes with it.
func (d Dialect) ContainsPredicate(col, needle string) (string, string) {
	return "LOWER(" + col + ") LIKE ? ESCAPE '" + likeEscape + "'", containsPattern(needle)
}

func containsPattern(needle string) string {
	escaped := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	).Replace(strings.ToLower(needle))
	return "%" + escaped + "%"
}
