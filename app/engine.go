package main

import (
	"context"
	"fmt"
	"strings"
)

// Engine dispatches the narrow command surface this program accepts: the
// dot-commands .dbinfo and .tables, and SELECT statements.
type Engine struct {
	db *Database
}

// NewEngine wraps an already-opened Database.
func NewEngine(db *Database) *Engine {
	return &Engine{db: db}
}

// Run dispatches command, returning the text to print to stdout.
func (e *Engine) Run(ctx context.Context, command string) (string, error) {
	trimmed := strings.TrimSpace(command)
	switch {
	case trimmed == ".dbinfo":
		return e.dbInfo(), nil
	case trimmed == ".tables":
		return e.tables(), nil
	case strings.HasPrefix(trimmed, "."):
		return "", NewDatabaseError("run", ErrUnsupportedStatement, map[string]interface{}{
			"command": trimmed,
		})
	default:
		return e.selectStatement(ctx, trimmed)
	}
}

// dbInfo reports the table count, matching the .dbinfo dot-command's
// single-line output.
func (e *Engine) dbInfo() string {
	return fmt.Sprintf("number of tables: %d", len(e.db.schema.Order))
}

// tables lists table names in on-disk sqlite_schema order, space-separated,
// matching the .tables dot-command.
func (e *Engine) tables() string {
	return strings.Join(e.db.schema.Order, " ")
}

// selectStatement parses and executes a SELECT statement, rendering its
// result the way the CLI prints rows: COUNT(*) as a bare number, otherwise
// one pipe-separated line per row.
func (e *Engine) selectStatement(ctx context.Context, sql string) (string, error) {
	query, err := ParseSelect(sql)
	if err != nil {
		return "", err
	}

	result, err := e.db.Execute(ctx, query)
	if err != nil {
		return "", err
	}

	return result.String(), nil
}
