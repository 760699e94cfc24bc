package main

import (
	"context"
	"fmt"
	"os"
)

// Usage: litequery <database file> <.dot-command | SELECT statement>
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: litequery <database file> <command>")
		os.Exit(1)
	}

	databaseFilePath := os.Args[1]
	command := os.Args[2]

	ctx := context.Background()

	db, err := OpenDatabase(ctx, databaseFilePath, WithMaxConcurrency(8), WithValidation(ValidationBasic))
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}
	defer db.Close()

	engine := NewEngine(db)
	output, err := engine.Run(ctx, command)
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// reportFailure prints the failing operation and the offending entity to
// stderr, unwrapping a DatabaseError for its context when present.
func reportFailure(err error) {
	if dbErr, ok := err.(*DatabaseError); ok {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", dbErr.Operation, dbErr.Err)
		if len(dbErr.Context) > 0 {
			fmt.Fprintf(os.Stderr, "  context: %+v\n", dbErr.Context)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
