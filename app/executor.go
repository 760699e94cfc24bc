package main

import (
	"context"
	"fmt"
)

// QueryResult is a realized SELECT result: the projected column names and
// the rows, already filtered, in the order the executor produced them.
type QueryResult struct {
	Columns []string
	Rows    [][]Value
	Count   int
	IsCount bool
}

// Execute runs a parsed SelectQuery against db, choosing a plan via the
// query optimizer and applying any filters the plan didn't already satisfy
// through an index seek.
func (db *Database) Execute(ctx context.Context, query *SelectQuery) (*QueryResult, error) {
	optimizer := NewQueryOptimizer(db.schema)
	plan, err := optimizer.Plan(query)
	if err != nil {
		return nil, err
	}

	if query.IsCountStar && len(query.Filters) == 0 {
		count, err := db.fastCount(plan.Table)
		if err != nil {
			return nil, err
		}
		return &QueryResult{IsCount: true, Count: count}, nil
	}

	records, err := db.fetchRecords(ctx, plan)
	if err != nil {
		return nil, err
	}

	records, err = applyFilters(records, plan.RemainingFilters)
	if err != nil {
		return nil, err
	}

	if query.IsCountStar {
		return &QueryResult{IsCount: true, Count: len(records)}, nil
	}

	for _, col := range query.ColumnsToSelect {
		if !tableHasColumn(plan.Table, col) {
			return nil, NewDatabaseError("execute", ErrColumnNotFound, map[string]interface{}{
				"table":  plan.Table.Name,
				"column": col,
			})
		}
	}

	rows := make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, len(query.ColumnsToSelect))
		for j, col := range query.ColumnsToSelect {
			row[j] = rec.Get(col)
		}
		rows[i] = row
	}

	return &QueryResult{Columns: query.ColumnsToSelect, Rows: rows}, nil
}

func tableHasColumn(table *Table, name string) bool {
	for _, c := range table.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// fastCount returns a table's row count without decoding rows, when the
// table's root page is itself a leaf. Root pages with children are counted
// by a full scan instead, since an interior page's CellCount tallies child
// pointers rather than rows.
func (db *Database) fastCount(table *Table) (int, error) {
	root, err := db.ReadPage(table.RootPage)
	if err != nil {
		return 0, err
	}
	if n, ok := db.rowCount(root); ok {
		return n, nil
	}

	records, err := db.fullScanPageNamed(context.Background(), root, table.Columns, table.Name)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// fetchRecords reads every record the plan's strategy selects: an index
// seek's rowids, projected as id-only records (see recordsFromRowids), or
// every row from a full scan of the table B-tree.
func (db *Database) fetchRecords(ctx context.Context, plan *QueryPlan) ([]*Record, error) {
	if plan.UseIndex {
		indexRoot, err := db.ReadPage(plan.Index.RootPage)
		if err != nil {
			return nil, err
		}

		rowids, err := db.seekIndex(ctx, indexRoot, plan.Index, plan.IndexSeekValue)
		if err != nil {
			return nil, err
		}

		return recordsFromRowids(rowids), nil
	}

	root, err := db.ReadPage(plan.Table.RootPage)
	if err != nil {
		return nil, err
	}
	return db.fullScanPageNamed(ctx, root, plan.Table.Columns, plan.Table.Name)
}

// recordsFromRowids builds the record set an index seek produces: only the
// rowid is available, exposed as the column named "id". Selecting any other
// column yields NULL through Record.Get, matching read_rows_using_index's
// Record(column_names_to_values={'id': rowid}) — a known limitation, not a
// bug, left in place rather than resolved with a second table scan.
func recordsFromRowids(rowids []int64) []*Record {
	records := make([]*Record, len(rowids))
	for i, id := range rowids {
		records[i] = &Record{Rowid: id, byName: map[string]Value{
			"id": {Kind: KindInteger, Integer: id},
		}}
	}
	return records
}

// applyFilters keeps only the records that satisfy every remaining filter.
func applyFilters(records []*Record, filters []FilterClause) ([]*Record, error) {
	if len(filters) == 0 {
		return records, nil
	}

	kept := make([]*Record, 0, len(records))
	for _, rec := range records {
		match := true
		for _, f := range filters {
			ok, err := evaluateFilter(rec, f)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

func evaluateFilter(rec *Record, f FilterClause) (bool, error) {
	value := rec.Get(f.Column)
	cmp := compareValues(value, f.Value)

	switch f.Operator {
	case "=":
		return cmp == 0, nil
	case "!=", "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, NewDatabaseError("evaluate_filter", ErrUnsupportedStatement, map[string]interface{}{
			"operator": f.Operator,
		})
	}
}

// FormatRow renders a row the way the CLI prints it: pipe-separated values,
// NULL as empty string.
func FormatRow(row []Value) string {
	out := ""
	for i, v := range row {
		if i > 0 {
			out += "|"
		}
		out += v.String()
	}
	return out
}

// String renders a QueryResult as the CLI prints it: a bare count for
// COUNT(*), otherwise one FormatRow line per row joined by newlines.
func (r *QueryResult) String() string {
	if r.IsCount {
		return fmt.Sprintf("%d", r.Count)
	}
	out := ""
	for i, row := range r.Rows {
		if i > 0 {
			out += "\n"
		}
		out += FormatRow(row)
	}
	return out
}
