package main

// QueryPlan describes how the executor should satisfy a SelectQuery: either
// an index seek on a single equality filter, or a full table scan with the
// remaining filters applied in memory.
type QueryPlan struct {
	Table          *Table
	UseIndex       bool
	Index          *Index
	IndexSeekValue Value
	// RemainingFilters are the filters the executor still applies in
	// memory: for a full scan this is every filter; for an index seek it is
	// empty, so filters other than the one the seek satisfies are not
	// applied.
	RemainingFilters []FilterClause
}

// QueryOptimizer chooses between an index seek and a full scan for a
// resolved query.
type QueryOptimizer struct {
	schema *Schema
}

// NewQueryOptimizer creates an optimizer bound to the schema a Database has
// already resolved.
func NewQueryOptimizer(schema *Schema) *QueryOptimizer {
	return &QueryOptimizer{schema: schema}
}

// Plan resolves query's table and picks a strategy: an index seek is used
// only for a "=" filter on a column that is the sole key of one of the
// table's indexes; everything else falls back to a full scan.
func (qo *QueryOptimizer) Plan(query *SelectQuery) (*QueryPlan, error) {
	table, err := qo.schema.Resolve(query.TableName)
	if err != nil {
		return nil, err
	}

	plan := &QueryPlan{Table: table, RemainingFilters: query.Filters}

	for i, filter := range query.Filters {
		if filter.Operator != "=" {
			continue
		}
		index := table.FindIndexForColumn(filter.Column)
		if index == nil {
			continue
		}

		plan.UseIndex = true
		plan.Index = index
		plan.IndexSeekValue = filter.Value
		// An index seek only ever surfaces the rowid (see recordsFromRowids
		// in executor.go), so there is no column left to re-check any other
		// filter against; any remaining filter clauses are dropped, matching
		// execute_statement's behavior of never post-filtering an
		// index-backed read in original_source/app/main.py:149-150.
		plan.RemainingFilters = nil
		break
	}

	return plan, nil
}
