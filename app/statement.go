package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// FilterClause is a single WHERE comparison this engine can evaluate:
// column <op> literal. Anything richer (subqueries, joins, column-to-column
// comparisons) is rejected as unsupported at parse time.
type FilterClause struct {
	Column   string
	Operator string
	Value    Value
}

// SelectQuery is the narrow statement shape the executor understands,
// extracted from a *sqlparser.Select: a single table, a column or COUNT(*)
// projection, and zero or more ANDed equality/inequality filters.
type SelectQuery struct {
	TableName      string
	ColumnsToSelect []string
	IsCountStar    bool
	Filters        []FilterClause
}

// FilterColumns returns the distinct columns referenced by the query's
// filters, in order of first appearance.
func (q *SelectQuery) FilterColumns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range q.Filters {
		if !seen[f.Column] {
			seen[f.Column] = true
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// ParseSelect parses sql via the project's SQL tokenizer and lowers the
// result into a SelectQuery. Only a single un-starred table reference, a
// column list or COUNT(*), and a flat AND-chain of comparisons are
// supported; anything richer surfaces ErrUnsupportedStatement.
func ParseSelect(sql string) (*SelectQuery, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": err.Error(),
		})
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": fmt.Sprintf("statement type %T is not a SELECT", stmt),
		})
	}

	tableName, err := extractTableName(sel)
	if err != nil {
		return nil, err
	}

	query := &SelectQuery{TableName: tableName}

	for _, expr := range sel.SelectExprs {
		switch e := expr.(type) {
		case *sqlparser.StarExpr:
			return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
				"reason": "SELECT * is not supported, name columns explicitly",
			})
		case *sqlparser.AliasedExpr:
			switch inner := e.Expr.(type) {
			case *sqlparser.FuncExpr:
				name := strings.ToLower(inner.Name.String())
				if name != "count" {
					return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
						"reason": "unsupported function: " + name,
					})
				}
				query.IsCountStar = true
			case *sqlparser.ColName:
				query.ColumnsToSelect = append(query.ColumnsToSelect, inner.Name.String())
			default:
				return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
					"reason": fmt.Sprintf("unsupported select expression %T", inner),
				})
			}
		default:
			return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
				"reason": fmt.Sprintf("unsupported select expression %T", e),
			})
		}
	}

	if query.IsCountStar && len(query.ColumnsToSelect) > 0 {
		return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": "cannot mix COUNT(*) with column projections",
		})
	}

	if sel.Where != nil {
		filters, err := extractFilters(sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		query.Filters = filters
	}

	return query, nil
}

func extractTableName(sel *sqlparser.Select) (string, error) {
	if len(sel.From) != 1 {
		return "", NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": "exactly one table reference is required",
		})
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": fmt.Sprintf("unsupported FROM expression %T", sel.From[0]),
		})
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": "FROM expression is not a plain table name",
		})
	}
	return tableName.Name.String(), nil
}

// extractFilters flattens a chain of AND expressions into comparison
// clauses. OR, parentheses, and anything but a column-vs-literal comparison
// fall outside the supported filter grammar.
func extractFilters(expr sqlparser.Expr) ([]FilterClause, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		left, err := extractFilters(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := extractFilters(e.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *sqlparser.ComparisonExpr:
		clause, err := extractComparison(e)
		if err != nil {
			return nil, err
		}
		return []FilterClause{clause}, nil
	default:
		return nil, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": fmt.Sprintf("unsupported WHERE expression %T", expr),
		})
	}
}

func extractComparison(comp *sqlparser.ComparisonExpr) (FilterClause, error) {
	colName, ok := comp.Left.(*sqlparser.ColName)
	if !ok {
		return FilterClause{}, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": "left side of a WHERE comparison must be a column",
		})
	}

	value, err := extractLiteral(comp.Right)
	if err != nil {
		return FilterClause{}, err
	}

	return FilterClause{
		Column:   colName.Name.String(),
		Operator: comp.Operator,
		Value:    value,
	}, nil
}

func extractLiteral(expr sqlparser.Expr) (Value, error) {
	sqlVal, ok := expr.(*sqlparser.SQLVal)
	if !ok {
		return Value{}, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": fmt.Sprintf("right side of a WHERE comparison must be a literal, got %T", expr),
		})
	}

	switch sqlVal.Type {
	case sqlparser.IntVal:
		n, err := strconv.ParseInt(string(sqlVal.Val), 10, 64)
		if err != nil {
			return Value{}, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
				"reason": "malformed integer literal",
			})
		}
		return Value{Kind: KindInteger, Integer: n}, nil
	case sqlparser.StrVal:
		return Value{Kind: KindText, Bytes: sqlVal.Val}, nil
	default:
		return Value{}, NewDatabaseError("parse_select", ErrUnsupportedStatement, map[string]interface{}{
			"reason": "floating point and other literal kinds are not supported",
		})
	}
}
