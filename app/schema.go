package main

import (
	"strings"
)

// sqliteSchemaRootPage is always page 1.
const sqliteSchemaRootPage = 1

// Column is one column of a table, derived by hand-splitting the column's
// CREATE TABLE statement rather than through a SQL parser, since DDL parsing
// falls outside the statement grammar the executor otherwise delegates.
type Column struct {
	Name         string
	IsPrimaryKey bool
}

// Table is a resolved entry from sqlite_schema with type = "table".
type Table struct {
	Name      string
	RootPage  int
	CreateSQL string
	Columns   []Column
	Indexes   []*Index
}

// Index is a resolved entry from sqlite_schema with type = "index".
type Index struct {
	Name       string
	TableName  string
	RootPage   int
	CreateSQL  string
	ColumnName string
}

// ColumnCount returns the number of columns the index is keyed on. Every
// index this engine resolves is single-column (CREATE INDEX ... (col)); the
// method exists so callers needn't hardcode the 1 and record.go's
// decodeIndexEntry generalizes cleanly if that ever changes.
func (idx *Index) ColumnCount() int {
	return 1
}

// schemaRow is one raw row of sqlite_schema, columns in file order.
type schemaRow struct {
	Type     string
	Name     string
	TblName  string
	RootPage int64
	SQL      string
}

// sqliteSchemaColumns is the fixed column order of the sqlite_schema table
// itself — it has no CREATE TABLE statement of its own to parse.
var sqliteSchemaColumns = []Column{
	{Name: "type"},
	{Name: "name"},
	{Name: "tbl_name"},
	{Name: "rootpage"},
	{Name: "sql"},
}

// parseSchemaRow converts a decoded Record from the sqlite_schema table into
// a schemaRow.
func parseSchemaRow(rec *Record) schemaRow {
	return schemaRow{
		Type:     rec.Get("type").String(),
		Name:     rec.Get("name").String(),
		TblName:  rec.Get("tbl_name").String(),
		RootPage: rec.Get("rootpage").Integer,
		SQL:      rec.Get("sql").String(),
	}
}

// Schema is the set of tables and indexes resolved from sqlite_schema,
// excluding the sqlite_sequence bookkeeping table.
type Schema struct {
	Tables  map[string]*Table
	Indexes map[string]*Index
	// Order preserves the on-disk cell-pointer order of sqlite_schema rows,
	// used to render .tables in file order rather than alphabetically.
	Order []string
}

// buildSchema groups raw sqlite_schema rows into resolved Table and Index
// entries, associating each index with its owning table.
func buildSchema(rows []schemaRow) (*Schema, error) {
	schema := &Schema{
		Tables:  make(map[string]*Table),
		Indexes: make(map[string]*Index),
	}

	for _, row := range rows {
		if row.TblName == "sqlite_sequence" {
			continue
		}
		switch row.Type {
		case "table":
			cols, err := parseTableColumns(row.SQL)
			if err != nil {
				return nil, NewDatabaseError("build_schema", err, map[string]interface{}{
					"table": row.Name,
				})
			}
			schema.Tables[row.Name] = &Table{
				Name:      row.Name,
				RootPage:  int(row.RootPage),
				CreateSQL: row.SQL,
				Columns:   cols,
			}
			schema.Order = append(schema.Order, row.Name)
		case "index":
			col, err := parseIndexColumn(row.SQL)
			if err != nil {
				return nil, NewDatabaseError("build_schema", err, map[string]interface{}{
					"index": row.Name,
				})
			}
			schema.Indexes[row.Name] = &Index{
				Name:       row.Name,
				TableName:  row.TblName,
				RootPage:   int(row.RootPage),
				CreateSQL:  row.SQL,
				ColumnName: col,
			}
		}
	}

	for _, idx := range schema.Indexes {
		if table, ok := schema.Tables[idx.TableName]; ok {
			table.Indexes = append(table.Indexes, idx)
		}
	}

	return schema, nil
}

// Resolve looks up a table by name.
func (s *Schema) Resolve(name string) (*Table, error) {
	table, ok := s.Tables[name]
	if !ok {
		return nil, NewDatabaseError("resolve_table", ErrSchemaResolutionFailure, map[string]interface{}{
			"table": name,
		})
	}
	return table, nil
}

// FindIndexForColumn returns the index on table keyed by column, if any.
func (t *Table) FindIndexForColumn(column string) *Index {
	for _, idx := range t.Indexes {
		if idx.ColumnName == column {
			return idx
		}
	}
	return nil
}

// parseTableColumns extracts column names and the INTEGER PRIMARY KEY alias
// from a CREATE TABLE statement by isolating the parenthesized column list
// and splitting on top-level commas — commas nested inside a column's own
// parentheses (e.g. a DECIMAL(10,2) type) are not split points.
func parseTableColumns(sql string) ([]Column, error) {
	body, err := extractParenthesizedBody(sql)
	if err != nil {
		return nil, err
	}

	defs := splitTopLevel(body)
	columns := make([]Column, 0, len(defs))
	for _, def := range defs {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		upper := strings.ToUpper(def)
		if strings.HasPrefix(upper, "PRIMARY KEY") ||
			strings.HasPrefix(upper, "UNIQUE") ||
			strings.HasPrefix(upper, "CHECK") ||
			strings.HasPrefix(upper, "FOREIGN KEY") ||
			strings.HasPrefix(upper, "CONSTRAINT") {
			continue
		}

		fields := strings.Fields(def)
		if len(fields) == 0 {
			continue
		}
		name := strings.Trim(fields[0], "\"'`[]")
		isPK := strings.Contains(upper, "PRIMARY KEY")
		columns = append(columns, Column{Name: name, IsPrimaryKey: isPK})
	}

	if len(columns) == 0 {
		return nil, NewDatabaseError("parse_table_columns", ErrSchemaResolutionFailure, map[string]interface{}{
			"sql": sql,
		})
	}
	return columns, nil
}

// parseIndexColumn extracts the single indexed column name from a CREATE
// INDEX statement's parenthesized column list.
func parseIndexColumn(sql string) (string, error) {
	body, err := extractParenthesizedBody(sql)
	if err != nil {
		return "", err
	}
	parts := splitTopLevel(body)
	if len(parts) == 0 {
		return "", NewDatabaseError("parse_index_column", ErrSchemaResolutionFailure, map[string]interface{}{
			"sql": sql,
		})
	}
	return strings.Trim(strings.TrimSpace(parts[0]), "\"'`[]"), nil
}

// extractParenthesizedBody returns the text between the first '(' and its
// matching ')' in sql.
func extractParenthesizedBody(sql string) (string, error) {
	start := strings.IndexByte(sql, '(')
	if start < 0 {
		return "", NewDatabaseError("extract_parenthesized_body", ErrSchemaResolutionFailure, map[string]interface{}{
			"reason": "no opening parenthesis",
		})
	}

	depth := 0
	for i := start; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sql[start+1 : i], nil
			}
		}
	}
	return "", NewDatabaseError("extract_parenthesized_body", ErrSchemaResolutionFailure, map[string]interface{}{
		"reason": "unbalanced parentheses",
	})
}

// splitTopLevel splits s on commas that are not nested inside their own
// parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
