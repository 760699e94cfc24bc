package main

import "testing"

func textRecord(rowid int64, column, value string) *Record {
	return &Record{Rowid: rowid, byName: map[string]Value{column: {Kind: KindText, Bytes: []byte(value)}}}
}

func TestApplyFiltersEquality(t *testing.T) {
	records := []*Record{
		textRecord(1, "color", "Red"),
		textRecord(2, "color", "Green"),
		textRecord(3, "color", "Red"),
	}

	kept, err := applyFilters(records, []FilterClause{{Column: "color", Operator: "=", Value: Value{Kind: KindText, Bytes: []byte("Red")}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("got %d records, want 2", len(kept))
	}
	for _, r := range kept {
		if r.Get("color").String() != "Red" {
			t.Fatalf("unexpected record in filtered set: %+v", r)
		}
	}
}

func TestApplyFiltersNoFiltersReturnsAll(t *testing.T) {
	records := []*Record{textRecord(1, "color", "Red")}
	kept, err := applyFilters(records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("got %d records, want 1", len(kept))
	}
}

func TestApplyFiltersUnsupportedOperator(t *testing.T) {
	records := []*Record{textRecord(1, "color", "Red")}
	if _, err := applyFilters(records, []FilterClause{{Column: "color", Operator: "LIKE", Value: Value{Kind: KindText}}}); err == nil {
		t.Fatal("expected an error for an unsupported operator")
	}
}

func TestFormatRowNullRendersEmptyString(t *testing.T) {
	row := []Value{{Kind: KindInteger, Integer: 5}, NullValue, {Kind: KindText, Bytes: []byte("x")}}
	got := FormatRow(row)
	want := "5||x"
	if got != want {
		t.Fatalf("FormatRow() = %q, want %q", got, want)
	}
}

func TestQueryResultStringCount(t *testing.T) {
	result := &QueryResult{IsCount: true, Count: 4}
	if result.String() != "4" {
		t.Fatalf("String() = %q, want 4", result.String())
	}
}
