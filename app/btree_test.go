package main

import (
	"context"
	"os"
	"testing"
)

// writeTestDatabaseWithOptions is writeTestDatabase plus the ability to pass
// DatabaseOptions through to OpenDatabase, for tests that need profiling on.
func writeTestDatabaseWithOptions(t *testing.T, pageSize int, extraPages [][]byte, opts ...DatabaseOption) *Database {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "litequery-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}

	page1 := make([]byte, pageSize)
	copy(page1, buildDatabaseHeader(uint16(pageSize)))
	page1[databaseHeaderSize] = pageTypeLeafTable
	page1[databaseHeaderSize+5] = byte(pageSize >> 8)
	page1[databaseHeaderSize+6] = byte(pageSize)
	if _, err := f.Write(page1); err != nil {
		t.Fatalf("write page1: %v", err)
	}

	for _, page := range extraPages {
		if _, err := f.Write(page); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}

	db, err := OpenDatabase(context.Background(), f.Name(), opts...)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// buildLeafIndexPage constructs a minimal leaf-index page holding the given
// cells, each already encoded (payload_size varint + payload).
func buildLeafIndexPage(pageSize int, cells [][]byte) []byte {
	page := make([]byte, pageSize)
	page[0] = pageTypeLeafIndex
	contentStart := pageSize
	pointers := make([]uint16, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		contentStart -= len(cells[i])
		copy(page[contentStart:], cells[i])
		pointers[i] = uint16(contentStart)
	}
	page[3] = byte(len(cells) >> 8)
	page[4] = byte(len(cells))
	page[5] = byte(contentStart >> 8)
	page[6] = byte(contentStart)

	pointerStart := 8
	for i, p := range pointers {
		page[pointerStart+i*2] = byte(p >> 8)
		page[pointerStart+i*2+1] = byte(p)
	}
	return page
}

// buildInteriorIndexPage constructs an interior-index page from pre-encoded
// (left_child_page + payload_size + payload) cells, plus a rightmost pointer.
func buildInteriorIndexPage(pageSize int, cells [][]byte, rightmost uint32) []byte {
	page := make([]byte, pageSize)
	page[0] = pageTypeInteriorIndex
	contentStart := pageSize
	pointers := make([]uint16, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		contentStart -= len(cells[i])
		copy(page[contentStart:], cells[i])
		pointers[i] = uint16(contentStart)
	}
	page[3] = byte(len(cells) >> 8)
	page[4] = byte(len(cells))
	page[5] = byte(contentStart >> 8)
	page[6] = byte(contentStart)
	page[8] = byte(rightmost >> 24)
	page[9] = byte(rightmost >> 16)
	page[10] = byte(rightmost >> 8)
	page[11] = byte(rightmost)

	pointerStart := 12
	for i, p := range pointers {
		page[pointerStart+i*2] = byte(p >> 8)
		page[pointerStart+i*2+1] = byte(p)
	}
	return page
}

// encodeIndexPayload builds a two-column (key, rowid) index record payload,
// both values small enough to fit the one-byte int8 serial type.
func encodeIndexPayload(key, rowid int) []byte {
	return []byte{0x03, 0x01, 0x01, byte(key), byte(rowid)}
}

func encodeLeafIndexCell(payload []byte) []byte {
	cell := make([]byte, 0, len(payload)+1)
	cell = append(cell, byte(len(payload)))
	cell = append(cell, payload...)
	return cell
}

func encodeInteriorIndexCell(leftChild uint32, payload []byte) []byte {
	cell := make([]byte, 4, len(payload)+5)
	cell[0] = byte(leftChild >> 24)
	cell[1] = byte(leftChild >> 16)
	cell[2] = byte(leftChild >> 8)
	cell[3] = byte(leftChild)
	cell = append(cell, byte(len(payload)))
	cell = append(cell, payload...)
	return cell
}

// TestSeekIndexVisitsOnlyPathPages builds a two-level index B-tree — an
// interior root with one separator cell (key 5, left child page 3) and a
// rightmost pointer to page 4 — and seeks key 10, which sorts to the right
// of the separator. It asserts both that the correct rowid is found and
// that the left subtree (page 3) is never read, substantiating the
// descending-pass seek's O(log n) page-visit bound.
func TestSeekIndexVisitsOnlyPathPages(t *testing.T) {
	pageSize := 512

	leftLeaf := buildLeafIndexPage(pageSize, [][]byte{
		encodeLeafIndexCell(encodeIndexPayload(5, 50)),
	})
	rightLeaf := buildLeafIndexPage(pageSize, [][]byte{
		encodeLeafIndexCell(encodeIndexPayload(10, 100)),
		encodeLeafIndexCell(encodeIndexPayload(20, 120)),
	})
	interior := buildInteriorIndexPage(pageSize, [][]byte{
		encodeInteriorIndexCell(3, encodeIndexPayload(5, 0)),
	}, 4)

	db := writeTestDatabaseWithOptions(t, pageSize, [][]byte{interior, leftLeaf, rightLeaf}, WithProfiling(true))

	index := &Index{Name: "idx_val", TableName: "t", RootPage: 2, ColumnName: "val"}

	root, err := db.ReadPage(2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	rowids, err := db.seekIndex(context.Background(), root, index, Value{Kind: KindInteger, Integer: 10})
	if err != nil {
		t.Fatalf("seekIndex: %v", err)
	}
	if len(rowids) != 1 || rowids[0] != 100 {
		t.Fatalf("rowids = %v, want [100]", rowids)
	}

	if got, want := db.PagesVisited(), 3; got != want {
		t.Fatalf("PagesVisited() = %d, want %d (page 1 read at open + root + right leaf, left leaf untouched)", got, want)
	}
}

// writeTestDatabase creates a temp file whose page 1 is an empty
// sqlite_schema leaf (so OpenDatabase's schema load succeeds trivially) and
// whose remaining pages are supplied verbatim, letting tests drive the
// B-tree walker directly against hand-built pages.
func writeTestDatabase(t *testing.T, pageSize int, extraPages ...[]byte) *Database {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "litequery-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}

	page1 := make([]byte, pageSize)
	copy(page1, buildDatabaseHeader(uint16(pageSize)))
	page1[databaseHeaderSize] = pageTypeLeafTable
	page1[databaseHeaderSize+5] = byte(pageSize >> 8)
	page1[databaseHeaderSize+6] = byte(pageSize)
	if _, err := f.Write(page1); err != nil {
		t.Fatalf("write page1: %v", err)
	}

	for _, page := range extraPages {
		if _, err := f.Write(page); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}

	db, err := OpenDatabase(context.Background(), f.Name())
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// encodeLeafTableCell builds a leaf-table cell: payload_size varint, rowid
// varint, then payload. Both varints are assumed to fit in one byte, which
// holds for the small fixtures these tests use.
func encodeLeafTableCell(rowid int, payload []byte) []byte {
	cell := make([]byte, 0, len(payload)+2)
	cell = append(cell, byte(len(payload)))
	cell = append(cell, byte(rowid))
	cell = append(cell, payload...)
	return cell
}

// recordPayload encodes a two-column (int, text) record the way decodeValues expects.
func recordPayload(intVal int, text string) []byte {
	textSerial := byte(13 + 2*len(text))
	payload := []byte{0x03, 0x01, textSerial, byte(intVal)}
	payload = append(payload, []byte(text)...)
	return payload
}

func TestFullScanPageSingleLeaf(t *testing.T) {
	pageSize := 512
	cells := [][]byte{
		encodeLeafTableCell(1, recordPayload(10, "alpha")),
		encodeLeafTableCell(2, recordPayload(20, "beta")),
	}
	leaf := buildLeafTablePage(pageSize, cells)

	db := writeTestDatabase(t, pageSize, leaf)

	root, err := db.ReadPage(2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	columns := []Column{{Name: "n"}, {Name: "label"}}
	records, err := db.fullScanPage(context.Background(), root, columns)
	if err != nil {
		t.Fatalf("fullScanPage: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Get("label").String() != "alpha" || records[0].Rowid != 1 {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if records[1].Get("label").String() != "beta" || records[1].Rowid != 2 {
		t.Fatalf("records[1] = %+v", records[1])
	}
}

// buildInteriorTablePage constructs a page whose cells are
// (left_child_page, key) pairs and whose rightmost pointer is given
// separately.
func buildInteriorTablePage(pageSize int, children []struct {
	page uint32
	key  int
}, rightmost uint32) []byte {
	page := make([]byte, pageSize)
	page[0] = pageTypeInteriorTable

	cells := make([][]byte, len(children))
	for i, c := range children {
		cell := make([]byte, 4)
		cell[0] = byte(c.page >> 24)
		cell[1] = byte(c.page >> 16)
		cell[2] = byte(c.page >> 8)
		cell[3] = byte(c.page)
		cell = append(cell, byte(c.key))
		cells[i] = cell
	}

	contentStart := pageSize
	pointers := make([]uint16, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		contentStart -= len(cells[i])
		copy(page[contentStart:], cells[i])
		pointers[i] = uint16(contentStart)
	}

	page[3] = byte(len(cells) >> 8)
	page[4] = byte(len(cells))
	page[5] = byte(contentStart >> 8)
	page[6] = byte(contentStart)
	page[8] = byte(rightmost >> 24)
	page[9] = byte(rightmost >> 16)
	page[10] = byte(rightmost >> 8)
	page[11] = byte(rightmost)

	pointerStart := 12
	for i, p := range pointers {
		page[pointerStart+i*2] = byte(p >> 8)
		page[pointerStart+i*2+1] = byte(p)
	}
	return page
}

func TestFullScanPageInteriorWithTwoLeafChildren(t *testing.T) {
	pageSize := 512

	leftLeaf := buildLeafTablePage(pageSize, [][]byte{
		encodeLeafTableCell(1, recordPayload(1, "one")),
	})
	rightLeaf := buildLeafTablePage(pageSize, [][]byte{
		encodeLeafTableCell(2, recordPayload(2, "two")),
	})
	// Interior page references page 3 (left) via a cell and page 4
	// (right) via the rightmost pointer. Page 2 is the interior root.
	interior := buildInteriorTablePage(pageSize, []struct {
		page uint32
		key  int
	}{{page: 3, key: 1}}, 4)

	db := writeTestDatabase(t, pageSize, interior, leftLeaf, rightLeaf)

	root, err := db.ReadPage(2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	columns := []Column{{Name: "n"}, {Name: "label"}}
	records, err := db.fullScanPage(context.Background(), root, columns)
	if err != nil {
		t.Fatalf("fullScanPage: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Get("label").String() != "one" {
		t.Fatalf("records[0] = %+v, want label one (left child visited first)", records[0])
	}
	if records[1].Get("label").String() != "two" {
		t.Fatalf("records[1] = %+v, want label two (rightmost child visited last)", records[1])
	}
}

func TestRowCountFromLeafRoot(t *testing.T) {
	pageSize := 512
	leaf := buildLeafTablePage(pageSize, [][]byte{
		encodeLeafTableCell(1, recordPayload(1, "a")),
		encodeLeafTableCell(2, recordPayload(2, "b")),
		encodeLeafTableCell(3, recordPayload(3, "c")),
	})
	db := writeTestDatabase(t, pageSize, leaf)

	root, err := db.ReadPage(2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	count, ok := db.rowCount(root)
	if !ok {
		t.Fatal("expected rowCount shortcut to apply for a leaf root")
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestCompareValuesIntegerVsLexicographic(t *testing.T) {
	if compareValues(Value{Kind: KindInteger, Integer: 5}, Value{Kind: KindInteger, Integer: 10}) >= 0 {
		t.Fatal("5 should compare less than 10 numerically")
	}
	a := Value{Kind: KindText, Bytes: []byte("apple")}
	b := Value{Kind: KindText, Bytes: []byte("banana")}
	if compareValues(a, b) >= 0 {
		t.Fatal("apple should compare less than banana lexicographically")
	}
}
