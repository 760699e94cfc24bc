package main

import (
	"context"
	"fmt"
	"sync"
)

// fullScanPage walks the table B-tree rooted at root depth-first, left to
// right, decoding every leaf cell into a Record keyed by columns. Traversal
// order across pages stays strictly sequential so row order is preserved;
// only the cell decode *within* a single leaf page is parallelized.
func (db *Database) fullScanPage(ctx context.Context, root *Page, columns []Column) ([]*Record, error) {
	return db.fullScanPageNamed(ctx, root, columns, "")
}

func (db *Database) fullScanPageNamed(ctx context.Context, page *Page, columns []Column, tableName string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if page.Header.IsInterior() {
		return db.scanInteriorTablePage(ctx, page, columns, tableName)
	}
	return db.scanLeafTablePage(page, columns, tableName)
}

func (db *Database) scanInteriorTablePage(ctx context.Context, page *Page, columns []Column, tableName string) ([]*Record, error) {
	var all []*Record

	for _, ptr := range page.CellPointers {
		cell, err := parseInteriorTableCell(page.cellBytes(ptr))
		if err != nil {
			return nil, fmt.Errorf("scan interior table page %d: %w", page.Number, err)
		}
		child, err := db.ReadPage(int(cell.LeftChildPage))
		if err != nil {
			return nil, err
		}
		records, err := db.fullScanPageNamed(ctx, child, columns, tableName)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	if page.Header.RightmostPointer != 0 {
		child, err := db.ReadPage(int(page.Header.RightmostPointer))
		if err != nil {
			return nil, err
		}
		records, err := db.fullScanPageNamed(ctx, child, columns, tableName)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	return all, nil
}

// decodeResult holds one cell's decode outcome; each parallel worker stores
// it at its cell's cell-pointer-array index so results stay in file order.
type decodeResult struct {
	record *Record
	err    error
}

// scanLeafTablePage decodes every cell of a single leaf page, fanning the
// per-cell work out across at most db.config.MaxConcurrency goroutines.
// Results are written back into a slice indexed by cell position, so the
// concurrency never disturbs cell-pointer-array order.
func (db *Database) scanLeafTablePage(page *Page, columns []Column, tableName string) ([]*Record, error) {
	n := len(page.CellPointers)
	results := make([]decodeResult, n)

	limit := db.config.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, ptr := range page.CellPointers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ptr uint16) {
			defer wg.Done()
			defer func() { <-sem }()

			cell, err := parseLeafTableCell(page.cellBytes(ptr))
			if err != nil {
				results[i] = decodeResult{err: fmt.Errorf("leaf table page %d cell %d: %w", page.Number, i, err)}
				return
			}
			rec, err := decodeTableRow(cell.Payload, columns, tableName, cell.Rowid)
			results[i] = decodeResult{record: rec, err: err}
		}(i, ptr)
	}
	wg.Wait()

	records := make([]*Record, 0, n)
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		records = append(records, r.record)
	}
	return records, nil
}

// rowCount returns the number of rows a table holds without decoding any of
// them, when that can be determined directly: a leaf root page's CellCount
// *is* the row count. An interior root has no such shortcut (its CellCount
// tallies child pointers, not rows), so callers fall back to a full scan.
func (db *Database) rowCount(root *Page) (int, bool) {
	if root.Header.IsInterior() {
		return 0, false
	}
	return int(root.Header.CellCount), true
}

// seekIndex walks the index B-tree rooted at root looking for entries whose
// key equals target, returning their rowids. The traversal is a single
// descending pass: index pages keep cells in ascending key order, so a
// match can only be found in the single subtree its key falls into, plus
// the adjoining child for ties that spill into the sorted run of equal
// keys below.
//
// Rule: on a cell whose key equals target, the entry is emitted and the
// left child is still descended (an equal key's duplicates live to its
// left). On a cell whose key is greater than target, the left child is
// descended and the scan stops — everything past this cell, by sort order,
// is even larger. If every cell's key is less than target, the rightmost
// pointer is the only subtree that could still hold it.
func (db *Database) seekIndex(ctx context.Context, root *Page, index *Index, target Value) ([]int64, error) {
	var rowids []int64
	err := db.seekIndexPage(ctx, root, index, target, &rowids)
	return rowids, err
}

func (db *Database) seekIndexPage(ctx context.Context, page *Page, index *Index, target Value, out *[]int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if page.Header.IsInterior() {
		return db.seekInteriorIndexPage(ctx, page, index, target, out)
	}
	return db.seekLeafIndexPage(page, index, target, out)
}

func (db *Database) seekLeafIndexPage(page *Page, index *Index, target Value, out *[]int64) error {
	for _, ptr := range page.CellPointers {
		cell, err := parseLeafIndexCell(page.cellBytes(ptr))
		if err != nil {
			return fmt.Errorf("seek leaf index page %d: %w", page.Number, err)
		}
		entry, err := decodeIndexEntry(cell.Payload, index)
		if err != nil {
			return err
		}
		if valuesEqual(entry.Key, target) {
			*out = append(*out, entry.Rowid)
		}
	}
	return nil
}

func (db *Database) seekInteriorIndexPage(ctx context.Context, page *Page, index *Index, target Value, out *[]int64) error {
	for _, ptr := range page.CellPointers {
		cell, err := parseInteriorIndexCell(page.cellBytes(ptr))
		if err != nil {
			return fmt.Errorf("seek interior index page %d: %w", page.Number, err)
		}
		entry, err := decodeIndexEntry(cell.Payload, index)
		if err != nil {
			return err
		}

		cmp := compareValues(entry.Key, target)
		if cmp == 0 {
			*out = append(*out, entry.Rowid)
			child, err := db.ReadPage(int(cell.LeftChildPage))
			if err != nil {
				return err
			}
			if err := db.seekIndexPage(ctx, child, index, target, out); err != nil {
				return err
			}
			continue
		}
		if cmp > 0 {
			child, err := db.ReadPage(int(cell.LeftChildPage))
			if err != nil {
				return err
			}
			return db.seekIndexPage(ctx, child, index, target, out)
		}
		// cmp < 0: target is larger than this cell's key, keep scanning right.
	}

	if page.Header.RightmostPointer != 0 {
		child, err := db.ReadPage(int(page.Header.RightmostPointer))
		if err != nil {
			return err
		}
		return db.seekIndexPage(ctx, child, index, target, out)
	}
	return nil
}

// valuesEqual compares two decoded values for the seek's equality test.
func valuesEqual(a, b Value) bool {
	return compareValues(a, b) == 0
}

// compareValues orders two values the way index keys are ordered on disk:
// numerically if both are integers, lexicographically on raw bytes
// otherwise (collation beyond byte order is out of scope).
func compareValues(a, b Value) int {
	if a.Kind == KindInteger && b.Kind == KindInteger {
		switch {
		case a.Integer < b.Integer:
			return -1
		case a.Integer > b.Integer:
			return 1
		default:
			return 0
		}
	}

	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
