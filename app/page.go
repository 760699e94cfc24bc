package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const databaseHeaderSize = 100

// sqliteMagic is the fixed 16-byte prefix of every SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// DatabaseHeader is the 100-byte prefix of the file. Only PageSize is
// consumed by this engine; the rest of the on-disk header (schema cookie,
// text encoding, vacuum settings, ...) governs write/WAL concerns this
// engine never touches.
type DatabaseHeader struct {
	Magic    [16]byte
	PageSize uint16
}

// parseDatabaseHeader reads and validates the 100-byte header.
func parseDatabaseHeader(data []byte) (*DatabaseHeader, error) {
	if len(data) < databaseHeaderSize {
		return nil, NewDatabaseError("parse_database_header", ErrMalformedFile, map[string]interface{}{
			"have_bytes": len(data),
		})
	}

	header := &DatabaseHeader{}
	copy(header.Magic[:], data[:16])
	if !bytes.Equal(header.Magic[:], sqliteMagic) {
		return nil, NewDatabaseError("parse_database_header", ErrMalformedFile, map[string]interface{}{
			"reason": "bad magic number",
		})
	}

	header.PageSize = binary.BigEndian.Uint16(data[16:18])

	size := int(header.PageSize)
	if size == 1 {
		// The on-disk field is 16 bits; SQLite stores 1 to mean 65536.
		size = 65536
	}
	if size < 512 || size > 65536 || size&(size-1) != 0 {
		return nil, NewDatabaseError("parse_database_header", ErrMalformedFile, map[string]interface{}{
			"reason":    "page size must be a power of two in [512, 65536]",
			"page_size": size,
		})
	}

	return header, nil
}

// ActualPageSize resolves the 1-means-65536 encoding quirk.
func (h *DatabaseHeader) ActualPageSize() int {
	if h.PageSize == 1 {
		return 65536
	}
	return int(h.PageSize)
}

// Page type discriminants (PageHeader.PageType), per spec.
const (
	pageTypeInteriorIndex = 2
	pageTypeInteriorTable = 5
	pageTypeLeafIndex     = 10
	pageTypeLeafTable     = 13
)

// PageHeader is the fixed-layout header at the start of every page's body.
type PageHeader struct {
	PageType            uint8
	FirstFreeblock      uint16
	CellCount           uint16
	ContentStart        uint16
	FragmentedFreeBytes uint8
	RightmostPointer    uint32 // only set when PageType is an interior kind
}

// IsInterior reports whether the page carries a RightmostPointer / child
// pointers rather than record payloads directly.
func (h *PageHeader) IsInterior() bool {
	return h.PageType == pageTypeInteriorIndex || h.PageType == pageTypeInteriorTable
}

// Size returns the header's byte length: 12 for interior pages (they carry
// the extra rightmost-pointer field), 8 for leaves.
func (h *PageHeader) Size() int {
	if h.IsInterior() {
		return 12
	}
	return 8
}

// parsePageHeader decodes a PageHeader from body, the page's bytes starting
// at its body offset (i.e. already past the 100-byte file header on page 1).
func parsePageHeader(body []byte) (*PageHeader, error) {
	if len(body) < 8 {
		return nil, NewDatabaseError("parse_page_header", ErrMalformedFile, map[string]interface{}{
			"reason": "page too small for header",
		})
	}

	header := &PageHeader{
		PageType:            body[0],
		FirstFreeblock:      binary.BigEndian.Uint16(body[1:3]),
		CellCount:           binary.BigEndian.Uint16(body[3:5]),
		ContentStart:        binary.BigEndian.Uint16(body[5:7]),
		FragmentedFreeBytes: body[7],
	}

	switch header.PageType {
	case pageTypeInteriorIndex, pageTypeInteriorTable:
		if len(body) < 12 {
			return nil, NewDatabaseError("parse_page_header", ErrMalformedFile, map[string]interface{}{
				"reason": "interior page too small for rightmost pointer",
			})
		}
		header.RightmostPointer = binary.BigEndian.Uint32(body[8:12])
	case pageTypeLeafIndex, pageTypeLeafTable:
		// no extra fields
	default:
		return nil, NewDatabaseError("parse_page_header", ErrMalformedFile, map[string]interface{}{
			"reason":    "unknown page type",
			"page_type": header.PageType,
		})
	}

	return header, nil
}

// Page is a decoded page: its header, the cell pointer array (still in
// file-relative-to-page-start order), and the full page bytes needed to
// resolve each cell pointer into a cell body.
type Page struct {
	Number       int
	Header       *PageHeader
	CellPointers []uint16
	// raw holds the full page (page_size bytes), indexed from the start of
	// the page in the file — NOT from the body offset. Cell pointers are
	// relative to this same origin, per spec §4.3.
	raw []byte
	// bodyOffset is 100 for page 1 (the file header prefix), 0 otherwise.
	bodyOffset int
}

// parsePage reads page pageNumber (1-indexed) out of raw (the full
// page_size-byte region for that page) and decodes its header and cell
// pointer array.
func parsePage(pageNumber int, raw []byte) (*Page, error) {
	bodyOffset := 0
	if pageNumber == 1 {
		bodyOffset = databaseHeaderSize
	}
	if bodyOffset >= len(raw) {
		return nil, NewDatabaseError("parse_page", ErrMalformedFile, map[string]interface{}{
			"page_number": pageNumber,
			"reason":      "page smaller than file header",
		})
	}

	header, err := parsePageHeader(raw[bodyOffset:])
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}

	pointerArrayStart := bodyOffset + header.Size()
	pointers := make([]uint16, header.CellCount)
	for i := 0; i < int(header.CellCount); i++ {
		off := pointerArrayStart + i*2
		if off+2 > len(raw) {
			return nil, NewDatabaseError("parse_page", ErrMalformedFile, map[string]interface{}{
				"page_number": pageNumber,
				"reason":      "cell pointer array overflows page",
			})
		}
		pointers[i] = binary.BigEndian.Uint16(raw[off : off+2])
	}

	return &Page{
		Number:       pageNumber,
		Header:       header,
		CellPointers: pointers,
		raw:          raw,
		bodyOffset:   bodyOffset,
	}, nil
}

// validatePage runs the stricter invariant checks ValidationStrict opts
// into: every cell pointer must fall strictly within the page and at or
// after the end of the page header, and cell pointers must not collide. Basic
// validation (the default) only checks what parsePage already enforces to
// decode at all; this catches corruption that would otherwise silently
// decode garbage.
func validatePage(page *Page, pageSize int) error {
	seen := make(map[uint16]bool, len(page.CellPointers))
	for i, ptr := range page.CellPointers {
		if int(ptr) >= pageSize {
			return NewDatabaseError("validate_page", ErrInvalidCellPointer, map[string]interface{}{
				"page_number": page.Number,
				"cell_index":  i,
				"pointer":     ptr,
			})
		}
		if int(ptr) < page.bodyOffset+page.Header.Size() {
			return NewDatabaseError("validate_page", ErrInvalidCellPointer, map[string]interface{}{
				"page_number": page.Number,
				"cell_index":  i,
				"reason":      "cell pointer falls inside the page header",
			})
		}
		if seen[ptr] {
			return NewDatabaseError("validate_page", ErrInvalidCellPointer, map[string]interface{}{
				"page_number": page.Number,
				"cell_index":  i,
				"reason":      "duplicate cell pointer",
			})
		}
		seen[ptr] = true
	}
	return nil
}

// cellBytes resolves a cell pointer to the bytes within raw starting at
// that cell. Cell pointers are relative to the start of the page, not the
// page body — so the 100-byte file header offset is never added here.
func (p *Page) cellBytes(pointer uint16) []byte {
	if int(pointer) >= len(p.raw) {
		return nil
	}
	return p.raw[pointer:]
}

// leafTableCell is one cell of a leaf-table (13) page: payload_size varint,
// rowid varint, record payload.
type leafTableCell struct {
	Rowid   int64
	Payload []byte
}

func parseLeafTableCell(data []byte) (*leafTableCell, error) {
	reader := NewVarintReader(data)
	payloadSize, err := reader.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	rowid, err := reader.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read rowid: %w", err)
	}

	start := reader.Offset()
	if start+int(payloadSize) > len(data) {
		return nil, NewDatabaseError("parse_leaf_table_cell", ErrOverflowPage, map[string]interface{}{
			"needed": start + int(payloadSize),
			"have":   len(data),
		})
	}

	return &leafTableCell{Rowid: int64(rowid), Payload: data[start : start+int(payloadSize)]}, nil
}

// interiorTableCell is one cell of an interior-table (5) page:
// left_child_page (4 bytes), key varint (the rowid separator, ignored by
// full scan, used only for index-style traversal which table B-trees never
// need per spec §4.4).
type interiorTableCell struct {
	LeftChildPage uint32
	Key           int64
}

func parseInteriorTableCell(data []byte) (*interiorTableCell, error) {
	if len(data) < 4 {
		return nil, NewDatabaseError("parse_interior_table_cell", ErrMalformedFile, nil)
	}
	childPage := binary.BigEndian.Uint32(data[0:4])
	key, n := readVarint(data, 4)
	if n == 0 {
		return nil, NewDatabaseError("parse_interior_table_cell", ErrInvalidVarint, nil)
	}
	return &interiorTableCell{LeftChildPage: childPage, Key: int64(key)}, nil
}

// leafIndexCell is one cell of a leaf-index (10) page: payload_size varint,
// record payload whose last value is the rowid.
type leafIndexCell struct {
	Payload []byte
}

func parseLeafIndexCell(data []byte) (*leafIndexCell, error) {
	reader := NewVarintReader(data)
	payloadSize, err := reader.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	start := reader.Offset()
	if start+int(payloadSize) > len(data) {
		return nil, NewDatabaseError("parse_leaf_index_cell", ErrOverflowPage, map[string]interface{}{
			"needed": start + int(payloadSize),
			"have":   len(data),
		})
	}
	return &leafIndexCell{Payload: data[start : start+int(payloadSize)]}, nil
}

// interiorIndexCell is one cell of an interior-index (2) page:
// left_child_page (4 bytes), payload_size varint, record payload (last
// value is the rowid).
type interiorIndexCell struct {
	LeftChildPage uint32
	Payload       []byte
}

func parseInteriorIndexCell(data []byte) (*interiorIndexCell, error) {
	if len(data) < 4 {
		return nil, NewDatabaseError("parse_interior_index_cell", ErrMalformedFile, nil)
	}
	childPage := binary.BigEndian.Uint32(data[0:4])

	reader := NewVarintReader(data[4:])
	payloadSize, err := reader.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	start := 4 + reader.Offset()
	if start+int(payloadSize) > len(data) {
		return nil, NewDatabaseError("parse_interior_index_cell", ErrOverflowPage, map[string]interface{}{
			"needed": start + int(payloadSize),
			"have":   len(data),
		})
	}
	return &interiorIndexCell{LeftChildPage: childPage, Payload: data[start : start+int(payloadSize)]}, nil
}
