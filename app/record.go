package main

import (
	"encoding/binary"
	"fmt"
)

// Serial type codes from the SQLite record format.
const (
	serialTypeNull  = 0
	serialTypeInt8  = 1
	serialTypeInt16 = 2
	serialTypeInt24 = 3
	serialTypeInt32 = 4
	serialTypeInt48 = 5
	serialTypeInt64 = 6
	serialTypeFloat = 7
	serialTypeZero  = 8
	serialTypeOne   = 9
)

// ValueKind distinguishes how a decoded Value should be rendered.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindText
	KindBlob
)

// Value is a single decoded column value. Only integer, text, blob and null
// are representable — 48/64-bit integers and floating point (serial types
// 5-7) are not decoded.
type Value struct {
	Kind    ValueKind
	Integer int64
	Bytes   []byte
}

// NullValue is the shared representation of SQL NULL.
var NullValue = Value{Kind: KindNull}

// String renders a value the way the executor projects it: NULL as empty
// string, integers as decimal, text/blob as UTF-8.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	default:
		return string(v.Bytes)
	}
}

// serialTypeSize returns the number of payload bytes the serial type
// consumes, or -1 if the serial type is unsupported (5-7, reserved 10/11).
func serialTypeSize(serialType uint64) int {
	switch serialType {
	case serialTypeNull, serialTypeZero, serialTypeOne:
		return 0
	case serialTypeInt8:
		return 1
	case serialTypeInt16:
		return 2
	case serialTypeInt24:
		return 3
	case serialTypeInt32:
		return 4
	default:
		if serialType >= 12 && serialType%2 == 0 {
			return int((serialType - 12) / 2)
		}
		if serialType >= 13 && serialType%2 == 1 {
			return int((serialType - 13) / 2)
		}
		return -1
	}
}

// decodeValue reads one value from data[offset:] according to serialType,
// returning the value and bytes consumed.
func decodeValue(serialType uint64, data []byte, offset int) (Value, int, error) {
	switch serialType {
	case serialTypeNull:
		return NullValue, 0, nil
	case serialTypeZero:
		return Value{Kind: KindInteger, Integer: 0}, 0, nil
	case serialTypeOne:
		return Value{Kind: KindInteger, Integer: 1}, 0, nil
	}

	size := serialTypeSize(serialType)
	if size < 0 {
		return Value{}, 0, NewDatabaseError("decode_value", ErrMalformedFile, map[string]interface{}{
			"serial_type": serialType,
			"reason":      "unhandled serial type",
		})
	}
	if offset+size > len(data) {
		return Value{}, 0, NewDatabaseError("decode_value", ErrMalformedFile, map[string]interface{}{
			"serial_type": serialType,
			"needed":      offset + size,
			"have":        len(data),
		})
	}
	raw := data[offset : offset+size]

	switch serialType {
	case serialTypeInt8:
		return Value{Kind: KindInteger, Integer: int64(int8(raw[0]))}, size, nil
	case serialTypeInt16:
		return Value{Kind: KindInteger, Integer: int64(int16(binary.BigEndian.Uint16(raw)))}, size, nil
	case serialTypeInt24:
		v := int64(raw[0])<<16 | int64(raw[1])<<8 | int64(raw[2])
		if v&0x800000 != 0 {
			v |= ^int64(0xFFFFFF)
		}
		return Value{Kind: KindInteger, Integer: v}, size, nil
	case serialTypeInt32:
		return Value{Kind: KindInteger, Integer: int64(int32(binary.BigEndian.Uint32(raw)))}, size, nil
	}

	if serialType >= 12 && serialType%2 == 0 {
		return Value{Kind: KindBlob, Bytes: raw}, size, nil
	}
	return Value{Kind: KindText, Bytes: raw}, size, nil
}

// decodeValues reads the record header (header_size varint, then n
// serial-type varints) and then the n values it describes from data.
// It is total over the supported serial-type set: it always returns exactly
// n values when the header is well-formed.
func decodeValues(data []byte, n int) ([]Value, error) {
	reader := NewVarintReader(data)
	headerSize, err := reader.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("decode record header size: %w", err)
	}

	serialTypes := make([]uint64, 0, n)
	for reader.Offset() < int(headerSize) && len(serialTypes) < n {
		st, err := reader.ReadVarint()
		if err != nil {
			return nil, fmt.Errorf("decode serial type %d: %w", len(serialTypes), err)
		}
		serialTypes = append(serialTypes, st)
	}
	if len(serialTypes) < n {
		return nil, NewDatabaseError("decode_values", ErrDecodeMismatch, map[string]interface{}{
			"expected_columns": n,
			"header_types":     len(serialTypes),
		})
	}

	values := make([]Value, n)
	offset := int(headerSize)
	for i, st := range serialTypes {
		v, consumed, err := decodeValue(st, data, offset)
		if err != nil {
			return nil, fmt.Errorf("decode column %d: %w", i, err)
		}
		values[i] = v
		offset += consumed
	}
	return values, nil
}

// decodeTableRow decodes a table leaf cell's payload into a Record keyed by
// columns, substituting rowid for any column marked IsPrimaryKey (those are
// stored as NULL in the payload per the INTEGER PRIMARY KEY alias).
func decodeTableRow(payload []byte, columns []Column, tableName string, rowid int64) (*Record, error) {
	values, err := decodeValues(payload, len(columns))
	if err != nil {
		return nil, NewDatabaseError("decode_table_row", err, map[string]interface{}{
			"table": tableName,
			"rowid": rowid,
		})
	}

	record := &Record{Rowid: rowid, byName: make(map[string]Value, len(columns))}
	for i, col := range columns {
		if col.IsPrimaryKey {
			record.byName[col.Name] = Value{Kind: KindInteger, Integer: rowid}
			continue
		}
		record.byName[col.Name] = values[i]
	}
	return record, nil
}

// IndexEntry is the key/rowid pair decoded from one index cell.
type IndexEntry struct {
	Key   Value
	Rowid int64
}

// decodeIndexEntry decodes an index cell's payload: index.ColumnCount key
// values followed by the referenced rowid (spec's single-column indexes
// mean ColumnCount is always 1, but the shape generalizes cleanly).
func decodeIndexEntry(payload []byte, index *Index) (*IndexEntry, error) {
	values, err := decodeValues(payload, index.ColumnCount()+1)
	if err != nil {
		return nil, NewDatabaseError("decode_index_entry", err, map[string]interface{}{
			"index": index.Name,
		})
	}
	key := values[0]
	rowidVal := values[len(values)-1]
	return &IndexEntry{Key: key, Rowid: rowidVal.Integer}, nil
}

// Record is an ordered mapping from column name to decoded value, plus the
// rowid it was read with. Lookup by an absent column yields NULL.
type Record struct {
	Rowid  int64
	byName map[string]Value
}

// Get returns the column's value, or NullValue if the column is absent.
func (r *Record) Get(column string) Value {
	if v, ok := r.byName[column]; ok {
		return v
	}
	return NullValue
}
