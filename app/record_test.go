package main

import "testing"

func TestDecodeValuesIntAndText(t *testing.T) {
	// header_size=3, serial types [1 (int8), 19 (text len 3)], then payload.
	data := []byte{0x03, 0x01, 0x13, 0x05, 'a', 'b', 'c'}

	values, err := decodeValues(data, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("got %d values, want 2", len(values))
	}
	if values[0].Kind != KindInteger || values[0].Integer != 5 {
		t.Fatalf("values[0] = %+v, want integer 5", values[0])
	}
	if values[1].Kind != KindText || string(values[1].Bytes) != "abc" {
		t.Fatalf("values[1] = %+v, want text abc", values[1])
	}
}

func TestDecodeValuesNullZeroOne(t *testing.T) {
	// header_size=4, serial types [0 (null), 8 (zero), 9 (one)].
	data := []byte{0x04, 0x00, 0x08, 0x09}

	values, err := decodeValues(data, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0].Kind != KindNull {
		t.Fatalf("values[0] = %+v, want null", values[0])
	}
	if values[1].Kind != KindInteger || values[1].Integer != 0 {
		t.Fatalf("values[1] = %+v, want integer 0", values[1])
	}
	if values[2].Kind != KindInteger || values[2].Integer != 1 {
		t.Fatalf("values[2] = %+v, want integer 1", values[2])
	}
}

func TestDecodeValuesBlob(t *testing.T) {
	// header_size=2, serial type [16 (blob len 2)], payload 0xDE 0xAD.
	data := []byte{0x02, 0x10, 0xDE, 0xAD}

	values, err := decodeValues(data, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0].Kind != KindBlob {
		t.Fatalf("values[0].Kind = %v, want KindBlob", values[0].Kind)
	}
	if len(values[0].Bytes) != 2 || values[0].Bytes[0] != 0xDE || values[0].Bytes[1] != 0xAD {
		t.Fatalf("values[0].Bytes = %v, want [0xDE 0xAD]", values[0].Bytes)
	}
}

func TestDecodeValuesMismatchedColumnCount(t *testing.T) {
	data := []byte{0x02, 0x01, 0x05}
	if _, err := decodeValues(data, 5); err == nil {
		t.Fatal("expected error when record has fewer columns than requested")
	}
}

func TestDecodeValueUnsupportedFloat(t *testing.T) {
	if _, _, err := decodeValue(serialTypeFloat, []byte{0, 0, 0, 0, 0, 0, 0, 0}, 0); err == nil {
		t.Fatal("expected error decoding float serial type")
	}
}

func TestDecodeTableRowSubstitutesRowidForPrimaryKey(t *testing.T) {
	columns := []Column{
		{Name: "id", IsPrimaryKey: true},
		{Name: "name"},
	}
	// id column is NULL in storage (serial type 0); name is text "hi" (serial type 17).
	payload := []byte{0x03, 0x00, 0x11, 'h', 'i'}

	rec, err := decodeTableRow(payload, columns, "widgets", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Get("id").Integer != 42 {
		t.Fatalf("id = %+v, want rowid 42", rec.Get("id"))
	}
	if rec.Get("name").String() != "hi" {
		t.Fatalf("name = %q, want hi", rec.Get("name").String())
	}
	if rec.Get("missing").Kind != KindNull {
		t.Fatal("missing column should resolve to NULL")
	}
}

func TestDecodeIndexEntry(t *testing.T) {
	index := &Index{Name: "idx_widgets_name", ColumnName: "name"}
	// key "ab" (text len2, serial 17) then rowid 7 (int8, serial 1).
	payload := []byte{0x03, 0x11, 0x01, 'a', 'b', 0x07}

	entry, err := decodeIndexEntry(payload, index)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Key.String() != "ab" {
		t.Fatalf("key = %q, want ab", entry.Key.String())
	}
	if entry.Rowid != 7 {
		t.Fatalf("rowid = %d, want 7", entry.Rowid)
	}
}
