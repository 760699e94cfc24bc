package main

import (
	"context"
	"fmt"
	"os"
)

// Database is an open handle onto a SQLite file, decoded strictly for
// reading: no journal, WAL, or freelist bookkeeping is ever consulted.
type Database struct {
	file     *os.File
	header   *DatabaseHeader
	pageSize int
	schema   *Schema
	config   *DatabaseConfig
	res      *ResourceManager

	pagesVisited int
}

// OpenDatabase opens path, parses its 100-byte header, and resolves its
// schema from sqlite_schema. Every table/index a later query touches is
// already known once this returns.
func OpenDatabase(ctx context.Context, path string, opts ...DatabaseOption) (*Database, error) {
	cfg := DefaultDatabaseConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, NewDatabaseError("open_database", err, map[string]interface{}{
			"path": path,
		})
	}

	res := NewResourceManager()
	res.Add(file)

	db := &Database{file: file, config: cfg, res: res}

	if err := db.parseHeader(); err != nil {
		res.Close()
		return nil, err
	}

	if err := db.loadSchema(ctx); err != nil {
		res.Close()
		return nil, err
	}

	return db, nil
}

// Close releases the underlying file handle.
func (db *Database) Close() error {
	return db.res.Close()
}

// PageSize returns the resolved page size (the 1-means-65536 quirk already
// applied).
func (db *Database) PageSize() int {
	return db.pageSize
}

// Schema returns the resolved schema.
func (db *Database) Schema() *Schema {
	return db.schema
}

// PagesVisited returns the number of pages read since the database was
// opened, when WithProfiling(true) was supplied. It is zero otherwise.
func (db *Database) PagesVisited() int {
	return db.pagesVisited
}

// parseHeader reads the file's leading 100 bytes and validates them.
func (db *Database) parseHeader() error {
	buf := make([]byte, databaseHeaderSize)
	if _, err := db.file.ReadAt(buf, 0); err != nil {
		return NewDatabaseError("parse_header", err, nil)
	}

	header, err := parseDatabaseHeader(buf)
	if err != nil {
		return err
	}

	db.header = header
	db.pageSize = header.ActualPageSize()
	return nil
}

// ReadPage reads and decodes page number pageNumber (1-indexed).
func (db *Database) ReadPage(pageNumber int) (*Page, error) {
	if pageNumber < 1 {
		return nil, NewDatabaseError("read_page", ErrInvalidPageType, map[string]interface{}{
			"page_number": pageNumber,
		})
	}

	offset := int64(pageNumber-1) * int64(db.pageSize)
	buf := make([]byte, db.pageSize)
	if _, err := db.file.ReadAt(buf, offset); err != nil {
		return nil, NewDatabaseError("read_page", err, map[string]interface{}{
			"page_number": pageNumber,
			"offset":      offset,
		})
	}

	if db.config.EnableProfiling {
		db.pagesVisited++
	}

	page, err := parsePage(pageNumber, buf)
	if err != nil {
		return nil, err
	}

	if db.config.ValidationMode == ValidationStrict {
		if err := validatePage(page, db.pageSize); err != nil {
			return nil, err
		}
	}

	return page, nil
}

// loadSchema full-scans sqlite_schema at page 1 and builds the resolved
// Schema, filtering out sqlite_sequence rows.
func (db *Database) loadSchema(ctx context.Context) error {
	root, err := db.ReadPage(sqliteSchemaRootPage)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	records, err := db.fullScanPage(ctx, root, sqliteSchemaColumns)
	if err != nil {
		return NewDatabaseError("load_schema", err, nil)
	}

	rows := make([]schemaRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, parseSchemaRow(rec))
	}

	schema, err := buildSchema(rows)
	if err != nil {
		return err
	}
	db.schema = schema
	return nil
}
