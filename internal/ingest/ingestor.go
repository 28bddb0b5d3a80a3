package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrIngestionFailed   = errors.New("error processing file")
)

// SupportedExtensions lists the upload extensions the ingestor can read.
var SupportedExtensions = []string{".csv", ".tsv", ".xls", ".xlsx", ".json", ".parquet", ".feather"}

const maxTableSuffix = 100

type Column struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"-"`
	SQLType string `json:"sql_type"`
}

type Result struct {
	Table    string
	Columns  []Column
	RowCount int64
}

type Ingestor struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time
}

func NewIngestor(db *gorm.DB, batchSize int) *Ingestor {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Ingestor{db: db, batchSize: batchSize, now: time.Now}
}

// Ingest reads the upload from r and loads it like IngestBytes.
func (i *Ingestor) Ingest(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	if _, err := readerFor(filename); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	return i.IngestBytes(ctx, filename, data)
}

// IngestBytes parses the upload, creates a fresh storage table for it and
// loads every row. The table is dropped again if loading fails.
func (i *Ingestor) IngestBytes(ctx context.Context, filename string, data []byte) (*Result, error) {
	read, err := readerFor(filename)
	if err != nil {
		return nil, err
	}

	f, err := read(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	if len(f.headers) == 0 {
		return nil, fmt.Errorf("%w: no columns to parse from file", ErrIngestionFailed)
	}

	db := i.db.WithContext(ctx)
	d := dialectOf(db)

	names := NormalizeColumnNames(f.headers)
	columns := make([]Column, len(names))
	for c, name := range names {
		columns[c] = Column{Name: name, Kind: f.kinds[c], SQLType: d.columnType(f.kinds[c])}
	}

	table, err := i.createTable(db, filename, columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	if err := i.insertRows(db, d, table, columns, f.rows); err != nil {
		if dropErr := DropTable(context.WithoutCancel(ctx), i.db, table); dropErr != nil {
			err = errors.Join(err, dropErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	return &Result{Table: table, Columns: columns, RowCount: int64(len(f.rows))}, nil
}

// DropTable removes a storage table if it exists.
func DropTable(ctx context.Context, db *gorm.DB, table string) error {
	if err := db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + quoteIdent(db, table)).Error; err != nil {
		return fmt.Errorf("drop table %s failed: %w", table, err)
	}
	return nil
}

func readerFor(filename string) (func([]byte) (*frame, error), error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return func(b []byte) (*frame, error) { return readDelimited(b, ',') }, nil
	case ".tsv":
		return func(b []byte) (*frame, error) { return readDelimited(b, '\t') }, nil
	case ".xlsx":
		return readXLSX, nil
	case ".xls":
		return readXLS, nil
	case ".json":
		return readJSON, nil
	case ".parquet":
		return readParquet, nil
	case ".feather":
		return readFeather, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// createTable creates the storage table under the first free name. A name
// taken between the existence check and CREATE TABLE moves on to the next
// counter.
func (i *Ingestor) createTable(db *gorm.DB, filename string, columns []Column) (string, error) {
	base := TableName(filename, i.now())
	for n := 1; n <= maxTableSuffix; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		if db.Migrator().HasTable(name) {
			continue
		}
		err := db.Exec(createTableSQL(db, name, columns)).Error
		if err == nil {
			return name, nil
		}
		if db.Migrator().HasTable(name) {
			continue
		}
		return "", fmt.Errorf("create table %s: %w", name, err)
	}
	return "", fmt.Errorf("no free table name for %s", base)
}

func createTableSQL(db *gorm.DB, table string, columns []Column) string {
	defs := make([]string, len(columns))
	for c, col := range columns {
		defs[c] = quoteIdent(db, col.Name) + " " + col.SQLType
	}
	return "CREATE TABLE " + quoteIdent(db, table) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"
}

// insertRows loads all rows in one transaction using multi-row INSERTs.
func (i *Ingestor) insertRows(db *gorm.DB, d dialect, table string, columns []Column, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch := d.rowsPerBatch(i.batchSize, len(columns))

	quoted := make([]string, len(columns))
	for c, col := range columns {
		quoted[c] = quoteIdent(db, col.Name)
	}
	prefix := "INSERT INTO " + quoteIdent(db, table) + " (" + strings.Join(quoted, ", ") + ") VALUES "
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	return db.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(rows); start += batch {
			end := start + batch
			if end > len(rows) {
				end = len(rows)
			}
			chunk := rows[start:end]

			tuples := make([]string, len(chunk))
			args := make([]any, 0, len(chunk)*len(columns))
			for r, row := range chunk {
				tuples[r] = tuple
				args = append(args, row...)
			}
			if err := tx.Exec(prefix+strings.Join(tuples, ", "), args...).Error; err != nil {
				return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
			}
		}
		return nil
	})
}
