package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	sampleRowCount  = 3
	sampleCellLimit = 100
)

// SchemaCache stores rendered table descriptions between questions.
type SchemaCache interface {
	Get(ctx context.Context, table string) (string, bool, error)
	Set(ctx context.Context, table, schema string) error
}

// SchemaReader renders a CREATE TABLE statement plus a few sample rows for
// exactly one storage table.
type SchemaReader struct {
	db    *gorm.DB
	cache SchemaCache
}

func NewSchemaReader(db *gorm.DB, cache SchemaCache) *SchemaReader {
	return &SchemaReader{db: db, cache: cache}
}

func (s *SchemaReader) Dialect() string {
	return s.db.Dialector.Name()
}

func (s *SchemaReader) Describe(ctx context.Context, table string) (string, error) {
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, table); err == nil && ok {
			return cached, nil
		}
	}

	db := s.db.WithContext(ctx)
	columnTypes, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return "", fmt.Errorf("read columns of %s failed: %w", table, err)
	}
	if len(columnTypes) == 0 {
		return "", fmt.Errorf("table %s not found", table)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quote(db, table))
	b.WriteString(" (\n")
	names := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		names[i] = ct.Name()
		b.WriteString("\t")
		b.WriteString(quote(db, ct.Name()))
		b.WriteString(" ")
		b.WriteString(strings.ToUpper(ct.DatabaseTypeName()))
		if i < len(columnTypes)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")

	samples, err := sampleRows(db, table)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n%s", sampleRowCount, table, strings.Join(names, "\t"))
	for _, row := range samples {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, "\t"))
	}
	b.WriteString("\n*/")

	description := b.String()
	if s.cache != nil {
		_ = s.cache.Set(ctx, table, description)
	}
	return description, nil
}

func sampleRows(db *gorm.DB, table string) ([][]string, error) {
	rows, err := db.Raw(fmt.Sprintf("SELECT * FROM %s LIMIT %d", quote(db, table), sampleRowCount)).Rows()
	if err != nil {
		return nil, fmt.Errorf("sample rows of %s failed: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns of %s failed: %w", table, err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample row failed: %w", err)
		}
		cells := make([]string, len(cols))
		for i, v := range values {
			cells[i] = sampleCell(v)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows failed: %w", err)
	}
	return out, nil
}

func sampleCell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = "None"
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	if r := []rune(s); len(r) > sampleCellLimit {
		s = string(r[:sampleCellLimit])
	}
	return s
}

func quote(db *gorm.DB, name string) string {
	var b strings.Builder
	db.Dialector.QuoteTo(&b, name)
	return b.String()
}
