package ingest

import (
	"strings"

	"gorm.io/gorm"
)

type dialect struct {
	name             string
	text             string
	integer          string
	float            string
	placeholderLimit int
}

var dialects = map[string]dialect{
	"mysql":    {name: "mysql", text: "MEDIUMTEXT", integer: "BIGINT", float: "DOUBLE", placeholderLimit: 65535},
	"postgres": {name: "postgres", text: "TEXT", integer: "BIGINT", float: "DOUBLE PRECISION", placeholderLimit: 65535},
	"sqlite":   {name: "sqlite", text: "TEXT", integer: "INTEGER", float: "REAL", placeholderLimit: 32766},
}

func dialectOf(db *gorm.DB) dialect {
	if d, ok := dialects[db.Dialector.Name()]; ok {
		return d
	}
	return dialects["mysql"]
}

// columnType maps a coarse kind to a DDL type; anything unknown is text.
func (d dialect) columnType(kind Kind) string {
	switch kind {
	case KindInteger:
		return d.integer
	case KindFloat:
		return d.float
	default:
		return d.text
	}
}

// rowsPerBatch caps a batch so rows*columns stays under the placeholder limit.
func (d dialect) rowsPerBatch(want, columns int) int {
	if want <= 0 {
		want = 1000
	}
	if columns <= 0 {
		return want
	}
	if limit := d.placeholderLimit / columns; limit < want {
		want = limit
	}
	if want < 1 {
		want = 1
	}
	return want
}

func quoteIdent(db *gorm.DB, name string) string {
	var b strings.Builder
	db.Dialector.QuoteTo(&b, name)
	return b.String()
}
