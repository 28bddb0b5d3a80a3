package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
)

const parquetReadBatch = 256

// readParquet keeps the native kinds of the leaf columns.
func readParquet(data []byte) (*frame, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet failed: %w", err)
	}

	schema := file.Schema()
	paths := schema.Columns()
	if len(paths) == 0 {
		return nil, fmt.Errorf("parquet file has no columns")
	}

	f := &frame{headers: make([]string, len(paths)), kinds: make([]Kind, len(paths))}
	unsigned := make([]bool, len(paths))
	for i, p := range paths {
		f.headers[i] = strings.Join(p, ".")
		f.kinds[i] = KindOther
		if leaf, ok := schema.Lookup(p...); ok {
			f.kinds[i], unsigned[i] = parquetKind(leaf.Node.Type())
		}
	}

	buf := make([]parquet.Row, parquetReadBatch)
	for _, group := range file.RowGroups() {
		rows := group.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, values := range buf[:n] {
				f.rows = append(f.rows, parquetRow(values, f.kinds, unsigned))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("read parquet rows failed: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close parquet rows failed: %w", err)
		}
	}
	return f, nil
}

// parquetKind maps a leaf type to a Kind and reports whether it is an
// unsigned integer. Unsigned 64-bit values do not fit BIGINT and are kept as
// decimal text.
func parquetKind(t parquet.Type) (Kind, bool) {
	if logical := t.LogicalType(); logical != nil {
		if logical.UTF8 != nil || logical.Enum != nil || logical.Json != nil {
			return KindText, false
		}
		if logical.Date != nil || logical.Time != nil || logical.Timestamp != nil || logical.Decimal != nil {
			return KindOther, false
		}
		if logical.Integer != nil && !logical.Integer.IsSigned {
			if logical.Integer.BitWidth == 64 {
				return KindOther, true
			}
			return KindInteger, true
		}
	}
	switch t.Kind() {
	case parquet.Int32, parquet.Int64:
		return KindInteger, false
	case parquet.Float, parquet.Double:
		return KindFloat, false
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return KindText, false
	default:
		return KindOther, false
	}
}

func parquetRow(values parquet.Row, kinds []Kind, unsigned []bool) []any {
	row := make([]any, len(kinds))
	seen := make([]bool, len(kinds))
	for _, v := range values {
		col := v.Column()
		if col < 0 || col >= len(kinds) || seen[col] {
			continue
		}
		seen[col] = true
		if v.IsNull() {
			continue
		}
		row[col] = parquetCell(v, kinds[col], unsigned[col])
	}
	return row
}

func parquetCell(v parquet.Value, kind Kind, unsigned bool) any {
	if unsigned {
		if v.Kind() == parquet.Int32 {
			return int64(uint32(v.Int32()))
		}
		return strconv.FormatUint(uint64(v.Int64()), 10)
	}
	switch kind {
	case KindInteger:
		if v.Kind() == parquet.Int32 {
			return int64(v.Int32())
		}
		return v.Int64()
	case KindFloat:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	default:
		return v.String()
	}
}

// readFeather reads an Arrow IPC file (Feather v2).
func readFeather(data []byte) (*frame, error) {
	reader, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("open feather failed: %w", err)
	}
	defer reader.Close()

	schema := reader.Schema()
	fields := schema.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("feather file has no columns")
	}

	f := &frame{headers: make([]string, len(fields)), kinds: make([]Kind, len(fields))}
	for i, field := range fields {
		f.headers[i] = field.Name
		f.kinds[i] = arrowKind(field.Type)
	}

	for r := 0; r < reader.NumRecords(); r++ {
		rec, err := reader.Record(r)
		if err != nil {
			return nil, fmt.Errorf("read feather record %d failed: %w", r, err)
		}
		cols := make([]arrow.Array, len(fields))
		for c := range fields {
			cols[c] = rec.Column(c)
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]any, len(fields))
			for c, col := range cols {
				row[c] = arrowCell(col, i)
			}
			f.rows = append(f.rows, row)
		}
	}
	return f, nil
}

func arrowKind(t arrow.DataType) Kind {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return KindInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return KindFloat
	case arrow.STRING, arrow.LARGE_STRING:
		return KindText
	default:
		return KindOther
	}
}

func arrowCell(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return strconv.FormatUint(a.Value(i), 10)
	case *array.Float16:
		return float64(a.Value(i).Float32())
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i))
	default:
		return col.ValueStr(i)
	}
}
