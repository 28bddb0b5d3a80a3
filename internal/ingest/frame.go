package ingest

// Kind is the coarse type of a source column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindOther:
		return "other"
	default:
		return "text"
	}
}

// frame is the in-memory table produced by a reader. Cells are nil, string,
// int64 or float64; values of KindOther columns are already rendered as text.
type frame struct {
	headers []string
	kinds   []Kind
	rows    [][]any
}

func newTextFrame(headers []string) *frame {
	return &frame{headers: headers, kinds: make([]Kind, len(headers))}
}

// appendTextRow pads short rows with NULL and maps empty cells to NULL.
func (f *frame) appendTextRow(record []string) {
	row := make([]any, len(f.headers))
	for i := range row {
		if i < len(record) && record[i] != "" {
			row[i] = record[i]
		}
	}
	f.rows = append(f.rows, row)
}
