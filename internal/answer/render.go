package answer

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Preview is the head of a result in split orientation.
type Preview struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func buildPreview(columns []string, rows [][]any, limit int) *Preview {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	data := make([][]any, len(rows))
	copy(data, rows)
	return &Preview{Columns: columns, Data: data}
}

// renderTable prints rows as a right-aligned grid with a leading row index.
func renderTable(columns []string, rows [][]any) string {
	if len(rows) == 0 {
		return fmt.Sprintf("Empty DataFrame\nColumns: [%s]\nIndex: []", strings.Join(columns, ", "))
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t")
	for _, c := range columns {
		fmt.Fprintf(w, "%s\t", c)
	}
	fmt.Fprintln(w)
	for i, row := range rows {
		fmt.Fprintf(w, "%d\t", i)
		for _, v := range row {
			fmt.Fprintf(w, "%s\t", formatCell(v))
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return strings.ReplaceAll(x, "\t", " ")
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
