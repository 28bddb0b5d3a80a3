package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-data-analyst/internal/ai"
	"ai-data-analyst/internal/query"
)

var chartKeywords = []string{"chart", "plot", "graph", "visualize", "diagram", "bar", "pie", "line"}

// IsChartRequest reports whether the question asks for a visualization.
func IsChartRequest(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range chartKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

type Composition struct {
	Answer  string
	Preview *Preview
	Chart   bool
}

type Composer struct {
	completer      ai.Completer
	previewRows    int
	chartDataLimit int
}

func NewComposer(completer ai.Completer, previewRows, chartDataLimit int) *Composer {
	if previewRows <= 0 {
		previewRows = 10
	}
	if chartDataLimit <= 0 {
		chartDataLimit = 500
	}
	return &Composer{completer: completer, previewRows: previewRows, chartDataLimit: chartDataLimit}
}

// Compose turns a query result into either chart JSON or a prose answer.
// The preview is filled in before the model is called, so it is present even
// when the returned error is non-nil.
func (c *Composer) Compose(ctx context.Context, res *query.Result, question string) (Composition, error) {
	out := Composition{Preview: buildPreview(res.Columns, res.Rows, c.previewRows)}

	if IsChartRequest(question) && len(res.Columns) >= 2 {
		out.Chart = true
		prompt, err := c.chartPrompt(res, question)
		if err != nil {
			return out, err
		}
		reply, err := c.completer.Complete(ctx, ai.UserPrompt(prompt))
		if err != nil {
			return out, err
		}
		out.Answer = stripJSONFences(reply)
		return out, nil
	}

	reply, err := c.completer.Complete(ctx, ai.UserPrompt(c.prosePrompt(res, question)))
	if err != nil {
		return out, err
	}
	out.Answer = reply
	return out, nil
}

func (c *Composer) chartPrompt(res *query.Result, question string) (string, error) {
	rows := res.Rows
	if len(rows) > c.chartDataLimit {
		rows = rows[:c.chartDataLimit]
	}
	payload, err := json.Marshal(Preview{Columns: res.Columns, Data: rows})
	if err != nil {
		return "", fmt.Errorf("marshal chart data failed: %w", err)
	}

	var b strings.Builder
	b.WriteString("Based on the user's question and the following data, you MUST respond with ONLY a valid JSON object that can be used to create a chart with Chart.js.\n")
	b.WriteString(`The JSON object must have this exact structure: {"type": "chart", "chart_type": "bar", "data": {"labels": [], "datasets": [{"label": "Description", "data": []}]}, "title": "Chart Title"}`)
	b.WriteString("\n- 'chart_type' can be 'bar', 'line', or 'pie'.\n")
	b.WriteString("- 'labels' should be the first column of the data.\n")
	b.WriteString("- 'data' should be the second column.\n")
	fmt.Fprintf(&b, "User's Question: \"%s\"\n", question)
	fmt.Fprintf(&b, "Data: %s\n", payload)
	b.WriteString("Valid JSON Response:\n")
	return b.String(), nil
}

func (c *Composer) prosePrompt(res *query.Result, question string) string {
	shown := res.Rows
	if len(shown) > c.previewRows {
		shown = shown[:c.previewRows]
	}
	table := renderTable(res.Columns, shown)
	if extra := len(res.Rows) - c.previewRows; extra > 0 {
		table += fmt.Sprintf("\n\n... (and %d more rows)", extra)
	}

	var b strings.Builder
	b.WriteString("Based on the final user question and the following real data, provide a concise, natural language answer.\n")
	fmt.Fprintf(&b, "Final User Question: \"%s\"\n", question)
	fmt.Fprintf(&b, "Real Data from the database: \"%s\"\n", table)
	b.WriteString("Answer:\n")
	return b.String()
}

func stripJSONFences(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.ReplaceAll(reply, "```json", "")
	reply = strings.ReplaceAll(reply, "```", "")
	return strings.TrimSpace(reply)
}
