package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ai-data-analyst/internal/ai"
	"ai-data-analyst/internal/query"
)

type recordingCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (r *recordingCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	for _, m := range messages {
		r.prompts = append(r.prompts, m.Content)
	}
	return r.reply, r.err
}

func salesResult(n int) *query.Result {
	res := &query.Result{Columns: []string{"region", "total"}}
	for i := 0; i < n; i++ {
		res.Rows = append(res.Rows, []any{fmt.Sprintf("r%d", i), float64(i * 10)})
	}
	return res
}

func TestIsChartRequest(t *testing.T) {
	for _, q := range []string{"Plot sales by region", "show a PIE", "Visualize it", "draw a line"} {
		if !IsChartRequest(q) {
			t.Fatalf("IsChartRequest(%q) = false", q)
		}
	}
	if IsChartRequest("What is the total revenue?") {
		t.Fatal("plain question detected as chart request")
	}
}

func TestComposeChartBranch(t *testing.T) {
	completer := &recordingCompleter{reply: "```json\n{\"type\":\"chart\",\"chart_type\":\"bar\"}\n```"}
	c := NewComposer(completer, 10, 500)

	res := &query.Result{Columns: []string{"region", "total", "units"}, Rows: [][]any{{"north", 10.0, int64(1)}}}
	out, err := c.Compose(context.Background(), res, "plot total by region")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !out.Chart {
		t.Fatal("expected chart branch")
	}
	if out.Answer != `{"type":"chart","chart_type":"bar"}` {
		t.Fatalf("Answer = %q", out.Answer)
	}
	prompt := completer.prompts[0]
	if !strings.Contains(prompt, "Chart.js") || !strings.Contains(prompt, `Data: {"columns":["region","total","units"],"data":[["north",10,1]]}`) {
		t.Fatalf("chart prompt = %s", prompt)
	}
}

func TestComposeSingleColumnFallsBackToProse(t *testing.T) {
	completer := &recordingCompleter{reply: "There are three regions."}
	c := NewComposer(completer, 10, 500)

	res := &query.Result{Columns: []string{"region"}, Rows: [][]any{{"north"}, {"south"}, {"east"}}}
	out, err := c.Compose(context.Background(), res, "plot the regions")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if out.Chart {
		t.Fatal("single column result must not take the chart branch")
	}
	if out.Answer != "There are three regions." {
		t.Fatalf("Answer = %q", out.Answer)
	}
	if !strings.Contains(completer.prompts[0], "provide a concise, natural language answer") {
		t.Fatalf("prose prompt = %s", completer.prompts[0])
	}
}

func TestComposeProseTruncatesAndNotesRemainder(t *testing.T) {
	completer := &recordingCompleter{reply: "  Sales vary by region.\n"}
	c := NewComposer(completer, 10, 500)

	out, err := c.Compose(context.Background(), salesResult(25), "what are sales per region?")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if out.Answer != "  Sales vary by region.\n" {
		t.Fatalf("prose reply must be verbatim, got %q", out.Answer)
	}
	if out.Preview == nil || len(out.Preview.Data) != 10 {
		t.Fatalf("preview = %+v", out.Preview)
	}
	prompt := completer.prompts[0]
	if !strings.Contains(prompt, "... (and 15 more rows)") {
		t.Fatalf("prompt missing remainder note:\n%s", prompt)
	}
	if strings.Contains(prompt, "r10") {
		t.Fatalf("prompt should only include the first 10 rows:\n%s", prompt)
	}
}

func TestComposeEmptyResultHasNoPreview(t *testing.T) {
	c := NewComposer(&recordingCompleter{reply: "No data."}, 10, 500)
	out, err := c.Compose(context.Background(), &query.Result{Columns: []string{"a"}}, "anything?")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if out.Preview != nil {
		t.Fatalf("Preview = %+v, want nil", out.Preview)
	}
}

func TestComposeErrorKeepsPreview(t *testing.T) {
	c := NewComposer(&recordingCompleter{err: errors.New("timeout")}, 10, 500)
	out, err := c.Compose(context.Background(), salesResult(3), "summarize")
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Preview == nil || len(out.Preview.Data) != 3 {
		t.Fatalf("preview = %+v", out.Preview)
	}
}

func TestChartDataIsCapped(t *testing.T) {
	completer := &recordingCompleter{reply: "{}"}
	c := NewComposer(completer, 10, 2)
	if _, err := c.Compose(context.Background(), salesResult(5), "bar chart please"); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if strings.Contains(completer.prompts[0], `"r2"`) {
		t.Fatalf("chart data not capped:\n%s", completer.prompts[0])
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"region", "total"}, [][]any{{"north", 10.5}, {"south", nil}})
	want := "     region  total\n  0   north   10.5\n  1   south   None"
	if got != want {
		t.Fatalf("renderTable() =\n%q\nwant\n%q", got, want)
	}
	if got := renderTable([]string{"a", "b"}, nil); got != "Empty DataFrame\nColumns: [a, b]\nIndex: []" {
		t.Fatalf("renderTable(empty) = %q", got)
	}
}
