package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"ai-data-analyst/internal/ai"
	"ai-data-analyst/internal/answer"
	"ai-data-analyst/internal/ingest"
	"ai-data-analyst/internal/nl2sql"
	"ai-data-analyst/internal/query"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	var reply string
	var err error
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return reply, err
}

type fakeSynth struct {
	sql string
	err error
}

func (f fakeSynth) Synthesize(context.Context, string, string) (string, error) { return f.sql, f.err }

type fakeExec struct {
	res *query.Result
	err error
}

func (f fakeExec) Execute(context.Context, string) (*query.Result, error) { return f.res, f.err }

type panicComposer struct{}

func (panicComposer) Compose(context.Context, *query.Result, string) (answer.Composition, error) {
	panic("index out of range")
}

func TestRunOutcomes(t *testing.T) {
	rows := &query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}
	okComposer := answer.NewComposer(&scriptedCompleter{replies: []string{"Three."}}, 10, 500)

	cases := []struct {
		name        string
		p           *Pipeline
		wantOutcome Outcome
		wantAnswer  string
		wantSQL     string
	}{
		{
			name:        "invalid sql",
			p:           New(fakeSynth{sql: "DROP TABLE x", err: &nl2sql.InvalidSQLError{SQL: "DROP TABLE x"}}, fakeExec{}, okComposer, nil),
			wantOutcome: OutcomeInvalidSQL,
			wantAnswer:  "The AI generated an invalid response. It did not produce a readable SQL query.",
			wantSQL:     "DROP TABLE x",
		},
		{
			name:        "generation error",
			p:           New(fakeSynth{err: errors.New("401 unauthorized")}, fakeExec{}, okComposer, nil),
			wantOutcome: OutcomeGenerationError,
			wantAnswer:  "Error during query generation: 401 unauthorized",
		},
		{
			name:        "store error",
			p:           New(fakeSynth{sql: "SELECT x FROM t"}, fakeExec{err: &query.StoreError{Err: errors.New("no such column: x")}}, okComposer, nil),
			wantOutcome: OutcomeExecutionError,
			wantAnswer:  "Database Error: no such column: x",
			wantSQL:     "SELECT x FROM t",
		},
		{
			name:        "unexpected execution error",
			p:           New(fakeSynth{sql: "SELECT 1"}, fakeExec{err: errors.New("query interrupted: context canceled")}, okComposer, nil),
			wantOutcome: OutcomeExecutionError,
			wantAnswer:  "An unexpected error occurred while fetching data: query interrupted: context canceled",
			wantSQL:     "SELECT 1",
		},
		{
			name:        "composition panic",
			p:           New(fakeSynth{sql: "SELECT 1"}, fakeExec{res: rows}, panicComposer{}, nil),
			wantOutcome: OutcomeCompositionError,
			wantAnswer:  "Error generating final answer: index out of range",
			wantSQL:     "SELECT 1",
		},
		{
			name:        "success",
			p:           New(fakeSynth{sql: "SELECT COUNT(*) AS n FROM t"}, fakeExec{res: rows}, okComposer, nil),
			wantOutcome: OutcomeSuccess,
			wantAnswer:  "Three.",
			wantSQL:     "SELECT COUNT(*) AS n FROM t",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.p.Run(context.Background(), "t", "Human: q")
			if got.Outcome != tc.wantOutcome {
				t.Fatalf("Outcome = %s, want %s", got.Outcome, tc.wantOutcome)
			}
			if got.Answer == "" || got.Answer != tc.wantAnswer {
				t.Fatalf("Answer = %q, want %q", got.Answer, tc.wantAnswer)
			}
			if got.SQLQuery != tc.wantSQL {
				t.Fatalf("SQLQuery = %q, want %q", got.SQLQuery, tc.wantSQL)
			}
			if tc.wantOutcome != OutcomeSuccess && tc.wantOutcome != OutcomeCompositionError && got.DataPreview != nil {
				t.Fatalf("DataPreview = %+v, want nil", got.DataPreview)
			}
		})
	}
}

func TestRunCompositionErrorKeepsPreview(t *testing.T) {
	rows := &query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}
	composer := answer.NewComposer(&scriptedCompleter{errs: []error{errors.New("model timeout")}}, 10, 500)

	got := New(fakeSynth{sql: "SELECT 1"}, fakeExec{res: rows}, composer, nil).Run(context.Background(), "t", "Human: q")
	if got.Outcome != OutcomeCompositionError {
		t.Fatalf("Outcome = %s", got.Outcome)
	}
	if got.Answer != "Error generating final answer: model timeout" {
		t.Fatalf("Answer = %q", got.Answer)
	}
	if got.DataPreview == nil || len(got.DataPreview.Data) != 1 {
		t.Fatalf("DataPreview = %+v", got.DataPreview)
	}
}

func TestRunMarksChartAnswers(t *testing.T) {
	rows := &query.Result{Columns: []string{"region", "total"}, Rows: [][]any{{"North", int64(150)}, {"South", int64(250)}}}
	completer := &scriptedCompleter{replies: []string{
		"```json\n{\"type\": \"chart\", \"chart_type\": \"bar\"}\n```",
		"South sold more.",
	}}
	p := New(fakeSynth{sql: "SELECT region, total FROM t"}, fakeExec{res: rows}, answer.NewComposer(completer, 10, 500), nil)

	chart := p.Run(context.Background(), "t", "Human: plot total by region")
	if chart.Outcome != OutcomeSuccess || !chart.Chart {
		t.Fatalf("chart result = %+v", chart)
	}
	if chart.Answer != `{"type": "chart", "chart_type": "bar"}` {
		t.Fatalf("Answer = %q", chart.Answer)
	}

	prose := p.Run(context.Background(), "t", "Human: which region sold more?")
	if prose.Outcome != OutcomeSuccess || prose.Chart {
		t.Fatalf("prose result = %+v", prose)
	}
}

func TestRunEndToEndOverUploadedCSV(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "e2e.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	csv := "Region,Total $\nNorth,100\nSouth,250\nNorth,50\n"
	ingested, err := ingest.NewIngestor(db, 1000).IngestBytes(context.Background(), "sales.csv", []byte(csv))
	if err != nil {
		t.Fatalf("IngestBytes() error = %v", err)
	}
	if cols := ingested.Columns; len(cols) != 2 || cols[0].Name != "region" || cols[1].Name != "total" {
		t.Fatalf("columns = %+v", cols)
	}

	completer := &scriptedCompleter{replies: []string{
		"SQLQuery: SELECT region, SUM(CAST(total AS REAL)) AS total FROM " + ingested.Table + " GROUP BY region ORDER BY region;",
		"North sold 150 and South sold 250.",
	}}
	model := ai.Bounded(completer)
	p := New(
		nl2sql.NewSynthesizer(model, nl2sql.NewSchemaReader(db, nil), 5),
		query.NewExecutor(db),
		answer.NewComposer(model, 10, 500),
		nil,
	)

	prompt := nl2sql.AssemblePrompt(nil, "What are total sales by region?")
	got := p.Run(context.Background(), ingested.Table, prompt)

	if got.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %s (%s)", got.Outcome, got.Answer)
	}
	if got.Answer != "North sold 150 and South sold 250." {
		t.Fatalf("Answer = %q", got.Answer)
	}
	if !strings.HasPrefix(got.SQLQuery, "SELECT region") || strings.HasSuffix(got.SQLQuery, ";") {
		t.Fatalf("SQLQuery = %q", got.SQLQuery)
	}
	if got.DataPreview == nil || len(got.DataPreview.Data) != 2 {
		t.Fatalf("DataPreview = %+v", got.DataPreview)
	}
	if got.DataPreview.Data[0][0] != "North" || got.DataPreview.Data[0][1] != 150.0 {
		t.Fatalf("first row = %v", got.DataPreview.Data[0])
	}

	if len(completer.prompts) != 2 {
		t.Fatalf("model calls = %d", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[0], ingested.Table) {
		t.Fatal("sql prompt should carry the table schema")
	}
	if !strings.Contains(completer.prompts[1], `Final User Question: "What are total sales by region?"`) {
		t.Fatalf("answer prompt = %s", completer.prompts[1])
	}
}
