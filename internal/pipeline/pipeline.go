package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ai-data-analyst/internal/answer"
	"ai-data-analyst/internal/metrics"
	"ai-data-analyst/internal/nl2sql"
	"ai-data-analyst/internal/query"
)

const invalidSQLAnswer = "The AI generated an invalid response. It did not produce a readable SQL query."

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeInvalidSQL       Outcome = "invalid_sql"
	OutcomeGenerationError  Outcome = "generation_error"
	OutcomeExecutionError   Outcome = "execution_error"
	OutcomeCompositionError Outcome = "composition_error"
)

// Response is what a question returns to the caller. Only Answer is kept in
// the conversation.
type Response struct {
	Answer      string          `json:"answer"`
	SQLQuery    string          `json:"sql_query"`
	DataPreview *answer.Preview `json:"data_preview"`
}

// Result is the reply plus what the service records about it. Chart is set
// when the answer is a chart configuration.
type Result struct {
	Response
	Outcome Outcome
	Chart   bool
}

type SQLSynthesizer interface {
	Synthesize(ctx context.Context, table, prompt string) (string, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*query.Result, error)
}

type ResponseComposer interface {
	Compose(ctx context.Context, res *query.Result, question string) (answer.Composition, error)
}

type Pipeline struct {
	synth    SQLSynthesizer
	exec     QueryExecutor
	composer ResponseComposer
	log      *zap.Logger
}

func New(synth SQLSynthesizer, exec QueryExecutor, composer ResponseComposer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{synth: synth, exec: exec, composer: composer, log: log}
}

// Run answers the last question in prompt against table. Every failure is
// folded into the returned answer text; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context, table, prompt string) Result {
	res := p.run(ctx, table, prompt)
	metrics.ObserveQuestion(string(res.Outcome))
	return res
}

func (p *Pipeline) run(ctx context.Context, table, prompt string) Result {
	var sql string
	err := stage("synthesize", func() error {
		var err error
		sql, err = p.synth.Synthesize(ctx, table, prompt)
		return err
	})
	var invalid *nl2sql.InvalidSQLError
	switch {
	case errors.As(err, &invalid):
		p.log.Info("model produced non-read statement", zap.String("table", table), zap.String("sql", invalid.SQL))
		return Result{Response: Response{Answer: invalidSQLAnswer, SQLQuery: invalid.SQL}, Outcome: OutcomeInvalidSQL}
	case err != nil:
		p.log.Warn("sql generation failed", zap.String("table", table), zap.Error(err))
		return Result{
			Response: Response{Answer: fmt.Sprintf("Error during query generation: %v", err)},
			Outcome:  OutcomeGenerationError,
		}
	}

	var rows *query.Result
	err = stage("execute", func() error {
		var err error
		rows, err = p.exec.Execute(ctx, sql)
		return err
	})
	if err != nil {
		p.log.Warn("query execution failed", zap.String("table", table), zap.String("sql", sql), zap.Error(err))
		var storeErr *query.StoreError
		if errors.As(err, &storeErr) {
			return Result{Response: Response{Answer: fmt.Sprintf("Database Error: %v", storeErr), SQLQuery: sql}, Outcome: OutcomeExecutionError}
		}
		return Result{
			Response: Response{Answer: fmt.Sprintf("An unexpected error occurred while fetching data: %v", err), SQLQuery: sql},
			Outcome:  OutcomeExecutionError,
		}
	}

	var composed answer.Composition
	err = stage("compose", func() error {
		var err error
		composed, err = p.composer.Compose(ctx, rows, nl2sql.LastQuestion(prompt))
		return err
	})
	if err != nil {
		p.log.Warn("answer composition failed", zap.String("table", table), zap.Error(err))
		return Result{
			Response: Response{Answer: fmt.Sprintf("Error generating final answer: %v", err), SQLQuery: sql, DataPreview: composed.Preview},
			Outcome:  OutcomeCompositionError,
		}
	}

	return Result{
		Response: Response{Answer: composed.Answer, SQLQuery: sql, DataPreview: composed.Preview},
		Outcome:  OutcomeSuccess,
		Chart:    composed.Chart,
	}
}

// stage times fn and turns a panic inside it into an error.
func stage(name string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
		metrics.ObserveStage(name, time.Since(start))
	}()
	return fn()
}
