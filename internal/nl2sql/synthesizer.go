package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"ai-data-analyst/internal/ai"
)

const generalInstruction = "You are a helpful AI data analyst. Based on the conversation history and the user's final question, generate a single, highly compatible SQL query to answer the question.\n" +
	"IMPORTANT GUIDELINES FOR SQL GENERATION:\n" +
	"1. **Use Highly Compatible SQL:** Adhere to the ANSI SQL (SQL-92) standard.\n" +
	"2. **Avoid Modern Functions:** Do not use advanced or vendor-specific functions like JSON_TABLE.\n" +
	"3. **Goal:** The query must be runnable on older database systems."

// InvalidSQLError is returned when the model reply is not a read statement.
type InvalidSQLError struct {
	SQL string
}

func (e *InvalidSQLError) Error() string {
	return fmt.Sprintf("generated statement is not a SELECT or WITH query: %q", e.SQL)
}

type TableDescriber interface {
	Describe(ctx context.Context, table string) (string, error)
	Dialect() string
}

type Synthesizer struct {
	completer ai.Completer
	schema    TableDescriber
	topK      int
}

func NewSynthesizer(completer ai.Completer, schema TableDescriber, topK int) *Synthesizer {
	if topK <= 0 {
		topK = 5
	}
	return &Synthesizer{completer: completer, schema: schema, topK: topK}
}

// Synthesize asks the model for one statement answering the last question
// of prompt against table. Non-read statements yield *InvalidSQLError.
func (s *Synthesizer) Synthesize(ctx context.Context, table, prompt string) (string, error) {
	tableInfo, err := s.schema.Describe(ctx, table)
	if err != nil {
		return "", err
	}

	question := generalInstruction + "\n\nConversation History:\n" + prompt
	raw, err := s.completer.Complete(ctx, ai.UserPrompt(BuildQueryPrompt(s.schema.Dialect(), tableInfo, question, s.topK)))
	if err != nil {
		return "", err
	}

	sql := ExtractSQL(raw)
	if !IsReadStatement(sql) {
		return sql, &InvalidSQLError{SQL: sql}
	}
	return sql, nil
}

type dialectHints struct {
	display   string
	quoteHint string
	today     string
}

var hintsByDialect = map[string]dialectHints{
	"mysql":    {display: "MySQL", quoteHint: "Wrap each column name in backticks (`) to denote them as delimited identifiers.", today: "CURDATE()"},
	"postgres": {display: "PostgreSQL", quoteHint: "Wrap each column name in double quotes (\") to denote them as delimited identifiers.", today: "CURRENT_DATE"},
	"sqlite":   {display: "SQLite", quoteHint: "Wrap each column name in double quotes (\") to denote them as delimited identifiers.", today: "date('now')"},
}

// BuildQueryPrompt renders the Question/SQLQuery/SQLResult/Answer prompt for
// one table in the given dialect.
func BuildQueryPrompt(dialect, tableInfo, question string, topK int) string {
	hints, ok := hintsByDialect[dialect]
	if !ok {
		hints = dialectHints{display: "SQL", quoteHint: "Wrap each column name in double quotes (\") to denote them as delimited identifiers.", today: "CURRENT_DATE"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s expert. Given an input question, first create a syntactically correct %s query to run, then look at the results of the query and return the answer to the input question.\n", hints.display, hints.display)
	fmt.Fprintf(&b, "Unless the user specifies in the question a specific number of examples to obtain, query for at most %d results using the LIMIT clause as per %s. You can order the results to return the most informative data in the database.\n", topK, hints.display)
	b.WriteString("Never query for all columns from a table. You must query only the columns that are needed to answer the question. ")
	b.WriteString(hints.quoteHint)
	b.WriteString("\nPay attention to use only the column names you can see in the tables below. Be careful to not query for columns that do not exist. Also, pay attention to which column is in which table.\n")
	fmt.Fprintf(&b, "Pay attention to use %s function to get the current date, if the question involves \"today\".\n\n", hints.today)
	b.WriteString("Use the following format:\n\n")
	b.WriteString("Question: Question here\nSQLQuery: SQL Query to run\nSQLResult: Result of the SQLQuery\nAnswer: Final answer here\n\n")
	b.WriteString("Only use the following tables:\n")
	b.WriteString(tableInfo)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nSQLQuery: ")
	return b.String()
}
