package nl2sql

import "strings"

const humanMarker = "Human:"

// Turn is one prior message of the conversation.
type Turn struct {
	FromUser bool
	Text     string
}

// AssemblePrompt renders history oldest-first as "Human: ..." / "AI: ..."
// lines and appends the new question as the final Human line.
func AssemblePrompt(history []Turn, question string) string {
	var b strings.Builder
	for _, turn := range history {
		if turn.FromUser {
			b.WriteString("Human: ")
		} else {
			b.WriteString("AI: ")
		}
		b.WriteString(turn.Text)
		b.WriteByte('\n')
	}
	b.WriteString("Human: ")
	b.WriteString(question)
	return b.String()
}

// LastQuestion returns the text after the final Human marker.
func LastQuestion(prompt string) string {
	if i := strings.LastIndex(prompt, humanMarker); i >= 0 {
		return strings.TrimSpace(prompt[i+len(humanMarker):])
	}
	return strings.TrimSpace(prompt)
}
