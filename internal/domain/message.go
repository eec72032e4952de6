package domain

import "fmt"

// Message is a diagnostic returned by the host for a command or call.
type Message struct {
	ID       string
	Text     string
	Severity int
}

func (m Message) String() string {
	if m.ID == "" {
		return m.Text
	}
	return fmt.Sprintf("%s: %s", m.ID, m.Text)
}

// MessageTexts returns the rendered form of every message.
func MessageTexts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.String()
	}
	return out
}
