package conversation

import (
	"fmt"
	"strings"

	"github.com/erg0nix/recall/internal/core"
)

// Summarizer condenses a block of turns into summary text.
type Summarizer interface {
	Summarize(turns []Turn) string
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(turns []Turn) string

func (f SummarizerFunc) Summarize(turns []Turn) string { return f(turns) }

const summaryExcerpt = 200

// ExtractiveSummarizer keeps the first user line and the last assistant line
// of the block, each cut to 200 characters.
type ExtractiveSummarizer struct{}

func (ExtractiveSummarizer) Summarize(turns []Turn) string {
	var firstUser, lastAssistant *Turn
	for i := range turns {
		switch turns[i].Role {
		case core.RoleUser:
			if firstUser == nil {
				firstUser = &turns[i]
			}
		case core.RoleAssistant:
			lastAssistant = &turns[i]
		}
	}

	var pieces []string
	if firstUser != nil {
		pieces = append(pieces, "User start: "+excerpt(firstUser.Text))
	}
	if lastAssistant != nil {
		pieces = append(pieces, "Assistant key: "+excerpt(lastAssistant.Text))
	}
	pieces = append(pieces, fmt.Sprintf("Turns summarized: %d", len(turns)))

	return strings.Join(pieces, "\n")
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= summaryExcerpt {
		return text
	}
	return string(runes[:summaryExcerpt])
}
