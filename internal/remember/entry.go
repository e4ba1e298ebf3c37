// Package remember holds deferred instructions ("remember") and runs them on
// request ("perform").
package remember

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
)

// Route records how an entry was dispatched.
type Route string

const (
	RouteCommand Route = "command"
	RouteChat    Route = "chat"
	RouteRefused Route = "refused"
)

// Result is the outcome stub stored on an executed entry.
type Result struct {
	Route   Route  `json:"route"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}

// Entry is one remembered instruction. Index is assigned once and never
// reused unless the queue is explicitly renumbered or cleared.
type Entry struct {
	Index      int        `json:"index"`
	Text       string     `json:"text"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	Result     *Result    `json:"result,omitempty"`
}

func (e Entry) Pending() bool {
	return e.Status == StatusPending
}

const previewLimit = 80

// Preview is the text cut to 80 characters with an ellipsis.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "…"
}

func cloneEntry(e Entry) Entry {
	if e.ExecutedAt != nil {
		at := *e.ExecutedAt
		e.ExecutedAt = &at
	}
	if e.Result != nil {
		r := *e.Result
		e.Result = &r
	}
	return e
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = cloneEntry(e)
	}
	return out
}
