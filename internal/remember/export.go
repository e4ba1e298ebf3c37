package remember

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/jsonl"
)

// Events emitted to the editor stream.
const (
	EventRememberUpdated  = "remember_updated"
	EventPerformCompleted = "perform_completed"
)

const eventPreviewLimit = 120

// EditorEvent is one line of editor_events.jsonl.
type EditorEvent struct {
	Event     string       `json:"event"`
	Version   int          `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   EventPayload `json:"payload"`
}

type EventPayload struct {
	LastIndex   int    `json:"last_index,omitempty"`
	LastPreview string `json:"last_preview"`
}

// Exporter mirrors the queue into plain files that editors and other tools
// can watch: remember_last.txt holds the newest entry's text and
// editor_events.jsonl gets one line per change.
type Exporter struct {
	dir    string
	clock  core.Clock
	events *jsonl.File[EditorEvent]

	mu      sync.Mutex
	version int
}

// NewExporter writes into dir. Event versions continue from the last line
// already in the stream.
func NewExporter(dir string, clock core.Clock) *Exporter {
	if clock == nil {
		clock = core.SystemClock
	}

	e := &Exporter{
		dir:    dir,
		clock:  clock,
		events: jsonl.NewFile[EditorEvent](filepath.Join(dir, "editor_events.jsonl")),
	}

	if tail, err := e.events.LoadTail(1); err == nil && len(tail) == 1 {
		e.version = tail[0].Version
	}

	return e
}

func (e *Exporter) LastPath() string {
	return filepath.Join(e.dir, "remember_last.txt")
}

func (e *Exporter) EventsPath() string {
	return e.events.Path()
}

// QueueChanged implements Notifier. Export failures are logged and never
// reach the queue.
func (e *Exporter) QueueChanged(event string, last *Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	text := ""
	payload := EventPayload{}
	if last != nil {
		text = last.Text
		payload.LastIndex = last.Index
		payload.LastPreview = truncateRunes(last.Text, eventPreviewLimit)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		slog.Warn("editor export failed", "dir", e.dir, "error", err)
		return
	}

	if err := os.WriteFile(e.LastPath(), []byte(text), 0o644); err != nil {
		slog.Warn("editor export failed", "path", e.LastPath(), "error", err)
	}

	e.version++
	ev := EditorEvent{Event: event, Version: e.version, Timestamp: e.clock.Now(), Payload: payload}
	if err := e.events.Append(ev); err != nil {
		slog.Warn("editor export failed", "path", e.events.Path(), "error", err)
	}
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
