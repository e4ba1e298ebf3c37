package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/remember"
)

// Service is the set of operations offered to the CLI, either in-process by
// an Engine or over gRPC by the daemon client.
type Service interface {
	AddContext(ctx context.Context, content string, tags []string) (contextstore.Item, error)
	ListContext(ctx context.Context) ([]contextstore.Item, error)
	SearchContext(ctx context.Context, query string, limit int) ([]contextstore.SearchResult, error)

	AppendTurn(ctx context.Context, role core.Role, text string) (conversation.Turn, error)
	Chat(ctx context.Context, tail int) (ChatView, error)

	BuildPrompt(ctx context.Context, req PromptRequest) (budget.Prompt, error)

	Remember(ctx context.Context, text string) (RememberResult, error)
	Entries(ctx context.Context) ([]remember.Entry, error)
	RemoveEntry(ctx context.Context, index int) error
	PurgeExecuted(ctx context.Context) (int, error)
	Renumber(ctx context.Context) (int, error)
	ClearQueue(ctx context.Context) (int, error)
	Perform(ctx context.Context, req PerformRequest) (remember.Report, error)

	Status(ctx context.Context) (Status, error)
	Clear(ctx context.Context) (ClearResult, error)

	Snapshot(ctx context.Context) (bridge.Info, error)
	Snapshots(ctx context.Context) ([]bridge.Info, error)
	SnapshotDetail(ctx context.Context, id core.SnapshotID) (SnapshotDetail, error)
	PruneSnapshots(ctx context.Context, retain int) (int, error)
}

// Mix selects which sources feed a prompt.
type Mix string

const (
	MixContext Mix = "context"
	MixChat    Mix = "chat"
	MixBoth    Mix = "both"
)

func ParseMix(value string) (Mix, error) {
	switch mix := Mix(strings.ToLower(strings.TrimSpace(value))); mix {
	case "":
		return MixBoth, nil
	case MixContext, MixChat, MixBoth:
		return mix, nil
	default:
		return "", fmt.Errorf("%w: mix must be one of context, chat, both", core.ErrInvalidInput)
	}
}

// PromptRequest is a budget request plus the source mix. An empty Mix means
// both.
type PromptRequest struct {
	MaxTokens      int    `json:"max_tokens"`
	ReservedTokens int    `json:"reserved_tokens"`
	Header         string `json:"header,omitempty"`
	Mix            Mix    `json:"mix,omitempty"`
}

// ChatView is the retained transcript: every summary plus the turns that are
// still kept, optionally cut to the newest Tail.
type ChatView struct {
	Summaries []conversation.Summary `json:"summaries"`
	Turns     []conversation.Turn    `json:"turns"`
	Interval  int                    `json:"interval"`
}

// RememberResult reports the queued entry. Created is false when the text
// repeated the newest pending entry.
type RememberResult struct {
	Entry   remember.Entry `json:"entry"`
	Created bool           `json:"created"`
}

// PerformMode selects which entries a perform call runs.
type PerformMode string

const (
	PerformLast  PerformMode = "last"
	PerformIndex PerformMode = "index"
	PerformRange PerformMode = "range"
	PerformAll   PerformMode = "all"
)

type PerformRequest struct {
	Mode    PerformMode `json:"mode"`
	Index   int         `json:"index,omitempty"`
	Start   int         `json:"start,omitempty"`
	End     int         `json:"end,omitempty"`
	Confirm bool        `json:"confirm,omitempty"`
}

// Status is the memory status summary.
type Status struct {
	Total        int    `json:"total"`
	Pending      int    `json:"pending"`
	Executed     int    `json:"executed"`
	LastPreview  string `json:"last_preview,omitempty"`
	ContextItems int    `json:"context_items"`
	Turns        int    `json:"turns"`
	Summaries    int    `json:"summaries"`
	MaxBatch     int    `json:"max_batch"`
}

// ClearResult counts what memory clear removed, per category.
type ClearResult struct {
	Entries      int `json:"entries"`
	Summaries    int `json:"summaries"`
	Snapshots    int `json:"snapshots"`
	ContextItems int `json:"context_items"`
}

// SnapshotDetail describes the contents of one stored snapshot.
type SnapshotDetail struct {
	ID           core.SnapshotID `json:"id"`
	SnapshotAt   time.Time       `json:"snapshot_at"`
	Version      int             `json:"version"`
	ContextItems int             `json:"context_items"`
	Turns        int             `json:"turns"`
	Summaries    int             `json:"summaries"`
	Entries      int             `json:"entries"`
	Pending      int             `json:"pending"`
}
