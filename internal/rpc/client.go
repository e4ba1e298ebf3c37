package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

// Client talks to a running daemon and implements memory.Service.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

var _ memory.Service = (*Client)(nil)

// Dial connects to addr without transport security. The connection is made
// lazily on the first call.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial daemon at %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	return invoke[DaemonStatus](ctx, c.conn, DaemonServiceName, "GetStatus", empty{})
}

func (c *Client) Shutdown(ctx context.Context) (string, error) {
	return invoke[string](ctx, c.conn, DaemonServiceName, "Shutdown", empty{})
}

func (c *Client) AddContext(ctx context.Context, content string, tags []string) (contextstore.Item, error) {
	return invoke[contextstore.Item](ctx, c.conn, MemoryServiceName, "AddContext", addContextRequest{Content: content, Tags: tags})
}

func (c *Client) ListContext(ctx context.Context) ([]contextstore.Item, error) {
	return invoke[[]contextstore.Item](ctx, c.conn, MemoryServiceName, "ListContext", empty{})
}

func (c *Client) SearchContext(ctx context.Context, query string, limit int) ([]contextstore.SearchResult, error) {
	return invoke[[]contextstore.SearchResult](ctx, c.conn, MemoryServiceName, "SearchContext", searchRequest{Query: query, Limit: limit})
}

func (c *Client) AppendTurn(ctx context.Context, role core.Role, text string) (conversation.Turn, error) {
	return invoke[conversation.Turn](ctx, c.conn, MemoryServiceName, "AppendTurn", appendTurnRequest{Role: role, Text: text})
}

func (c *Client) Chat(ctx context.Context, tail int) (memory.ChatView, error) {
	return invoke[memory.ChatView](ctx, c.conn, MemoryServiceName, "Chat", chatRequest{Tail: tail})
}

func (c *Client) BuildPrompt(ctx context.Context, req memory.PromptRequest) (budget.Prompt, error) {
	return invoke[budget.Prompt](ctx, c.conn, MemoryServiceName, "BuildPrompt", req)
}

func (c *Client) Remember(ctx context.Context, text string) (memory.RememberResult, error) {
	return invoke[memory.RememberResult](ctx, c.conn, MemoryServiceName, "Remember", textRequest{Text: text})
}

func (c *Client) Entries(ctx context.Context) ([]remember.Entry, error) {
	return invoke[[]remember.Entry](ctx, c.conn, MemoryServiceName, "Entries", empty{})
}

func (c *Client) RemoveEntry(ctx context.Context, index int) error {
	_, err := invoke[empty](ctx, c.conn, MemoryServiceName, "RemoveEntry", indexRequest{Index: index})
	return err
}

func (c *Client) PurgeExecuted(ctx context.Context) (int, error) {
	return invoke[int](ctx, c.conn, MemoryServiceName, "PurgeExecuted", empty{})
}

func (c *Client) Renumber(ctx context.Context) (int, error) {
	return invoke[int](ctx, c.conn, MemoryServiceName, "Renumber", empty{})
}

func (c *Client) ClearQueue(ctx context.Context) (int, error) {
	return invoke[int](ctx, c.conn, MemoryServiceName, "ClearQueue", empty{})
}

func (c *Client) Perform(ctx context.Context, req memory.PerformRequest) (remember.Report, error) {
	return invoke[remember.Report](ctx, c.conn, MemoryServiceName, "Perform", req)
}

func (c *Client) Status(ctx context.Context) (memory.Status, error) {
	return invoke[memory.Status](ctx, c.conn, MemoryServiceName, "Status", empty{})
}

func (c *Client) Clear(ctx context.Context) (memory.ClearResult, error) {
	return invoke[memory.ClearResult](ctx, c.conn, MemoryServiceName, "Clear", empty{})
}

func (c *Client) Snapshot(ctx context.Context) (bridge.Info, error) {
	return invoke[bridge.Info](ctx, c.conn, MemoryServiceName, "Snapshot", empty{})
}

func (c *Client) Snapshots(ctx context.Context) ([]bridge.Info, error) {
	return invoke[[]bridge.Info](ctx, c.conn, MemoryServiceName, "Snapshots", empty{})
}

func (c *Client) SnapshotDetail(ctx context.Context, id core.SnapshotID) (memory.SnapshotDetail, error) {
	return invoke[memory.SnapshotDetail](ctx, c.conn, MemoryServiceName, "SnapshotDetail", snapshotRequest{ID: id})
}

func (c *Client) PruneSnapshots(ctx context.Context, retain int) (int, error) {
	return invoke[int](ctx, c.conn, MemoryServiceName, "PruneSnapshots", retainRequest{Retain: retain})
}
