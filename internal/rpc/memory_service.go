package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

const MemoryServiceName = "recall.v1.MemoryService"

type empty struct{}

type addContextRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type appendTurnRequest struct {
	Role core.Role `json:"role"`
	Text string    `json:"text"`
}

type chatRequest struct {
	Tail int `json:"tail"`
}

type textRequest struct {
	Text string `json:"text"`
}

type indexRequest struct {
	Index int `json:"index"`
}

type snapshotRequest struct {
	ID core.SnapshotID `json:"id"`
}

type retainRequest struct {
	Retain int `json:"retain"`
}

// RegisterMemoryService exposes svc on s.
func RegisterMemoryService(s grpc.ServiceRegistrar, svc memory.Service) {
	s.RegisterService(&memoryServiceDesc, svc)
}

var memoryServiceDesc = grpc.ServiceDesc{
	ServiceName: MemoryServiceName,
	HandlerType: (*memory.Service)(nil),
	Methods: []grpc.MethodDesc{
		unary(MemoryServiceName, "AddContext", func(s memory.Service, ctx context.Context, r addContextRequest) (contextstore.Item, error) {
			return s.AddContext(ctx, r.Content, r.Tags)
		}),
		unary(MemoryServiceName, "ListContext", func(s memory.Service, ctx context.Context, _ empty) ([]contextstore.Item, error) {
			return s.ListContext(ctx)
		}),
		unary(MemoryServiceName, "SearchContext", func(s memory.Service, ctx context.Context, r searchRequest) ([]contextstore.SearchResult, error) {
			return s.SearchContext(ctx, r.Query, r.Limit)
		}),
		unary(MemoryServiceName, "AppendTurn", func(s memory.Service, ctx context.Context, r appendTurnRequest) (conversation.Turn, error) {
			return s.AppendTurn(ctx, r.Role, r.Text)
		}),
		unary(MemoryServiceName, "Chat", func(s memory.Service, ctx context.Context, r chatRequest) (memory.ChatView, error) {
			return s.Chat(ctx, r.Tail)
		}),
		unary(MemoryServiceName, "BuildPrompt", func(s memory.Service, ctx context.Context, r memory.PromptRequest) (budget.Prompt, error) {
			return s.BuildPrompt(ctx, r)
		}),
		unary(MemoryServiceName, "Remember", func(s memory.Service, ctx context.Context, r textRequest) (memory.RememberResult, error) {
			return s.Remember(ctx, r.Text)
		}),
		unary(MemoryServiceName, "Entries", func(s memory.Service, ctx context.Context, _ empty) ([]remember.Entry, error) {
			return s.Entries(ctx)
		}),
		unary(MemoryServiceName, "RemoveEntry", func(s memory.Service, ctx context.Context, r indexRequest) (empty, error) {
			return empty{}, s.RemoveEntry(ctx, r.Index)
		}),
		unary(MemoryServiceName, "PurgeExecuted", func(s memory.Service, ctx context.Context, _ empty) (int, error) {
			return s.PurgeExecuted(ctx)
		}),
		unary(MemoryServiceName, "Renumber", func(s memory.Service, ctx context.Context, _ empty) (int, error) {
			return s.Renumber(ctx)
		}),
		unary(MemoryServiceName, "ClearQueue", func(s memory.Service, ctx context.Context, _ empty) (int, error) {
			return s.ClearQueue(ctx)
		}),
		unary(MemoryServiceName, "Perform", func(s memory.Service, ctx context.Context, r memory.PerformRequest) (remember.Report, error) {
			return s.Perform(ctx, r)
		}),
		unary(MemoryServiceName, "Status", func(s memory.Service, ctx context.Context, _ empty) (memory.Status, error) {
			return s.Status(ctx)
		}),
		unary(MemoryServiceName, "Clear", func(s memory.Service, ctx context.Context, _ empty) (memory.ClearResult, error) {
			return s.Clear(ctx)
		}),
		unary(MemoryServiceName, "Snapshot", func(s memory.Service, ctx context.Context, _ empty) (bridge.Info, error) {
			return s.Snapshot(ctx)
		}),
		unary(MemoryServiceName, "Snapshots", func(s memory.Service, ctx context.Context, _ empty) ([]bridge.Info, error) {
			return s.Snapshots(ctx)
		}),
		unary(MemoryServiceName, "SnapshotDetail", func(s memory.Service, ctx context.Context, r snapshotRequest) (memory.SnapshotDetail, error) {
			return s.SnapshotDetail(ctx, r.ID)
		}),
		unary(MemoryServiceName, "PruneSnapshots", func(s memory.Service, ctx context.Context, r retainRequest) (int, error) {
			return s.PruneSnapshots(ctx, r.Retain)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recall/v1/memory.proto",
}
