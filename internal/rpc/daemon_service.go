package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const DaemonServiceName = "recall.v1.DaemonService"

// DaemonServer reports on and stops the running daemon.
type DaemonServer interface {
	DaemonStatus(ctx context.Context) (DaemonStatus, error)
	Shutdown(ctx context.Context) (string, error)
}

type DaemonStatus struct {
	Bind             string    `json:"bind"`
	MetricsBind      string    `json:"metrics_bind,omitempty"`
	DataDir          string    `json:"data_dir"`
	SnapshotBackend  string    `json:"snapshot_backend"`
	SnapshotSchedule string    `json:"snapshot_schedule,omitempty"`
	PID              int       `json:"pid"`
	StartedAt        time.Time `json:"started_at"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
}

// DaemonHandler serves DaemonService from fixed daemon facts.
type DaemonHandler struct {
	Status    DaemonStatus
	StartTime time.Time
	StopFunc  func()
}

func (h *DaemonHandler) DaemonStatus(_ context.Context) (DaemonStatus, error) {
	status := h.Status
	if !h.StartTime.IsZero() {
		status.StartedAt = h.StartTime
		status.UptimeSeconds = int64(time.Since(h.StartTime).Seconds())
	}
	return status, nil
}

func (h *DaemonHandler) Shutdown(_ context.Context) (string, error) {
	if h.StopFunc != nil {
		go h.StopFunc()
	}
	return "shutting down", nil
}

// RegisterDaemonService exposes srv on s.
func RegisterDaemonService(s grpc.ServiceRegistrar, srv DaemonServer) {
	s.RegisterService(&daemonServiceDesc, srv)
}

var daemonServiceDesc = grpc.ServiceDesc{
	ServiceName: DaemonServiceName,
	HandlerType: (*DaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DaemonServiceName, "GetStatus", func(s DaemonServer, ctx context.Context, _ empty) (DaemonStatus, error) {
			return s.DaemonStatus(ctx)
		}),
		unary(DaemonServiceName, "Shutdown", func(s DaemonServer, ctx context.Context, _ empty) (string, error) {
			return s.Shutdown(ctx)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recall/v1/daemon.proto",
}
