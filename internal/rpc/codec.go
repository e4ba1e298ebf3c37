// Package rpc carries the memory service over gRPC. Messages are
// structpb.Struct values holding the JSON form of the memory types, and the
// services are described by hand-written grpc.ServiceDesc values.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erg0nix/recall/internal/core"
)

// reply wraps every response so slices and scalars travel as an object.
type reply[T any] struct {
	Value T `json:"value"`
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	return structpb.NewStruct(fields)
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// unary builds a method whose request decodes into Req and whose response is
// encoded from Resp. S is the handler type registered with the service.
func unary[S, Req, Resp any](service, name string, call func(S, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, msg any) (any, error) {
				var req Req
				if err := fromStruct(msg.(*structpb.Struct), &req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}

				resp, err := call(srv.(S), ctx, req)
				if err != nil {
					return nil, toStatus(err)
				}

				out, err := toStruct(reply[Resp]{Value: resp})
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}

			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// invoke calls service/method on conn and decodes the wrapped response.
func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, service, method string, req any) (Resp, error) {
	var out reply[Resp]

	in, err := toStruct(req)
	if err != nil {
		return out.Value, err
	}

	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, in, resp); err != nil {
		return out.Value, fromStatus(err)
	}

	if err := fromStruct(resp, &out); err != nil {
		return out.Value, err
	}
	return out.Value, nil
}

// toStatus maps the error taxonomy onto gRPC codes. BatchTooLarge carries
// its sizes as a detail so the client can rebuild it.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, core.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, core.ErrBatchTooLarge):
		code = codes.ResourceExhausted
	case errors.Is(err, core.ErrNothingToPerform):
		code = codes.FailedPrecondition
	case errors.Is(err, core.ErrStorageCorruption):
		code = codes.DataLoss
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}

	st := status.New(code, err.Error())

	var tooLarge *core.BatchTooLargeError
	if errors.As(err, &tooLarge) {
		detail, derr := structpb.NewStruct(map[string]any{
			"requested": tooLarge.Requested,
			"limit":     tooLarge.Limit,
		})
		if derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
	}

	return st.Err()
}

// remoteError keeps the server's message and unwraps to the matching
// sentinel.
type remoteError struct {
	msg  string
	kind error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.kind }

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var kind error
	switch st.Code() {
	case codes.InvalidArgument:
		kind = core.ErrInvalidInput
	case codes.NotFound:
		kind = core.ErrNotFound
	case codes.ResourceExhausted:
		for _, d := range st.Details() {
			if s, ok := d.(*structpb.Struct); ok {
				return &core.BatchTooLargeError{
					Requested: int(s.GetFields()["requested"].GetNumberValue()),
					Limit:     int(s.GetFields()["limit"].GetNumberValue()),
				}
			}
		}
		kind = core.ErrBatchTooLarge
	case codes.FailedPrecondition:
		kind = core.ErrNothingToPerform
	case codes.DataLoss:
		kind = core.ErrStorageCorruption
	case codes.Canceled:
		kind = context.Canceled
	case codes.DeadlineExceeded:
		kind = context.DeadlineExceeded
	default:
		return err
	}

	return &remoteError{msg: st.Message(), kind: kind}
}
