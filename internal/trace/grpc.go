// Package trace - gRPC interceptors for trace propagation.
package trace

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

// UnaryServerInterceptor continues the caller's trace (or starts one), turns an
// AppError returned by the handler into its gRPC status and logs each call.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = extractMetadata(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		err = statusError(err)
		logCall(ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streams such as health Watch.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := extractMetadata(ss.Context())
		start := time.Now()
		err := statusError(handler(srv, &tracedStream{ServerStream: ss, ctx: ctx}))
		logCall(ctx, info.FullMethod, start, err)
		return err
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

// extractMetadata reads trace context from incoming gRPC metadata.
func extractMetadata(ctx context.Context) context.Context {
	m := make(map[string]string, 3)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, k := range []string{TraceIDKey, SpanIDKey, ParentSpanIDKey} {
			if v := md.Get(k); len(v) > 0 {
				m[k] = v[0]
			}
		}
	}
	return WithContext(ctx, FromMap(m))
}

// statusError converts an AppError anywhere in err's chain into a status error
// carrying its code and ErrorInfo detail. Other errors pass through.
func statusError(err error) error {
	if ae, ok := apperrors.As(err); ok {
		return ae.GRPCStatus().Err()
	}
	return err
}

func logCall(ctx context.Context, method string, start time.Time, err error) {
	Logger(ctx).Debug("grpc call",
		"method", method,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
}
