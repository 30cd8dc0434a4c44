package logger

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCInterceptorOptions configures the gRPC logging interceptors
type GRPCInterceptorOptions struct {
	// QuietMethods are logged at debug level when they succeed, e.g. "/grpc.health.v1.Health/Check"
	QuietMethods []string
}

// UnaryServerInterceptor logs every unary call
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return UnaryServerInterceptorWithConfig(logger, GRPCInterceptorOptions{})
}

// UnaryServerInterceptorWithConfig logs unary calls, demoting successful quiet methods to debug
func UnaryServerInterceptorWithConfig(logger *Logger, opts GRPCInterceptorOptions) grpc.UnaryServerInterceptor {
	quiet := methodSet(opts.QuietMethods)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, requestID := ensureRequestID(ctx)

		start := time.Now()
		resp, err := handler(ctx, req)

		logCall(logger, "gRPC call", info.FullMethod, requestID, time.Since(start), err, quiet[info.FullMethod])
		return resp, err
	}
}

// StreamServerInterceptor logs streaming calls when the stream ends
func StreamServerInterceptor(logger *Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		_, requestID := ensureRequestID(ss.Context())

		start := time.Now()
		err := handler(srv, ss)

		logCall(logger, "gRPC stream", info.FullMethod, requestID, time.Since(start), err, false)
		return err
	}
}

// RecoveryInterceptor turns unary handler panics into codes.Internal
func RecoveryInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer recoverRPC(logger, info.FullMethod, extractRequestID(ctx), &err)
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor turns stream handler panics into codes.Internal
func StreamRecoveryInterceptor(logger *Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer recoverRPC(logger, info.FullMethod, extractRequestID(ss.Context()), &err)
		return handler(srv, ss)
	}
}

func recoverRPC(logger *Logger, method, requestID string, err *error) {
	if r := recover(); r != nil {
		logger.Error("gRPC panic recovered",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.Any("panic", r),
			zap.Stack("stacktrace"),
		)
		*err = status.Errorf(codes.Internal, "internal server error: %v", r)
	}
}

func logCall(logger *Logger, msg, method, requestID string, latency time.Duration, err error, quiet bool) {
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("service", path.Dir(method)[1:]),
		zap.String("rpc", path.Base(method)),
		zap.Duration("latency", latency),
		zap.String("code", code.String()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	level := zapcore.ErrorLevel
	switch code {
	case codes.OK:
		level = zapcore.InfoLevel
		if quiet {
			level = zapcore.DebugLevel
		}
	case codes.Canceled, codes.DeadlineExceeded, codes.NotFound:
		level = zapcore.WarnLevel
	}
	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func ensureRequestID(ctx context.Context) (context.Context, string) {
	requestID := extractRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return WithRequestID(ctx, requestID), requestID
}

func extractRequestID(ctx context.Context) string {
	if requestID := GetRequestID(ctx); requestID != "" {
		return requestID
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-request-id"); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func methodSet(methods []string) map[string]bool {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[m] = true
	}
	return set
}
