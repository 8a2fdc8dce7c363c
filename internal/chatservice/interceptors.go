package chatservice

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CorrelationIDInterceptor generates or reads a correlation id from
// metadata and attaches it to a request-scoped zerolog logger. Adapted
// from the teacher's internal/grpcapi/interceptors.go
// CorrelationIDInterceptor, unchanged in shape.
func CorrelationIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		corrHeaders := md.Get("x-correlation-id")

		var corrID string
		if len(corrHeaders) > 0 && corrHeaders[0] != "" {
			corrID = corrHeaders[0]
		} else {
			corrID = uuid.New().String()
		}

		logger := log.With().Str("correlation_id", corrID).Str("grpc_method", info.FullMethod).Logger()
		ctx = logger.WithContext(ctx)

		start := zerolog.Now()
		resp, err := handler(ctx, req)
		elapsed := zerolog.Now().Sub(start)

		if err != nil {
			logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("grpc_request_failed")
		} else {
			logger.Debug().Dur("elapsed", elapsed).Msg("grpc_request_completed")
		}
		return resp, err
	}
}

// RecoveryInterceptor recovers from panics and returns an Internal error,
// copied verbatim in spirit from the teacher's interceptors.go.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(ctx).Error().Interface("panic", r).Str("method", info.FullMethod).Msg("panic recovered in grpc handler")
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor emits one structured line per RPC with method and
// outcome, per SPEC_FULL.md's ambient logging rule.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		logger := log.Ctx(ctx)
		ev := logger.Info()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).Msg("grpc_call")
		return resp, err
	}
}

// ChainUnaryServer composes interceptors into one, executed in the order
// given. Copied verbatim from the teacher's interceptors.go.
func ChainUnaryServer(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, next)
			}
		}
		return chained(ctx, req)
	}
}
