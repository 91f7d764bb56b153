// internal/adapters/grpc/interceptors.go
package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/pkg/auth"
)

const requestIDHeader = "x-request-id"

// publicMethods skip authentication. Rate tables are needed for offline quotes before sign-in.
var publicMethods = map[string]bool{
	pb.OrderService_GetRateTable_FullMethodName: true,
}

type actorKey struct{}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// RequestLogger tags each call with a request ID and logs its outcome.
func RequestLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLog := log.With(zap.String("request_id", requestID), zap.String("method", info.FullMethod))
		ctx = logger.WithContext(ctx, reqLog)

		start := time.Now()
		resp, err := handler(ctx, req)
		reqLog.Info("request handled",
			zap.Duration("duration", time.Since(start)),
			zap.String("code", status.Code(err).String()))
		return resp, err
	}
}

// AuthInterceptor validates the bearer token and stores the caller as a domain.Actor.
func AuthInterceptor(secret []byte) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization")
		}
		token := strings.TrimPrefix(authHeader[0], "Bearer ")
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		actor := domain.Actor{ID: claims.ActorID, Role: domain.ActorRole(claims.Role)}
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("actor_id", actor.ID)))
		return handler(withActor(ctx, actor), req)
	}
}

// BearerToken attaches token to every outgoing call.
func BearerToken(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
