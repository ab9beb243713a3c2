package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/service/common"
)

// auditUnaryInterceptor logs who sent which command and how it ended.
func auditUnaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	ctx = logger.WithKV(ctx, "actor", common.ActorFromIncoming(ctx))

	if message, ok := req.(*structpb.Struct); ok {
		ctx = logger.WithKV(ctx, "command_type", message.GetFields()["type"].GetStringValue())
	}

	startedAt := time.Now()
	resp, err := handler(ctx, req)

	logger.InfoKV(ctx, "Command received",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(startedAt))

	return resp, err
}

// auditStreamInterceptor logs subscribers as they come and go.
func auditStreamInterceptor(
	srv any,
	stream grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	ctx := logger.WithKV(stream.Context(), "actor", common.ActorFromIncoming(stream.Context()))

	logger.InfoKV(ctx, "Subscriber attached", "method", info.FullMethod)

	err := handler(srv, stream)

	logger.InfoKV(ctx, "Subscriber detached", "method", info.FullMethod, "code", status.Code(err).String())

	return err
}
