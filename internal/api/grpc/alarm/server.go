package alarm

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/service/notifier"
)

// Service abstracts the alarm manager the transport layer depends on.
type Service interface {
	Submit(ctx context.Context, command domain.Command) (*domain.Event, error)
	Subscribe() *notifier.Subscription
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// service runs commands and owns the subscriber set.
	service Service
}

var _ AlarmServiceServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Command decodes the command, runs it and returns the reply event. Commands
// the service ignores get an empty reply. A message that does not decode into
// a command is answered with an ERROR event carrying the message as sent.
func (s *Server) Command(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	var event *domain.Event

	command, err := CommandFromStruct(req)
	if err != nil {
		logger.WarnKV(ctx, "Rejecting undecodable command", "error", err)

		event = domain.NewEvent(domain.EventError, time.Now())
		event.Error = err.Error()
		event.Payload = req.AsMap()
	} else {
		event, err = s.service.Submit(ctx, command)
		if err != nil {
			return nil, toStatus(err)
		}
	}

	if event == nil {
		return new(structpb.Struct), nil
	}

	reply, err := EventToStruct(event)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode reply")
	}

	return reply, nil
}

// Subscribe streams broadcast events to the caller. The stream ends with
// Unavailable when the service drops the subscription, either because the
// client fell behind or because the service stopped.
func (s *Server) Subscribe(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	subscription := s.service.Subscribe()
	defer subscription.Close()

	logger.Debugf(ctx, "Subscriber connected")

	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "Subscriber disconnected")

			return nil
		case event, ok := <-subscription.Events():
			if !ok {
				return status.Error(codes.Unavailable, "subscription closed")
			}

			message, err := EventToStruct(event)
			if err != nil {
				logger.WarnKV(ctx, "Unable to encode event", "event_type", event.Type, "error", err)

				continue
			}

			if err = stream.Send(message); err != nil {
				return err
			}
		}
	}
}

func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	return status.Error(codes.Unavailable, err.Error())
}
