//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	alarmgrpc "github.com/oshokin/task-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/task-alarm/internal/config"
	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// ErrCommandRejected is returned together with the ERROR event the daemon
// replied with.
var ErrCommandRejected = errors.New("command rejected")

// Client wraps the gRPC AlarmService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alarm daemon.
	conn *grpc.ClientConn
	// api is the AlarmService client stub.
	api alarmgrpc.AlarmServiceClient

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
	// actor is attached to every call when set.
	actor *Actor
	// dialOptions are appended to the default dial options.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the actor to every call.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = &actor
	}
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the alarm daemon.
// Note: this uses insecure transport credentials; the daemon listens on
// loopback by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial alarm daemon: %w", err)
	}

	client.conn = conn
	client.api = alarmgrpc.NewAlarmServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Command sends one command and returns the reply event. Ignored commands
// yield a nil event. An ERROR reply is returned along with ErrCommandRejected.
func (c *Client) Command(ctx context.Context, command domain.Command) (*domain.Event, error) {
	request, err := alarmgrpc.CommandToStruct(&command)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.api.Command(callCtx, request)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", command.Type, err)
	}

	event, err := alarmgrpc.EventFromStruct(reply)
	if err != nil {
		return nil, err
	}

	if event != nil && event.Type == domain.EventError {
		return event, fmt.Errorf("%w: %s", ErrCommandRejected, event.Error)
	}

	return event, nil
}

// Subscribe streams broadcast events into handle until ctx is cancelled, the
// daemon closes the stream or handle returns an error.
func (c *Client) Subscribe(ctx context.Context, handle func(*domain.Event) error) error {
	if c.actor != nil {
		ctx = WithOutgoingActor(ctx, *c.actor)
	}

	stream, err := c.api.Subscribe(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		message, err := stream.Recv()

		switch {
		case errors.Is(err, io.EOF):
			return nil
		case status.Code(err) == codes.Canceled && ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("receive event: %w", err)
		}

		event, err := alarmgrpc.EventFromStruct(message)
		if err != nil {
			return err
		}

		if event == nil {
			continue
		}

		if err = handle(event); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor is
// attached when set.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != nil {
		ctx = WithOutgoingActor(ctx, *c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
