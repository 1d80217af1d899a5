//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-clock/internal/config"
	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/version"
)

// Client wraps the AlarmService gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to alarmd.
	conn *grpc.ClientConn
	// service is the AlarmService client.
	service *api.AlarmServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent with every call when set.
	actor string
}

// Status is the engine status reported by alarmd.
type Status struct {
	// Mode is poll or analytic.
	Mode string
	// State is the session lifecycle state.
	State string
	// Alarms is the size of the alarm set.
	Alarms int
	// Skipped counts records dropped at load.
	Skipped int
	// Stale is true while the newest alarm set has not been persisted.
	Stale bool
	// Generation numbers the alarm set mutations.
	Generation uint64
	// Pending lists the wake requests waiting to fire.
	Pending []api.PendingFiring
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the caller identity to every call.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

var (
	// ErrAlarmNotFound is returned by Get when no alarm has the ID.
	ErrAlarmNotFound = errors.New("alarm not found")
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
)

// Dial establishes a gRPC connection to alarmd.
// Note: this uses insecure transport credentials; alarmd listens on loopback by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(
		address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent("alarm-clock")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial alarm server: %w", err)
	}

	client := &Client{
		conn:        conn,
		service:     api.NewAlarmServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// List returns the alarm set and whether it is stale on disk.
func (c *Client) List(ctx context.Context) ([]*domain.Alarm, bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.ListAlarms(callCtx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("list alarms: %w", err)
	}

	list, err := api.AlarmsFromValue(resp.GetFields()[api.FieldAlarms])
	if err != nil {
		return nil, false, fmt.Errorf("decode alarms: %w", err)
	}

	return list, resp.GetFields()[api.FieldStale].GetBoolValue(), nil
}

// Get returns the alarm with the given ID.
func (c *Client) Get(ctx context.Context, id string) (*domain.Alarm, error) {
	list, _, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range list {
		if a.ID == id {
			return a, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
}

// Create asks alarmd for a fresh, uncommitted alarm.
func (c *Client) Create(ctx context.Context, defaults domain.Defaults) (*domain.Alarm, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.CreateAlarm(callCtx, api.DefaultsToStruct(defaults))
	if err != nil {
		return nil, fmt.Errorf("create alarm: %w", err)
	}

	return decodeAlarm(resp)
}

// Commit inserts or replaces the alarm and returns "inserted" or "replaced".
func (c *Client) Commit(ctx context.Context, a *domain.Alarm) (string, error) {
	encoded, err := api.AlarmToStruct(a)
	if err != nil {
		return "", err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.CommitAlarm(callCtx, &structpb.Struct{Fields: map[string]*structpb.Value{
		api.FieldAlarm: structpb.NewStructValue(encoded),
	}})
	if err != nil {
		return "", fmt.Errorf("commit alarm: %w", err)
	}

	return api.StringField(resp, api.FieldResult), nil
}

// Delete removes the alarm and returns "removed" or "not_found".
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.DeleteAlarm(callCtx, api.IDRequest(id))
	if err != nil {
		return "", fmt.Errorf("delete alarm: %w", err)
	}

	return api.StringField(resp, api.FieldResult), nil
}

// Toggle flips the alarm's IsSet flag and returns the updated alarm.
func (c *Client) Toggle(ctx context.Context, id string) (*domain.Alarm, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.ToggleAlarm(callCtx, api.IDRequest(id))
	if err != nil {
		return nil, fmt.Errorf("toggle alarm: %w", err)
	}

	return decodeAlarm(resp)
}

// Status returns the engine status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.service.GetStatus(callCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	fields := resp.GetFields()

	return &Status{
		Mode:       fields[api.FieldMode].GetStringValue(),
		State:      fields[api.FieldState].GetStringValue(),
		Alarms:     int(fields[api.FieldCount].GetNumberValue()),
		Skipped:    int(fields[api.FieldSkipped].GetNumberValue()),
		Stale:      fields[api.FieldStale].GetBoolValue(),
		Generation: uint64(fields[api.FieldGeneration].GetNumberValue()),
		Pending:    api.PendingFromValue(fields[api.FieldPending]),
	}, nil
}

// decodeAlarm extracts the alarm of a response.
func decodeAlarm(resp *structpb.Struct) (*domain.Alarm, error) {
	a, err := api.AlarmFromStruct(resp.GetFields()[api.FieldAlarm].GetStructValue())
	if err != nil {
		return nil, fmt.Errorf("decode alarm: %w", err)
	}

	return a, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, when
// known, travels as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
