package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/engine"
)

// Service abstracts the engine operations the transport layer depends on.
type Service interface {
	Snapshot() []*domain.Alarm
	Create(defaults domain.Defaults) (*domain.Alarm, error)
	Commit(ctx context.Context, a *domain.Alarm) (engine.CommitResult, error)
	Delete(ctx context.Context, id string) (engine.DeleteResult, error)
	ToggleIsSet(ctx context.Context, id string) (*domain.Alarm, error)
	Status() engine.Status
}

var _ AlarmServiceServer = (*Server)(nil)

// PendingFunc lists the pending wake requests.
type PendingFunc func() []PendingFiring

// Server implements AlarmServiceServer on top of the engine.
type Server struct {
	// service provides the alarm operations.
	service Service
	// pending reports pending firings for GetStatus, may be nil.
	pending PendingFunc
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPending reports pending firings in GetStatus.
func WithPending(pending PendingFunc) ServerOption {
	return func(s *Server) {
		s.pending = pending
	}
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service, opts ...ServerOption) *Server {
	s := &Server{
		service: service,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ListAlarms returns the ordered alarm set.
func (s *Server) ListAlarms(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := AlarmsToValue(s.service.Snapshot())
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode alarm set", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode alarms")
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarms: list,
		FieldStale:  structpb.NewBoolValue(s.service.Status().Stale),
	}}, nil
}

// CreateAlarm returns a fresh alarm that is not yet part of the set.
func (s *Server) CreateAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	defaults, err := DefaultsFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, err := s.service.Create(defaults)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to create alarm", "error", err)

		return nil, status.Error(codes.Internal, "unable to create alarm")
	}

	return alarmResponse(a, nil)
}

// CommitAlarm inserts or replaces the alarm in the request.
func (s *Server) CommitAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := AlarmFromStruct(req.GetFields()[FieldAlarm].GetStructValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.service.Commit(ctx, a)
	if err != nil {
		return nil, toStatus(err)
	}

	return alarmResponse(a, map[string]*structpb.Value{
		FieldResult: structpb.NewStringValue(result.String()),
	})
}

// DeleteAlarm removes the alarm with the requested ID.
func (s *Server) DeleteAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := StringField(req, FieldID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	result, err := s.service.Delete(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldResult: structpb.NewStringValue(result.String()),
	}}, nil
}

// ToggleAlarm flips IsSet of the alarm with the requested ID.
func (s *Server) ToggleAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := StringField(req, FieldID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	a, err := s.service.ToggleIsSet(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	return alarmResponse(a, nil)
}

// GetStatus reports the engine session state.
func (s *Server) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := s.service.Status()

	var pending []PendingFiring
	if s.pending != nil {
		pending = s.pending()
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldMode:       structpb.NewStringValue(st.Mode),
		FieldState:      structpb.NewStringValue(st.State.String()),
		FieldCount:      structpb.NewNumberValue(float64(st.Alarms)),
		FieldSkipped:    structpb.NewNumberValue(float64(st.Skipped)),
		FieldStale:      structpb.NewBoolValue(st.Stale),
		FieldGeneration: structpb.NewNumberValue(float64(st.Generation)),
		FieldPending:    pendingToValue(pending),
	}}, nil
}

// alarmResponse wraps an alarm plus extra fields into a response.
func alarmResponse(a *domain.Alarm, extra map[string]*structpb.Value) (*structpb.Struct, error) {
	encoded, err := AlarmToStruct(a)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode alarm")
	}

	fields := map[string]*structpb.Value{
		FieldAlarm: structpb.NewStructValue(encoded),
	}

	for name, value := range extra {
		fields[name] = value
	}

	return &structpb.Struct{Fields: fields}, nil
}

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidAlarm), errors.Is(err, domain.ErrMalformedRecord):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
