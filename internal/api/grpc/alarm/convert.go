package alarm

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// Message field names.
const (
	FieldAlarm      = "alarm"
	FieldAlarms     = "alarms"
	FieldID         = "id"
	FieldResult     = "result"
	FieldStale      = "stale"
	FieldTime       = "time"
	FieldName       = "name"
	FieldColor      = "color"
	FieldDisabled   = "disabled"
	FieldMode       = "mode"
	FieldState      = "state"
	FieldCount      = "count"
	FieldSkipped    = "skipped"
	FieldGeneration = "generation"
	FieldPending    = "pending"
	FieldIdentifier = "identifier"
	FieldAlarmID    = "alarmId"
	FieldAt         = "at"
)

// errMissingField is returned when a required message field is absent.
var errMissingField = errors.New("missing field")

// AlarmToStruct encodes the alarm as a record-shaped Struct.
func AlarmToStruct(a *domain.Alarm) (*structpb.Struct, error) {
	data, err := domain.MarshalRecord(a)
	if err != nil {
		return nil, err
	}

	result := new(structpb.Struct)
	if err = protojson.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("convert alarm record: %w", err)
	}

	return result, nil
}

// AlarmFromStruct decodes a record-shaped Struct with the store's strict rules.
func AlarmFromStruct(s *structpb.Struct) (*domain.Alarm, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: %s", errMissingField, FieldAlarm)
	}

	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("convert alarm struct: %w", err)
	}

	return domain.UnmarshalRecord(data)
}

// AlarmsToValue encodes an alarm list.
func AlarmsToValue(list []*domain.Alarm) (*structpb.Value, error) {
	values := make([]*structpb.Value, 0, len(list))

	for _, a := range list {
		s, err := AlarmToStruct(a)
		if err != nil {
			return nil, err
		}

		values = append(values, structpb.NewStructValue(s))
	}

	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

// AlarmsFromValue decodes an alarm list.
func AlarmsFromValue(v *structpb.Value) ([]*domain.Alarm, error) {
	values := v.GetListValue().GetValues()
	result := make([]*domain.Alarm, 0, len(values))

	for i, item := range values {
		a, err := AlarmFromStruct(item.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("alarm %d: %w", i, err)
		}

		result = append(result, a)
	}

	return result, nil
}

// DefaultsToStruct encodes creation defaults.
func DefaultsToStruct(defaults domain.Defaults) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldDisabled: structpb.NewBoolValue(defaults.Disabled),
	}

	if defaults.Time != nil {
		fields[FieldTime] = structpb.NewStringValue(defaults.Time.String())
	}

	if defaults.Color != 0 {
		fields[FieldColor] = structpb.NewStringValue(defaults.Color.Hex())
	}

	if defaults.Name != "" {
		fields[FieldName] = structpb.NewStringValue(defaults.Name)
	}

	return &structpb.Struct{Fields: fields}
}

// DefaultsFromStruct decodes creation defaults. Every field is optional.
func DefaultsFromStruct(s *structpb.Struct) (domain.Defaults, error) {
	var defaults domain.Defaults

	if value := StringField(s, FieldTime); value != "" {
		t, err := domain.ParseTimeOfDay(value)
		if err != nil {
			return defaults, err
		}

		defaults.Time = &t
	}

	if value := StringField(s, FieldColor); value != "" {
		c, err := domain.ParseColor(value)
		if err != nil {
			return defaults, err
		}

		defaults.Color = c
	}

	defaults.Name = StringField(s, FieldName)
	defaults.Disabled = s.GetFields()[FieldDisabled].GetBoolValue()

	return defaults, nil
}

// StringField returns a string field of s or "".
func StringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// IDRequest builds a request addressing one alarm.
func IDRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID: structpb.NewStringValue(id),
	}}
}

// PendingFiring is a wake request reported by GetStatus.
type PendingFiring struct {
	// Identifier is the wake request identifier.
	Identifier int
	// AlarmID is the alarm the request belongs to, empty when unknown.
	AlarmID string
	// At is the instant the request fires at.
	At time.Time
}

// pendingToValue encodes pending firings.
func pendingToValue(pending []PendingFiring) *structpb.Value {
	values := make([]*structpb.Value, 0, len(pending))

	for _, p := range pending {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			FieldIdentifier: structpb.NewNumberValue(float64(p.Identifier)),
			FieldAlarmID:    structpb.NewStringValue(p.AlarmID),
			FieldAt:         structpb.NewStringValue(p.At.Format(time.RFC3339)),
		}}))
	}

	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// PendingFromValue decodes pending firings.
func PendingFromValue(v *structpb.Value) []PendingFiring {
	values := v.GetListValue().GetValues()
	result := make([]PendingFiring, 0, len(values))

	for _, item := range values {
		fields := item.GetStructValue().GetFields()
		at, _ := time.Parse(time.RFC3339, fields[FieldAt].GetStringValue())

		result = append(result, PendingFiring{
			Identifier: int(fields[FieldIdentifier].GetNumberValue()),
			AlarmID:    fields[FieldAlarmID].GetStringValue(),
			At:         at,
		})
	}

	return result
}
