package alarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// ErrMalformedRecord is returned when a stored or transmitted record is
// missing a required field or carries a value of the wrong type.
var ErrMalformedRecord = errors.New("malformed alarm record")

// record is the field-tagged wire form of an Alarm.
type record struct {
	ID        string     `json:"id"`
	Time      recordTime `json:"time"`
	Days      Days       `json:"days"`
	IsSet     bool       `json:"isSet"`
	Color     uint32     `json:"color"`
	Name      string     `json:"name"`
	AudioPath *string    `json:"audioPath"`
	AudioURL  string     `json:"audioURL"`
}

// recordTime is the nested time object of a record.
type recordTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// MarshalRecord encodes the alarm as a self-describing JSON object.
func MarshalRecord(a *Alarm) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil alarm", ErrMalformedRecord)
	}

	data, err := json.Marshal(record{
		ID: a.ID,
		Time: recordTime{
			Hour:   a.Time.Hour,
			Minute: a.Time.Minute,
		},
		Days:      a.Days,
		IsSet:     a.IsSet,
		Color:     uint32(a.Color),
		Name:      a.Name,
		AudioPath: a.AudioPath,
		AudioURL:  a.AudioURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode alarm record: %w", err)
	}

	return data, nil
}

// UnmarshalRecord decodes a record field by field. Every field except
// audioPath is required; nothing is defaulted.
func UnmarshalRecord(data []byte) (*Alarm, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedRecord)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}

	var (
		a   Alarm
		err error
	)

	if a.ID, err = stringField(root, "id"); err != nil {
		return nil, err
	}

	if a.ID == "" {
		return nil, fieldError("id", "empty")
	}

	if a.Time.Hour, err = intField(root, "time.hour", math.MinInt32, math.MaxInt32); err != nil {
		return nil, err
	}

	if a.Time.Minute, err = intField(root, "time.minute", math.MinInt32, math.MaxInt32); err != nil {
		return nil, err
	}

	if a.Days, err = daysField(root, "days"); err != nil {
		return nil, err
	}

	if a.IsSet, err = boolField(root, "isSet"); err != nil {
		return nil, err
	}

	colorValue, err := intField(root, "color", 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}

	a.Color = Color(colorValue) //nolint:gosec // Range checked by intField.

	if a.Name, err = stringField(root, "name"); err != nil {
		return nil, err
	}

	if a.AudioPath, err = optionalStringField(root, "audioPath"); err != nil {
		return nil, err
	}

	if a.AudioURL, err = stringField(root, "audioURL"); err != nil {
		return nil, err
	}

	return &a, nil
}

// fieldError describes a problem with a single record field.
func fieldError(path, reason string) error {
	return fmt.Errorf("%w: field %q %s", ErrMalformedRecord, path, reason)
}

// stringField reads a required string.
func stringField(root gjson.Result, path string) (string, error) {
	value := root.Get(path)

	switch {
	case !value.Exists():
		return "", fieldError(path, "is missing")
	case value.Type != gjson.String:
		return "", fieldError(path, "is not a string")
	}

	return value.Str, nil
}

// optionalStringField reads a string that may be absent or null.
func optionalStringField(root gjson.Result, path string) (*string, error) {
	value := root.Get(path)

	switch {
	case !value.Exists(), value.Type == gjson.Null:
		return nil, nil //nolint:nilnil // Absence is a valid value here.
	case value.Type != gjson.String:
		return nil, fieldError(path, "is not a string or null")
	}

	result := value.Str

	return &result, nil
}

// boolField reads a required boolean.
func boolField(root gjson.Result, path string) (bool, error) {
	value := root.Get(path)

	switch {
	case !value.Exists():
		return false, fieldError(path, "is missing")
	case value.Type == gjson.True:
		return true, nil
	case value.Type == gjson.False:
		return false, nil
	}

	return false, fieldError(path, "is not a boolean")
}

// intField reads a required integral number within [lowest, highest].
func intField(root gjson.Result, path string, lowest, highest float64) (int, error) {
	value := root.Get(path)

	switch {
	case !value.Exists():
		return 0, fieldError(path, "is missing")
	case value.Type != gjson.Number:
		return 0, fieldError(path, "is not a number")
	case value.Num != math.Trunc(value.Num):
		return 0, fieldError(path, "is not an integer")
	case value.Num < lowest || value.Num > highest:
		return 0, fieldError(path, "is out of range")
	}

	return int(value.Num), nil
}

// daysField reads the required array of exactly seven booleans.
func daysField(root gjson.Result, path string) (Days, error) {
	var days Days

	value := root.Get(path)

	switch {
	case !value.Exists():
		return days, fieldError(path, "is missing")
	case !value.IsArray():
		return days, fieldError(path, "is not an array")
	}

	elements := value.Array()
	if len(elements) != DaysInWeek {
		return days, fieldError(path, fmt.Sprintf("has %d elements, want %d", len(elements), DaysInWeek))
	}

	for i, element := range elements {
		switch element.Type {
		case gjson.True:
			days[i] = true
		case gjson.False:
		default:
			return days, fieldError(fmt.Sprintf("%s.%d", path, i), "is not a boolean")
		}
	}

	return days, nil
}
