package alarms

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// Record field names used by the protojson codec. They match the JSON field
// names clients see in ALARM_STATUS events.
const (
	fieldKind        = "kind"
	fieldTaskID      = "taskId"
	fieldName        = "name"
	fieldDepartureAt = "departureAt"
	fieldLeadMinutes = "leadMinutes"
	fieldDueAt       = "dueAt"
	fieldActive      = "active"
)

// marshalOptions keeps unset fields so files stay self-describing.
//
//nolint:gochecknoglobals // Immutable encoder settings.
var marshalOptions = protojson.MarshalOptions{
	Multiline:       true,
	EmitUnpopulated: true,
}

// toStruct converts a domain record into a protobuf Struct.
func toStruct(record *domain.Record) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldKind:   string(record.Kind),
		fieldDueAt:  record.DueAt.UTC().Format(time.RFC3339Nano),
		fieldActive: record.Active,
	}

	switch record.Kind {
	case domain.KindTask:
		fields[fieldTaskID] = record.TaskID
		fields[fieldName] = record.Name
	case domain.KindDeparture:
		fields[fieldDepartureAt] = record.DepartureAt
		fields[fieldLeadMinutes] = record.LeadMinutes
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode alarm %s: %w", record.Key(), err)
	}

	return result, nil
}

// fromStruct converts a protobuf Struct back into a domain record.
func fromStruct(value *structpb.Struct) (domain.Record, error) {
	fields := value.GetFields()

	dueAt, err := time.Parse(time.RFC3339Nano, fields[fieldDueAt].GetStringValue())
	if err != nil {
		return domain.Record{}, fmt.Errorf("decode due time: %w", err)
	}

	record := domain.Record{
		Kind:        domain.Kind(fields[fieldKind].GetStringValue()),
		TaskID:      fields[fieldTaskID].GetStringValue(),
		Name:        fields[fieldName].GetStringValue(),
		DepartureAt: fields[fieldDepartureAt].GetStringValue(),
		LeadMinutes: int(fields[fieldLeadMinutes].GetNumberValue()),
		DueAt:       dueAt.UTC(),
		Active:      fields[fieldActive].GetBoolValue(),
	}

	if err = record.Validate(); err != nil {
		return domain.Record{}, err
	}

	return record, nil
}

// encodeRecord renders a record as protojson bytes.
func encodeRecord(record *domain.Record) ([]byte, error) {
	value, err := toStruct(record)
	if err != nil {
		return nil, err
	}

	return marshalOptions.Marshal(value)
}

// decodeRecord parses protojson bytes produced by encodeRecord.
func decodeRecord(data []byte) (domain.Record, error) {
	var value structpb.Struct
	if err := protojson.Unmarshal(data, &value); err != nil {
		return domain.Record{}, fmt.Errorf("decode alarm: %w", err)
	}

	return fromStruct(&value)
}
