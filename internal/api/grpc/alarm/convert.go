package alarm

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// CommandToStruct converts a domain command to its wire message.
func CommandToStruct(command *domain.Command) (*structpb.Struct, error) {
	return toStruct(command)
}

// CommandFromStruct converts a wire message to a domain command.
func CommandFromStruct(message *structpb.Struct) (domain.Command, error) {
	var command domain.Command
	if err := fromStruct(message, &command); err != nil {
		return domain.Command{}, fmt.Errorf("decode command: %w", err)
	}

	return command, nil
}

// EventToStruct converts a domain event to its wire message.
func EventToStruct(event *domain.Event) (*structpb.Struct, error) {
	return toStruct(event)
}

// EventFromStruct converts a wire message to a domain event. An empty message
// decodes to nil: the server replies that way to ignored commands.
func EventFromStruct(message *structpb.Struct) (*domain.Event, error) {
	if len(message.GetFields()) == 0 {
		return nil, nil //nolint:nilnil // Ignored commands have no reply.
	}

	event := new(domain.Event)
	if err := fromStruct(message, event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	return event, nil
}

var errMessageRequired = errors.New("message is required")

func toStruct(value any) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	result := new(structpb.Struct)
	if err = protojson.Unmarshal(data, result); err != nil {
		return nil, err
	}

	return result, nil
}

func fromStruct(message *structpb.Struct, target any) error {
	if message == nil {
		return errMessageRequired
	}

	data, err := protojson.Marshal(message)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}
