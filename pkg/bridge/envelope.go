package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const errorPayloadKey = "$error"

type Envelope struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Payload         json.RawMessage `json:"payload"`
	WaitForResponse bool            `json:"waitForResponse"`
}

func NewEnvelope(id, name string, payload any, waitForResponse bool) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Envelope{
		ID:              id,
		Name:            name,
		Payload:         data,
		WaitForResponse: waitForResponse,
	}, nil
}

func NewErrorEnvelope(id, name string, handlerErr error) *Envelope {
	data, _ := json.Marshal(map[string]*RemoteError{
		errorPayloadKey: {Channel: name, Message: handlerErr.Error()},
	})

	return &Envelope{
		ID:      id,
		Name:    name,
		Payload: data,
	}
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Envelope) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// ParseEnvelope принимает только записи, в которых присутствуют все четыре
// поля нужных типов.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedEnvelope)
	}

	env := &Envelope{}

	if err := decodeField(fields, "id", &env.ID); err != nil {
		return nil, err
	}

	if err := decodeField(fields, "name", &env.Name); err != nil {
		return nil, err
	}

	if env.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrMalformedEnvelope)
	}

	if err := decodeField(fields, "waitForResponse", &env.WaitForResponse); err != nil {
		return nil, err
	}

	payload, ok := fields["payload"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformedEnvelope, "payload")
	}

	env.Payload = payload

	return env, nil
}

func decodeField(fields map[string]json.RawMessage, key string, v any) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: missing field %q", ErrMalformedEnvelope, key)
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: field %q is null", ErrMalformedEnvelope, key)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformedEnvelope, key, err)
	}

	return nil
}

// remoteError распознаёт ответ, закодированный как ошибка обработчика.
func remoteError(payload json.RawMessage) *RemoteError {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil || len(probe) != 1 {
		return nil
	}

	raw, ok := probe[errorPayloadKey]
	if !ok {
		return nil
	}

	var rerr RemoteError
	if err := json.Unmarshal(raw, &rerr); err != nil {
		return nil
	}

	return &rerr
}
