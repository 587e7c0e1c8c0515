package service

import (
	"encoding/json"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// jsonCodec serializes the field bag as a JSON object keyed by field name.
type jsonCodec struct{}

// NewJSONCodec creates a Codec backed by encoding/json.
func NewJSONCodec() Codec {
	return &jsonCodec{}
}

func (c *jsonCodec) Serialize(bag map[string]json.RawMessage) (string, error) {
	data, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("%w: serialize payload: %v", cryptoDomain.ErrNonTransient, err)
	}
	return string(data), nil
}

func (c *jsonCodec) Deserialize(payload string) (map[string]json.RawMessage, error) {
	var bag map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &bag); err != nil {
		return nil, fmt.Errorf("%w: deserialize payload: %v", cryptoDomain.ErrNonTransient, err)
	}
	return bag, nil
}

// ConvertValue returns nil for values that encode to JSON null.
func (c *jsonCodec) ConvertValue(value any) (json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: convert value: %v", cryptoDomain.ErrNonTransient, err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func (c *jsonCodec) TreeToValue(node json.RawMessage, target any) error {
	if err := json.Unmarshal(node, target); err != nil {
		return fmt.Errorf("%w: decode value: %v", cryptoDomain.ErrNonTransient, err)
	}
	return nil
}
