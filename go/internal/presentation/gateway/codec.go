package gateway

import (
	"encoding/json"
	"fmt"
)

// jsonCodec lets connect carry plain Go structs. It replaces connect's
// protobuf-only "json" codec on both the handler and the client
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", message, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("unmarshal %T: %w", message, err)
	}
	return nil
}
