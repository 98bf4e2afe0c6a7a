package peerrpc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// codecName is the content subtype of peer RPC messages.
const codecName = "json"

// jsonCodec marshals peer messages as JSON instead of protobuf. Both ends
// force it, so no message is ever handed to the protobuf codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %T", v)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	err := json.Unmarshal(data, v)
	if err != nil {
		return errors.Wrapf(err, "failed to unmarshal %T", v)
	}
	return nil
}

func (jsonCodec) Name() string {
	return codecName
}
