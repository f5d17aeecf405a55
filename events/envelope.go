package events

import (
	"bytes"
	"errors"

	"github.com/bytedance/sonic"
)

// PushEnvelope is the body of a push delivery request. Data travels
// base64-encoded on the wire; encoding/json semantics of []byte take care of
// both directions.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription,omitempty"`
}

// PushMessage is the transport message inside a push envelope.
type PushMessage struct {
	ID          string `json:"messageId"`
	Data        []byte `json:"data"`
	OrderingKey string `json:"orderingKey,omitempty"`
}

// Message is what worker handlers receive: the decoded payload bytes plus the
// transport identity used for logging and dedupe.
type Message struct {
	ID          string
	Data        []byte
	OrderingKey string
}

var errEmptyMessage = errors.New("empty push message")

// DecodePush parses a push delivery body into a Message.
func DecodePush(body []byte) (Message, error) {
	var env PushEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return Message{}, err
	}
	if len(env.Message.Data) == 0 {
		return Message{}, errEmptyMessage
	}
	return Message{
		ID:          env.Message.ID,
		Data:        bytes.TrimSpace(env.Message.Data),
		OrderingKey: env.Message.OrderingKey,
	}, nil
}

// JSON unmarshals the message payload into v.
func (m Message) JSON(v any) error {
	return sonic.Unmarshal(m.Data, v)
}
