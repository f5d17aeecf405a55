// Package cdc turns raw change-data-capture envelopes into domain events.
//
// For user creates and updates the current row is re-read from storage before
// publishing: CDC images may carry lossy text encoding for non-ASCII profile
// fields, and the store is the source of truth for how the row reads now. A
// write landing between the mutation and the re-read can therefore produce an
// event payload newer than the mutation that triggered it; that staleness
// window is accepted. Deletes have no row left to re-read and use the CDC
// image directly.
package cdc

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/storage"
)

// UserGetter reads the current user row for event payload re-encoding.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Normalizer converts change envelopes into domain events on the bus.
type Normalizer struct {
	users UserGetter
	bus   events.Publisher
}

// NewNormalizer wires the normalizer with its storage and bus dependencies.
func NewNormalizer(users UserGetter, bus events.Publisher) *Normalizer {
	return &Normalizer{users: users, bus: bus}
}

// Handle processes one change-stream message. Heartbeats and tables outside
// the watch list succeed without emitting anything. Decode and publish errors
// propagate so the delivery is retried; no event for this message has been
// published past the failure point.
func (n *Normalizer) Handle(ctx context.Context, msg events.Message) error {
	var env ChangeEnvelope
	if err := msg.JSON(&env); err != nil {
		return fmt.Errorf("decode change envelope: %w", err)
	}
	if env.Schema.Name == HeartbeatSchema {
		return nil
	}
	switch env.Payload.Source.Table {
	case TableUsers:
		return n.onUserChange(ctx, env.Payload)
	case TableParticipants:
		return n.onParticipantChange(ctx, env.Payload)
	default:
		return nil
	}
}

func (n *Normalizer) onUserChange(ctx context.Context, p Payload) error {
	switch p.Op {
	case OpCreate:
		user, err := n.currentUser(ctx, p.After)
		if err != nil {
			return err
		}
		return n.bus.Publish(ctx, events.TopicUserRegistered, user, "")
	case OpUpdate:
		var before domain.User
		if err := unmarshalRow(p.Before, &before); err != nil {
			return err
		}
		after, err := n.currentUser(ctx, p.After)
		if err != nil {
			return err
		}
		payload := domain.UserUpdated{User: before, NewProfile: *after}
		return n.bus.Publish(ctx, events.TopicUserUpdated, payload, "")
	case OpDelete:
		var before domain.User
		if err := unmarshalRow(p.Before, &before); err != nil {
			return err
		}
		return n.bus.Publish(ctx, events.TopicUserDeleted, before, "")
	default:
		return nil
	}
}

func (n *Normalizer) onParticipantChange(ctx context.Context, p Payload) error {
	if p.Op != OpUpdate {
		return nil
	}
	var before, after domain.Participant
	if err := unmarshalRow(p.Before, &before); err != nil {
		return err
	}
	if err := unmarshalRow(p.After, &after); err != nil {
		return err
	}
	if !before.Eligible && after.Eligible {
		return n.bus.Publish(ctx, events.TopicNewEligibleParticipant, after, "")
	}
	return nil
}

// currentUser re-reads the row named by the CDC image. If the row vanished in
// the meantime the image itself is published; the trailing delete will follow
// on the stream.
func (n *Normalizer) currentUser(ctx context.Context, image []byte) (*domain.User, error) {
	var row domain.User
	if err := unmarshalRow(image, &row); err != nil {
		return nil, err
	}
	user, err := n.users.GetUserByID(ctx, row.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &row, nil
		}
		return nil, err
	}
	return user, nil
}

func unmarshalRow(image []byte, v any) error {
	if len(image) == 0 {
		return errors.New("missing row image")
	}
	return sonic.Unmarshal(image, v)
}
