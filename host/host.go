// Package host is the client side of the canonical conversation store.
// The store lives in a separate process; this package exposes its
// request/response surface plus the push-event stream that is the single
// source of truth for log mutations.
package host

import (
	"context"

	"parley/conversation"
)

type EventType string

const (
	EventMessageAdded        EventType = "message-added"
	EventMessageUpdated      EventType = "message-updated"
	EventSpeakerChanged      EventType = "speaker-changed"
	EventConversationCleared EventType = "conversation-cleared"
)

// Event is one host push. Message is set for the message events, Speaker
// for speaker-changed.
type Event struct {
	Type    EventType
	Message *conversation.Message
	Speaker conversation.Role
}

type Host interface {
	// Conversation fetches the full canonical log, used once on activation.
	Conversation(ctx context.Context) ([]conversation.Message, error)

	// AddMessage persists a message. The host answers with a push event;
	// callers must not apply the append locally.
	AddMessage(ctx context.Context, text string, role conversation.Role) error

	// ToggleSpeaker flips the active role in the store and returns the
	// role now active.
	ToggleSpeaker(ctx context.Context) (conversation.Role, error)

	// Events delivers pushes in wire order. The channel closes when the
	// host connection goes away.
	Events() <-chan Event

	Close() error
}
