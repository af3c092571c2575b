package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/conversation"
)

// envelope is the wire frame shared by requests, responses and pushes.
// Responses echo the request ID; pushes carry no ID.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type conversationPayload struct {
	Success  bool                   `json:"success"`
	Messages []conversation.Message `json:"messages,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type addMessagePayload struct {
	Text    string            `json:"text"`
	Speaker conversation.Role `json:"speaker"`
}

type speakerPayload struct {
	Success bool              `json:"success"`
	Speaker conversation.Role `json:"speaker,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type ackPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// WSHost talks to the canonical store over a websocket. One reader
// goroutine owns the connection's receive side, so pushes reach Events()
// in wire order; requests are correlated to responses by uuid.
type WSHost struct {
	conn   *websocket.Conn
	events chan Event

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan envelope
	closed  bool
}

func Dial(ctx context.Context, url string) (*WSHost, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("host dial %s: %w", url, err)
	}
	h := &WSHost{
		conn:    conn,
		events:  make(chan Event, 16),
		pending: make(map[string]chan envelope),
	}
	go h.readLoop()
	return h, nil
}

func (h *WSHost) readLoop() {
	defer func() {
		h.mu.Lock()
		h.closed = true
		for id, ch := range h.pending {
			close(ch)
			delete(h.pending, id)
		}
		h.mu.Unlock()
		close(h.events)
	}()

	for {
		var env envelope
		if err := h.conn.ReadJSON(&env); err != nil {
			return
		}

		if env.ID != "" {
			h.mu.Lock()
			ch, ok := h.pending[env.ID]
			if ok {
				delete(h.pending, env.ID)
			}
			h.mu.Unlock()
			if ok {
				ch <- env
			}
			continue
		}

		ev, ok := decodeEvent(env)
		if !ok {
			continue
		}
		h.events <- ev
	}
}

func decodeEvent(env envelope) (Event, bool) {
	switch EventType(env.Type) {
	case EventMessageAdded, EventMessageUpdated:
		var m conversation.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return Event{}, false
		}
		return Event{Type: EventType(env.Type), Message: &m}, true
	case EventSpeakerChanged:
		var p speakerPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{}, false
		}
		return Event{Type: EventSpeakerChanged, Speaker: p.Speaker}, true
	case EventConversationCleared:
		return Event{Type: EventConversationCleared}, true
	}
	return Event{}, false
}

func (h *WSHost) request(ctx context.Context, msgType string, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, err
	}
	id := uuid.NewString()
	ch := make(chan envelope, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return envelope{}, fmt.Errorf("host connection closed")
	}
	h.pending[id] = ch
	h.mu.Unlock()

	h.writeMu.Lock()
	err = h.conn.WriteJSON(envelope{Type: msgType, ID: id, Payload: raw})
	h.writeMu.Unlock()
	if err != nil {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		return envelope{}, fmt.Errorf("host %s: %w", msgType, err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return envelope{}, fmt.Errorf("host connection closed")
		}
		return env, nil
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		return envelope{}, ctx.Err()
	}
}

func (h *WSHost) Conversation(ctx context.Context) ([]conversation.Message, error) {
	env, err := h.request(ctx, "get-conversation", struct{}{})
	if err != nil {
		return nil, err
	}
	var p conversationPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("host conversation decode: %w", err)
	}
	if !p.Success {
		return nil, fmt.Errorf("host conversation: %s", p.Error)
	}
	return p.Messages, nil
}

func (h *WSHost) AddMessage(ctx context.Context, text string, role conversation.Role) error {
	env, err := h.request(ctx, "add-message", addMessagePayload{Text: text, Speaker: role})
	if err != nil {
		return err
	}
	var p ackPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("host add decode: %w", err)
	}
	if !p.Success {
		return fmt.Errorf("host add: %s", p.Error)
	}
	return nil
}

func (h *WSHost) ToggleSpeaker(ctx context.Context) (conversation.Role, error) {
	env, err := h.request(ctx, "toggle-speaker", struct{}{})
	if err != nil {
		return "", err
	}
	var p speakerPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return "", fmt.Errorf("host toggle decode: %w", err)
	}
	if !p.Success {
		return "", fmt.Errorf("host toggle: %s", p.Error)
	}
	return p.Speaker, nil
}

func (h *WSHost) Events() <-chan Event { return h.events }

func (h *WSHost) Close() error {
	return h.conn.Close()
}
