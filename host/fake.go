package host

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/conversation"
)

// FakeHost is an in-process canonical store. It backs tests and the
// `-host ""` local mode: IDs and timestamps are assigned here, and every
// mutation is answered with the same push event a real host would send.
type FakeHost struct {
	mu      sync.Mutex
	msgs    []conversation.Message
	speaker conversation.Role
	events  chan Event
	closed  bool

	// Injectable failures.
	LoadErr   error
	AddErr    error
	ToggleErr error
}

func NewFake() *FakeHost {
	return &FakeHost{
		speaker: conversation.RoleInterviewer,
		events:  make(chan Event, 64),
	}
}

func (f *FakeHost) Conversation(context.Context) ([]conversation.Message, error) {
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Message(nil), f.msgs...), nil
}

func (f *FakeHost) AddMessage(_ context.Context, text string, role conversation.Role) error {
	if f.AddErr != nil {
		return f.AddErr
	}
	f.mu.Lock()
	m := conversation.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	f.msgs = append(f.msgs, m)
	f.mu.Unlock()
	f.push(Event{Type: EventMessageAdded, Message: &m})
	return nil
}

func (f *FakeHost) ToggleSpeaker(context.Context) (conversation.Role, error) {
	if f.ToggleErr != nil {
		return "", f.ToggleErr
	}
	f.mu.Lock()
	f.speaker = f.speaker.Other()
	s := f.speaker
	f.mu.Unlock()
	return s, nil
}

// EditMessage simulates a host-side revision: text replaced, edited flag
// set, message-updated pushed.
func (f *FakeHost) EditMessage(id, text string) {
	f.mu.Lock()
	var edited *conversation.Message
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs[i].Text = text
			f.msgs[i].Edited = true
			m := f.msgs[i]
			edited = &m
			break
		}
	}
	f.mu.Unlock()
	if edited != nil {
		f.push(Event{Type: EventMessageUpdated, Message: edited})
	}
}

// SetSpeaker simulates an externally triggered speaker change (e.g. a
// host-side shortcut) and pushes speaker-changed.
func (f *FakeHost) SetSpeaker(role conversation.Role) {
	f.mu.Lock()
	f.speaker = role
	f.mu.Unlock()
	f.push(Event{Type: EventSpeakerChanged, Speaker: role})
}

// ClearConversation wipes the store and pushes conversation-cleared.
func (f *FakeHost) ClearConversation() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
	f.push(Event{Type: EventConversationCleared})
}

// Redeliver re-pushes message-added for an existing ID, reproducing the
// duplicate-delivery edge the log's reconciliation policy guards.
func (f *FakeHost) Redeliver(id string) {
	f.mu.Lock()
	var dup *conversation.Message
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			m := f.msgs[i]
			dup = &m
			break
		}
	}
	f.mu.Unlock()
	if dup != nil {
		f.push(Event{Type: EventMessageAdded, Message: dup})
	}
}

// Messages exposes the canonical state for test assertions.
func (f *FakeHost) Messages() []conversation.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Message(nil), f.msgs...)
}

func (f *FakeHost) push(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- ev
	}
}

func (f *FakeHost) Events() <-chan Event { return f.events }

func (f *FakeHost) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}
