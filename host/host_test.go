package host

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"parley/conversation"
)

func TestDecodeEvent(t *testing.T) {
	raw, _ := json.Marshal(conversation.Message{ID: "m1", Role: conversation.RoleInterviewer, Text: "hi", Timestamp: 42})
	ev, ok := decodeEvent(envelope{Type: string(EventMessageAdded), Payload: raw})
	if !ok {
		t.Fatal("decodeEvent rejected message-added")
	}
	if ev.Message == nil || ev.Message.ID != "m1" || ev.Message.Text != "hi" {
		t.Errorf("message = %+v", ev.Message)
	}

	raw, _ = json.Marshal(speakerPayload{Speaker: conversation.RoleInterviewee})
	ev, ok = decodeEvent(envelope{Type: string(EventSpeakerChanged), Payload: raw})
	if !ok || ev.Speaker != conversation.RoleInterviewee {
		t.Errorf("speaker event = %+v ok=%v", ev, ok)
	}

	if _, ok := decodeEvent(envelope{Type: "bogus"}); ok {
		t.Error("decodeEvent accepted unknown type")
	}

	ev, ok = decodeEvent(envelope{Type: string(EventConversationCleared)})
	if !ok || ev.Type != EventConversationCleared {
		t.Errorf("cleared event = %+v ok=%v", ev, ok)
	}
}

func waitEvent(t *testing.T, f *FakeHost) Event {
	t.Helper()
	select {
	case ev := <-f.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for host event")
		return Event{}
	}
}

func TestFakeHostAddPushesEvent(t *testing.T) {
	f := NewFake()
	defer f.Close()

	if err := f.AddMessage(context.Background(), "hello", conversation.RoleInterviewee); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, f)
	if ev.Type != EventMessageAdded {
		t.Fatalf("type = %s", ev.Type)
	}
	if ev.Message.Text != "hello" || ev.Message.Role != conversation.RoleInterviewee {
		t.Errorf("message = %+v", ev.Message)
	}
	if ev.Message.ID == "" || ev.Message.Timestamp == 0 {
		t.Errorf("host-assigned fields missing: %+v", ev.Message)
	}
}

func TestFakeHostToggleAlternates(t *testing.T) {
	f := NewFake()
	defer f.Close()

	r1, err := f.ToggleSpeaker(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := f.ToggleSpeaker(context.Background())
	if r1 != conversation.RoleInterviewee || r2 != conversation.RoleInterviewer {
		t.Errorf("toggles = %s, %s", r1, r2)
	}
}

func TestFakeHostEditAndRedeliver(t *testing.T) {
	f := NewFake()
	defer f.Close()

	f.AddMessage(context.Background(), "draft", conversation.RoleInterviewer)
	added := waitEvent(t, f)

	f.EditMessage(added.Message.ID, "final")
	ev := waitEvent(t, f)
	if ev.Type != EventMessageUpdated || ev.Message.Text != "final" || !ev.Message.Edited {
		t.Errorf("update event = %+v", ev.Message)
	}

	f.Redeliver(added.Message.ID)
	ev = waitEvent(t, f)
	if ev.Type != EventMessageAdded || ev.Message.ID != added.Message.ID {
		t.Errorf("redelivery = %+v", ev)
	}
}

func TestFakeHostCloseIsIdempotent(t *testing.T) {
	f := NewFake()
	f.Close()
	f.Close()
	f.ClearConversation() // must not panic after close
}
