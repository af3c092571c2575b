package transcriber

import (
	"context"
	"fmt"
	"sync"
)

// FakeTranscriber records calls and answers with canned text or an
// error. When Gate is set, Transcribe blocks until the gate is
// released, holding the session in its processing phase.
type FakeTranscriber struct {
	Text string
	Err  error
	Gate chan struct{}

	mu    sync.Mutex
	lang  string
	calls []FakeCall
}

type FakeCall struct {
	PayloadLen int
	MIMEType   string
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{Text: text, Err: err}
}

func (f *FakeTranscriber) Name() string           { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

func (f *FakeTranscriber) Transcribe(ctx context.Context, payload []byte, mimeType string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{PayloadLen: len(payload), MIMEType: mimeType})
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Result{}, fmt.Errorf("fake transcriber error: %w", f.Err)
	}
	return Result{Text: f.Text, NoSpeech: f.Text == ""}, nil
}

func (f *FakeTranscriber) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
