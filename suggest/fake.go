package suggest

import (
	"context"
	"sync"
)

// FakeProvider answers with a canned result. When Gate is set, Answers
// blocks until the gate is released, which lets tests hold a response
// in flight while other state changes land.
type FakeProvider struct {
	Result Suggestions
	Err    error
	Gate   chan struct{}

	mu    sync.Mutex
	calls []string
}

func NewFakeProvider(result Suggestions) *FakeProvider {
	return &FakeProvider{Result: result}
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) Answers(ctx context.Context, question string) (Suggestions, error) {
	f.mu.Lock()
	f.calls = append(f.calls, question)
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Suggestions{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Suggestions{}, f.Err
	}
	return f.Result, nil
}

// Calls returns the questions asked so far.
func (f *FakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
