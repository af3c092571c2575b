package session

import (
	"parley/conversation"
	"parley/suggest"
)

// Sink abstracts the display layer so the TUI (or a headless harness)
// receives the same session events. Implementations must not call back
// into the Controller synchronously.
type Sink interface {
	RecordingStart()
	RecordingStop()
	RecordingTick(seconds int)
	Processing(on bool)
	ConversationChanged(msgs []conversation.Message)
	SpeakerChanged(role conversation.Role)
	SuggestionReady(s suggest.Suggestions)
	SuggestionCleared()
	// BlockingError reports a failure that halts the flow until the
	// user acknowledges it (capture, transcription, append).
	BlockingError(err error)
	// Notice reports a non-fatal hiccup that must not interrupt the
	// interview.
	Notice(msg string)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordingStart()                          {}
func (NopSink) RecordingStop()                           {}
func (NopSink) RecordingTick(int)                        {}
func (NopSink) Processing(bool)                          {}
func (NopSink) ConversationChanged([]conversation.Message) {}
func (NopSink) SpeakerChanged(conversation.Role)         {}
func (NopSink) SuggestionReady(suggest.Suggestions)      {}
func (NopSink) SuggestionCleared()                       {}
func (NopSink) BlockingError(error)                      {}
func (NopSink) Notice(string)                            {}
