// Package session is the orchestration core: the recording lifecycle
// state machine, the active-speaker state, the conversation mirror, and
// the stop → transcribe → append → (maybe) suggest pipeline. All state
// mutates under one mutex; asynchronous completions re-enter through
// methods that re-check phase and suggestion generation, so stale
// results land harmlessly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parley/audio"
	"parley/conversation"
	"parley/encoder"
	"parley/host"
	"parley/log"
	"parley/suggest"
	"parley/transcriber"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	}
	return "idle"
}

var (
	ErrNotIdle            = errors.New("session is not idle")
	ErrNotRecording       = errors.New("session is not recording")
	ErrSpeakerBusy        = errors.New("speaker can only change while idle")
	ErrUnacknowledged     = errors.New("previous failure not yet acknowledged")
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
)

type Config struct {
	Capture     audio.CaptureDevice
	Host        host.Host
	Transcriber transcriber.Transcriber
	Suggester   suggest.Provider
	Sink        Sink
	Format      string                       // encoder format, "flac" (default) or "wav"
	Duplicates  conversation.DuplicatePolicy // log reconciliation for re-delivered IDs
	// TickInterval overrides the 1s duration tick; tests shorten it.
	TickInterval time.Duration
}

type Controller struct {
	mu sync.Mutex

	phase   Phase
	role    conversation.Role
	seconds int
	blocked bool

	logbook *conversation.Log
	current *suggest.Suggestions
	gen     uint64 // suggestion generation; bumped by every invalidating action

	stream   *encoder.Stream
	tickStop chan struct{}

	capture audio.CaptureDevice
	hostc   host.Host
	trans   transcriber.Transcriber
	sugg    suggest.Provider
	sink    Sink
	format  string
	tick    time.Duration
}

func NewController(cfg Config) *Controller {
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Format == "" {
		cfg.Format = "flac"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Controller{
		role:    conversation.RoleInterviewer,
		logbook: conversation.NewLog(cfg.Duplicates),
		capture: cfg.Capture,
		hostc:   cfg.Host,
		trans:   cfg.Transcriber,
		sugg:    cfg.Suggester,
		sink:    cfg.Sink,
		format:  cfg.Format,
		tick:    cfg.TickInterval,
	}
}

// Start begins a recording. Permitted only from Idle; a rejected call
// has no side effects. Capture failure leaves the session Idle with
// duration 0 and raises a blocking notification.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.blocked {
		c.mu.Unlock()
		return ErrUnacknowledged
	}
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}

	stream, err := encoder.NewStream(c.format)
	if err != nil {
		c.mu.Unlock()
		c.fail(fmt.Errorf("audio encoder: %w", err))
		return err
	}
	c.seconds = 0
	c.capture.SetCallback(func(data []byte, _ uint32) {
		stream.Feed(data)
	})
	if err := c.capture.Start(); err != nil {
		c.capture.ClearCallback()
		c.seconds = 0
		c.mu.Unlock()
		wrapped := fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		c.fail(wrapped)
		return wrapped
	}

	c.stream = stream
	c.invalidateLocked()
	c.phase = PhaseRecording
	c.tickStop = make(chan struct{})
	go c.runTicker(c.tickStop)
	c.mu.Unlock()

	log.Info("recording_start: " + c.capture.DeviceName())
	c.sink.SuggestionCleared()
	c.sink.RecordingStart()
	return nil
}

// Stop ends the recording and launches the processing pipeline.
// Permitted only from Recording. The returned channel closes when the
// pipeline has finished and the session is Idle again — on every exit
// path, success or failure.
func (c *Controller) Stop() (<-chan struct{}, error) {
	c.mu.Lock()
	if c.phase != PhaseRecording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.stopTickerLocked()
	c.capture.Stop()
	c.capture.ClearCallback()
	stream := c.stream
	c.stream = nil
	roleAtStop := c.role // speaker active at the moment of stop
	c.phase = PhaseProcessing
	c.mu.Unlock()

	log.Info("recording_stop")
	c.sink.RecordingStop()
	c.sink.Processing(true)

	done := make(chan struct{})
	go c.process(stream, roleAtStop, done)
	return done, nil
}

func (c *Controller) process(stream *encoder.Stream, role conversation.Role, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.phase = PhaseIdle
		c.seconds = 0
		c.mu.Unlock()
		c.sink.Processing(false)
		close(done)
	}()

	payload, mimeType, frames, err := stream.Finalize()
	if err != nil {
		c.fail(fmt.Errorf("finalizing audio: %w", err))
		return
	}

	ctx := context.Background()
	res, err := c.trans.Transcribe(ctx, payload, mimeType)
	if err != nil {
		c.fail(fmt.Errorf("transcription failed: %w", err))
		return
	}
	log.Transcription(c.trans.Name(), mimeType, float64(len(payload))/1024, int(frames/encoder.SampleRate), role)
	if res.NoSpeech {
		log.Info("no speech detected, nothing to append")
		c.sink.Notice("no speech detected")
		return
	}

	// Fire-and-request: the log mutates on the host's push event, not here.
	if err := c.hostc.AddMessage(ctx, res.Text, role); err != nil {
		c.fail(fmt.Errorf("saving message failed: %w", err))
		return
	}
	log.Utterance(role, res.Text)

	if role == conversation.RoleInterviewer {
		c.requestSuggestions(res.Text)
	} else {
		c.invalidate()
	}
}

// requestSuggestions fires the asynchronous suggestion call. The result
// applies only if no invalidating action landed in between; there is no
// downstream cancel, stale responses are discarded on arrival.
func (c *Controller) requestSuggestions(question string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go func() {
		s, err := c.sugg.Answers(context.Background(), question)
		if err != nil {
			// Best effort only: suggestion unavailability never blocks
			// the interview.
			log.Warnf("suggestion request failed: %v", err)
			return
		}
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			log.Suggestion(question, len(s.Suggestions), true)
			return
		}
		c.current = &s
		c.mu.Unlock()
		log.Suggestion(question, len(s.Suggestions), false)
		c.sink.SuggestionReady(s)
	}()
}

// ToggleSpeaker flips the active role through the host. Permitted only
// while Idle; the toggle invalidates any current or in-flight
// suggestion before the round-trip.
func (c *Controller) ToggleSpeaker() error {
	c.mu.Lock()
	if c.blocked {
		c.mu.Unlock()
		return ErrUnacknowledged
	}
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrSpeakerBusy
	}
	c.invalidateLocked()
	c.mu.Unlock()
	c.sink.SuggestionCleared()

	role, err := c.hostc.ToggleSpeaker(context.Background())
	if err != nil {
		log.Warnf("speaker toggle failed: %v", err)
		c.sink.Notice(fmt.Sprintf("speaker toggle failed: %v", err))
		return err
	}
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
	c.sink.SpeakerChanged(role)
	return nil
}

// ToggleRecording routes the level-triggered toggle signal based on the
// phase at dispatch time.
func (c *Controller) ToggleRecording() {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()

	switch phase {
	case PhaseIdle:
		if err := c.Start(); err != nil {
			log.Warnf("toggle start rejected: %v", err)
		}
	case PhaseRecording:
		if _, err := c.Stop(); err != nil {
			log.Warnf("toggle stop rejected: %v", err)
		}
	default:
		log.Info("toggle ignored while processing")
	}
}

// HandleEvent applies one host push. Events are the single writer of
// the conversation mirror.
func (c *Controller) HandleEvent(ev host.Event) {
	switch ev.Type {
	case host.EventMessageAdded:
		c.mu.Lock()
		changed := c.logbook.Append(*ev.Message)
		msgs := c.logbook.Messages()
		c.mu.Unlock()
		if changed {
			c.sink.ConversationChanged(msgs)
		}

	case host.EventMessageUpdated:
		c.mu.Lock()
		changed := c.logbook.Update(*ev.Message)
		msgs := c.logbook.Messages()
		c.mu.Unlock()
		if changed {
			c.sink.ConversationChanged(msgs)
		}

	case host.EventSpeakerChanged:
		c.mu.Lock()
		c.role = ev.Speaker
		c.invalidateLocked()
		c.mu.Unlock()
		c.sink.SuggestionCleared()
		c.sink.SpeakerChanged(ev.Speaker)

	case host.EventConversationCleared:
		// Clears the mirror and the suggestion; the recording phase is
		// deliberately untouched.
		c.mu.Lock()
		c.logbook.Clear()
		c.invalidateLocked()
		c.mu.Unlock()
		c.sink.SuggestionCleared()
		c.sink.ConversationChanged(nil)
	}
}

// SetConversation installs the initial load snapshot.
func (c *Controller) SetConversation(msgs []conversation.Message) {
	c.mu.Lock()
	c.logbook.Replace(msgs)
	snapshot := c.logbook.Messages()
	c.mu.Unlock()
	c.sink.ConversationChanged(snapshot)
}

// Acknowledge dismisses a surfaced blocking failure, unfreezing
// Start/ToggleSpeaker.
func (c *Controller) Acknowledge() {
	c.mu.Lock()
	c.blocked = false
	c.mu.Unlock()
}

// Teardown releases the capture callback and cancels any pending
// duration tick. Safe to call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.stopTickerLocked()
	if c.phase == PhaseRecording {
		c.capture.Stop()
		c.phase = PhaseIdle
		c.seconds = 0
		c.stream = nil
	}
	c.capture.ClearCallback()
	c.mu.Unlock()
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.blocked = true
	c.mu.Unlock()
	log.Errorf("%v", err)
	c.sink.BlockingError(err)
}

// invalidateLocked bumps the generation so in-flight suggestion results
// are discarded on arrival, and drops the displayed suggestion.
func (c *Controller) invalidateLocked() {
	c.gen++
	c.current = nil
}

func (c *Controller) invalidate() {
	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()
	c.sink.SuggestionCleared()
}

func (c *Controller) runTicker(stop chan struct{}) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			if c.phase != PhaseRecording {
				c.mu.Unlock()
				continue
			}
			c.seconds++
			s := c.seconds
			c.mu.Unlock()
			c.sink.RecordingTick(s)
		}
	}
}

// stopTickerLocked cancels the pending tick. Double-cancel is a no-op;
// the channel is replaced on every Start.
func (c *Controller) stopTickerLocked() {
	if c.tickStop != nil {
		select {
		case <-c.tickStop:
		default:
			close(c.tickStop)
		}
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Role() conversation.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Controller) Seconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seconds
}

func (c *Controller) Blocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// Suggestion returns the current suggestion, or nil when none is valid.
func (c *Controller) Suggestion() *suggest.Suggestions {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	s := *c.current
	return &s
}

func (c *Controller) Conversation() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logbook.Messages()
}
