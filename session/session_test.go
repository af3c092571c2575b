package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"parley/audio"
	"parley/conversation"
	"parley/host"
	"parley/hotkey"
	"parley/session"
	"parley/suggest"
	"parley/transcriber"
)

// recorderSink forwards every session event onto a buffered channel so
// tests can wait for the exact notification they care about.
type recorderSink struct {
	conv    chan []conversation.Message
	sugg    chan suggest.Suggestions
	cleared chan struct{}
	speaker chan conversation.Role
	errs    chan error
	notices chan string
	ticks   chan int
	proc    chan bool
}

func newRecorderSink() *recorderSink {
	return &recorderSink{
		conv:    make(chan []conversation.Message, 32),
		sugg:    make(chan suggest.Suggestions, 32),
		cleared: make(chan struct{}, 32),
		speaker: make(chan conversation.Role, 32),
		errs:    make(chan error, 32),
		notices: make(chan string, 32),
		ticks:   make(chan int, 32),
		proc:    make(chan bool, 32),
	}
}

func (r *recorderSink) RecordingStart()                            {}
func (r *recorderSink) RecordingStop()                             {}
func (r *recorderSink) RecordingTick(s int)                        { r.ticks <- s }
func (r *recorderSink) Processing(on bool)                         { r.proc <- on }
func (r *recorderSink) ConversationChanged(m []conversation.Message) { r.conv <- m }
func (r *recorderSink) SpeakerChanged(role conversation.Role)      { r.speaker <- role }
func (r *recorderSink) SuggestionReady(s suggest.Suggestions)      { r.sugg <- s }
func (r *recorderSink) SuggestionCleared()                         { r.cleared <- struct{}{} }
func (r *recorderSink) BlockingError(err error)                    { r.errs <- err }
func (r *recorderSink) Notice(msg string)                          { r.notices <- msg }

func waitCh[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func expectNo[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fixture struct {
	ctrl    *session.Controller
	bridge  *session.Bridge
	capture *audio.FakeCapture
	host    *host.FakeHost
	trans   *transcriber.FakeTranscriber
	sugg    *suggest.FakeProvider
	sink    *recorderSink
	hk      *hotkey.FakeHotkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		capture: audio.NewFakeCapture(),
		host:    host.NewFake(),
		trans:   transcriber.NewFake("how would you scale this?", nil),
		sugg: suggest.NewFakeProvider(suggest.Suggestions{
			Suggestions: []string{"shard by tenant", "cache the hot path"},
			Reasoning:   "standard scaling playbook",
		}),
		sink: newRecorderSink(),
		hk:   hotkey.NewFake(),
	}
	f.ctrl = session.NewController(session.Config{
		Capture:      f.capture,
		Host:         f.host,
		Transcriber:  f.trans,
		Suggester:    f.sugg,
		Sink:         f.sink,
		Format:       "wav",
		TickInterval: 10 * time.Millisecond,
	})
	f.bridge = session.NewBridge(f.ctrl, f.host, f.hk.Toggled())
	go f.bridge.Run()
	t.Cleanup(func() {
		f.bridge.Teardown()
		f.host.Close()
	})
	return f
}

// record drives one full start→push→stop cycle and waits for the
// processing pipeline to finish.
func (f *fixture) record(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.capture.Push(make([]byte, 640))
	done, err := f.ctrl.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitCh(t, done, "processing to finish")
}

func TestRecordTranscribeAppend(t *testing.T) {
	f := newFixture(t)

	f.record(t)

	msgs := f.host.Messages()
	if len(msgs) != 1 {
		t.Fatalf("host has %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != conversation.RoleInterviewer {
		t.Errorf("role = %s, want interviewer", msgs[0].Role)
	}
	if msgs[0].Text != "how would you scale this?" {
		t.Errorf("text = %q", msgs[0].Text)
	}

	// The mirror converges through the push event, not a local append.
	waitFor(t, "mirror to converge", func() bool {
		return len(f.ctrl.Conversation()) == 1
	})

	// Interviewer utterances trigger the suggestion pipeline.
	s := waitCh(t, f.sink.sugg, "suggestions")
	if len(s.Suggestions) != 2 {
		t.Errorf("got %d suggestions, want 2", len(s.Suggestions))
	}
	if f.ctrl.Suggestion() == nil {
		t.Error("controller holds no suggestion after delivery")
	}

	if got := f.ctrl.Phase(); got != session.PhaseIdle {
		t.Errorf("phase = %s, want idle", got)
	}
	if f.capture.Starts() != 1 || f.capture.Stops() != 1 {
		t.Errorf("capture starts=%d stops=%d, want 1/1", f.capture.Starts(), f.capture.Stops())
	}
}

func TestStartWhileRecordingRejected(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Start(); !errors.Is(err, session.ErrNotIdle) {
		t.Fatalf("second start: %v, want ErrNotIdle", err)
	}
	if f.capture.Starts() != 1 {
		t.Errorf("capture started %d times, want 1", f.capture.Starts())
	}
	if got := f.ctrl.Phase(); got != session.PhaseRecording {
		t.Errorf("phase = %s, want recording", got)
	}
}

func TestStopWhileIdleRejected(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ctrl.Stop(); !errors.Is(err, session.ErrNotRecording) {
		t.Fatalf("stop while idle: %v, want ErrNotRecording", err)
	}
}

func TestCaptureStartFailure(t *testing.T) {
	f := newFixture(t)
	f.capture.StartErr = errors.New("device busy")

	err := f.ctrl.Start()
	if !errors.Is(err, session.ErrCaptureUnavailable) {
		t.Fatalf("start: %v, want ErrCaptureUnavailable", err)
	}
	if got := f.ctrl.Phase(); got != session.PhaseIdle {
		t.Errorf("phase = %s, want idle", got)
	}
	if f.ctrl.Seconds() != 0 {
		t.Errorf("seconds = %d, want 0", f.ctrl.Seconds())
	}
	waitCh(t, f.sink.errs, "blocking error")

	// Further starts are frozen until the failure is acknowledged.
	if err := f.ctrl.Start(); !errors.Is(err, session.ErrUnacknowledged) {
		t.Fatalf("start while blocked: %v, want ErrUnacknowledged", err)
	}
	f.ctrl.Acknowledge()
	f.capture.StartErr = nil
	if err := f.ctrl.Start(); err != nil {
		t.Fatalf("start after acknowledge: %v", err)
	}
}

func TestTranscriptionFailureReturnsIdle(t *testing.T) {
	f := newFixture(t)
	f.trans.Err = errors.New("upstream 500")

	f.record(t)

	waitCh(t, f.sink.errs, "blocking error")
	if got := f.ctrl.Phase(); got != session.PhaseIdle {
		t.Errorf("phase = %s, want idle", got)
	}
	if len(f.host.Messages()) != 0 {
		t.Error("failed transcription must not reach the host")
	}
	if len(f.sugg.Calls()) != 0 {
		t.Error("failed transcription must not trigger suggestions")
	}
}

func TestAppendFailureNoSuggestion(t *testing.T) {
	f := newFixture(t)
	f.host.AddErr = errors.New("store unavailable")

	f.record(t)

	waitCh(t, f.sink.errs, "blocking error")
	if len(f.sugg.Calls()) != 0 {
		t.Error("failed append must not trigger suggestions")
	}
	if len(f.ctrl.Conversation()) != 0 {
		t.Error("mirror must not change on a failed append")
	}
}

func TestNoSpeechSkipsAppend(t *testing.T) {
	f := newFixture(t)
	f.trans.Text = ""

	f.record(t)

	waitCh(t, f.sink.notices, "no-speech notice")
	if len(f.host.Messages()) != 0 {
		t.Error("empty transcription must not reach the host")
	}
	if f.ctrl.Blocked() {
		t.Error("no speech is not a blocking failure")
	}
}

func TestToggleSpeaker(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.ToggleSpeaker(); err != nil {
		t.Fatal(err)
	}
	role := waitCh(t, f.sink.speaker, "speaker change")
	if role != conversation.RoleInterviewee {
		t.Fatalf("role = %s, want interviewee", role)
	}
	if f.ctrl.Role() != conversation.RoleInterviewee {
		t.Errorf("controller role = %s, want interviewee", f.ctrl.Role())
	}

	// Interviewee utterances are appended but never trigger suggestions.
	f.record(t)
	waitFor(t, "message append", func() bool { return len(f.host.Messages()) == 1 })
	if got := f.host.Messages()[0].Role; got != conversation.RoleInterviewee {
		t.Errorf("role = %s, want interviewee", got)
	}
	expectNo(t, f.sink.sugg, "suggestion for interviewee")
}

func TestToggleSpeakerWhileRecording(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.ToggleSpeaker(); !errors.Is(err, session.ErrSpeakerBusy) {
		t.Fatalf("toggle while recording: %v, want ErrSpeakerBusy", err)
	}
	if f.ctrl.Role() != conversation.RoleInterviewer {
		t.Error("rejected toggle must not change the role")
	}
}

func TestToggleSpeakerWhileProcessing(t *testing.T) {
	f := newFixture(t)
	f.trans.Gate = make(chan struct{})

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	done, err := f.ctrl.Stop()
	if err != nil {
		t.Fatal(err)
	}

	if err := f.ctrl.ToggleSpeaker(); !errors.Is(err, session.ErrSpeakerBusy) {
		t.Fatalf("toggle while processing: %v, want ErrSpeakerBusy", err)
	}

	close(f.trans.Gate)
	waitCh(t, done, "processing to finish")
}

func TestStaleSuggestionDiscarded(t *testing.T) {
	f := newFixture(t)
	f.sugg.Gate = make(chan struct{})

	f.record(t)
	waitFor(t, "suggestion request", func() bool { return len(f.sugg.Calls()) == 1 })

	// A speaker toggle while the response is in flight invalidates it.
	if err := f.ctrl.ToggleSpeaker(); err != nil {
		t.Fatal(err)
	}
	close(f.sugg.Gate)

	expectNo(t, f.sink.sugg, "stale suggestion delivery")
	if f.ctrl.Suggestion() != nil {
		t.Error("stale suggestion must not be retained")
	}
}

func TestNewRecordingInvalidatesSuggestion(t *testing.T) {
	f := newFixture(t)

	f.record(t)
	waitCh(t, f.sink.sugg, "suggestions")

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.Suggestion() != nil {
		t.Error("starting a recording must drop the current suggestion")
	}
}

func TestHostSpeakerChangedEvent(t *testing.T) {
	f := newFixture(t)

	f.host.SetSpeaker(conversation.RoleInterviewee)

	role := waitCh(t, f.sink.speaker, "speaker change")
	if role != conversation.RoleInterviewee {
		t.Fatalf("role = %s, want interviewee", role)
	}
	waitFor(t, "controller role", func() bool {
		return f.ctrl.Role() == conversation.RoleInterviewee
	})
}

func TestConversationClearedMidRecording(t *testing.T) {
	f := newFixture(t)
	if err := f.host.AddMessage(context.Background(), "hello", conversation.RoleInterviewer); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "mirror", func() bool { return len(f.ctrl.Conversation()) == 1 })

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	f.host.ClearConversation()

	waitFor(t, "mirror clear", func() bool { return len(f.ctrl.Conversation()) == 0 })
	// The clear touches the log and suggestion, never the phase.
	if got := f.ctrl.Phase(); got != session.PhaseRecording {
		t.Errorf("phase = %s, want recording", got)
	}

	done, err := f.ctrl.Stop()
	if err != nil {
		t.Fatal(err)
	}
	waitCh(t, done, "processing to finish")
}

func TestDuplicateRedeliveryRejected(t *testing.T) {
	f := newFixture(t)

	if err := f.host.AddMessage(context.Background(), "once", conversation.RoleInterviewer); err != nil {
		t.Fatal(err)
	}
	waitCh(t, f.sink.conv, "first delivery")
	id := f.host.Messages()[0].ID

	f.host.Redeliver(id)

	expectNo(t, f.sink.conv, "duplicate delivery change")
	if got := len(f.ctrl.Conversation()); got != 1 {
		t.Errorf("mirror has %d messages, want 1", got)
	}
}

func TestMessageUpdatedEvent(t *testing.T) {
	f := newFixture(t)

	if err := f.host.AddMessage(context.Background(), "speling", conversation.RoleInterviewee); err != nil {
		t.Fatal(err)
	}
	first := waitCh(t, f.sink.conv, "first delivery")
	orig := first[0]

	f.host.EditMessage(orig.ID, "spelling")

	updated := waitCh(t, f.sink.conv, "update delivery")
	got := updated[0]
	if got.Text != "spelling" || !got.Edited {
		t.Errorf("updated message = %+v", got)
	}
	if got.ID != orig.ID || got.Timestamp != orig.Timestamp {
		t.Error("update must preserve ID and timestamp")
	}
}

func TestInitialLoadSnapshot(t *testing.T) {
	fh := host.NewFake()
	if err := fh.AddMessage(context.Background(), "earlier", conversation.RoleInterviewer); err != nil {
		t.Fatal(err)
	}
	// Drain the pre-bridge push so it is not double-applied on top of
	// the snapshot.
	<-fh.Events()

	sink := newRecorderSink()
	ctrl := session.NewController(session.Config{
		Capture:     audio.NewFakeCapture(),
		Host:        fh,
		Transcriber: transcriber.NewFake("x", nil),
		Suggester:   suggest.NewFakeProvider(suggest.Suggestions{}),
		Sink:        sink,
		Format:      "wav",
	})
	bridge := session.NewBridge(ctrl, fh, make(chan struct{}))
	go bridge.Run()
	t.Cleanup(func() { bridge.Teardown(); fh.Close() })

	msgs := waitCh(t, sink.conv, "initial snapshot")
	if len(msgs) != 1 || msgs[0].Text != "earlier" {
		t.Fatalf("snapshot = %+v", msgs)
	}
}

func TestInitialLoadFailureNonFatal(t *testing.T) {
	fh := host.NewFake()
	fh.LoadErr = errors.New("host unreachable")
	sink := newRecorderSink()
	ctrl := session.NewController(session.Config{
		Capture:     audio.NewFakeCapture(),
		Host:        fh,
		Transcriber: transcriber.NewFake("x", nil),
		Suggester:   suggest.NewFakeProvider(suggest.Suggestions{}),
		Sink:        sink,
		Format:      "wav",
	})
	bridge := session.NewBridge(ctrl, fh, make(chan struct{}))
	go bridge.Run()
	t.Cleanup(func() { bridge.Teardown(); fh.Close() })

	// The session keeps working; the mirror converges through pushes.
	fh.LoadErr = nil
	if err := fh.AddMessage(context.Background(), "late", conversation.RoleInterviewer); err != nil {
		t.Fatal(err)
	}
	msgs := waitCh(t, sink.conv, "push after failed load")
	if len(msgs) != 1 || msgs[0].Text != "late" {
		t.Fatalf("mirror = %+v", msgs)
	}
}

func TestLevelTriggeredToggle(t *testing.T) {
	f := newFixture(t)

	f.hk.SimPress()
	waitFor(t, "recording to start", func() bool {
		return f.ctrl.Phase() == session.PhaseRecording
	})

	f.trans.Gate = make(chan struct{})
	f.hk.SimPress()
	waitFor(t, "processing to start", func() bool {
		return f.ctrl.Phase() == session.PhaseProcessing
	})

	// A press during processing is dropped, not queued.
	f.hk.SimPress()
	time.Sleep(50 * time.Millisecond)
	if f.capture.Starts() != 1 {
		t.Errorf("capture starts = %d, want 1", f.capture.Starts())
	}

	close(f.trans.Gate)
	waitFor(t, "return to idle", func() bool {
		return f.ctrl.Phase() == session.PhaseIdle
	})
}

func TestTickIncrementsAndResets(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	first := waitCh(t, f.sink.ticks, "first tick")
	second := waitCh(t, f.sink.ticks, "second tick")
	if second != first+1 {
		t.Errorf("ticks %d then %d, want consecutive", first, second)
	}

	done, err := f.ctrl.Stop()
	if err != nil {
		t.Fatal(err)
	}
	waitCh(t, done, "processing to finish")
	if f.ctrl.Seconds() != 0 {
		t.Errorf("seconds = %d after stop, want 0", f.ctrl.Seconds())
	}
}

func TestTeardownIdempotent(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	f.bridge.Teardown()
	f.bridge.Teardown()

	if f.capture.Running() {
		t.Error("capture still running after teardown")
	}
	if got := f.ctrl.Phase(); got != session.PhaseIdle {
		t.Errorf("phase = %s, want idle", got)
	}
	// The callback is released; pushes after teardown go nowhere.
	f.capture.Push(make([]byte, 64))
}
