package session

import (
	"context"
	"sync"
	"sync/atomic"

	"parley/host"
	"parley/log"
)

// Bridge owns the single loop that feeds the controller: host push
// events and the recording-toggle signal arrive on one select so
// deliveries apply in order. Teardown is idempotent and leaves the
// controller released.
type Bridge struct {
	ctrl   *Controller
	hostc  host.Host
	toggle <-chan struct{}

	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	teardown sync.Once
}

func NewBridge(ctrl *Controller, h host.Host, toggle <-chan struct{}) *Bridge {
	return &Bridge{
		ctrl:   ctrl,
		hostc:  h,
		toggle: toggle,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run loads the initial conversation snapshot and then dispatches until
// Teardown or until the host event stream closes. Blocks; callers run
// it on its own goroutine.
func (b *Bridge) Run() {
	b.started.Store(true)
	defer close(b.done)

	// A failed initial load is not fatal: the mirror starts empty and
	// converges through push events.
	if msgs, err := b.hostc.Conversation(context.Background()); err != nil {
		log.Warnf("initial conversation load failed: %v", err)
	} else {
		b.ctrl.SetConversation(msgs)
	}

	events := b.hostc.Events()
	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-events:
			if !ok {
				log.Warn("host event stream closed")
				return
			}
			b.ctrl.HandleEvent(ev)
		case _, ok := <-b.toggle:
			if !ok {
				return
			}
			b.ctrl.ToggleRecording()
		}
	}
}

// Teardown stops the dispatch loop, waits for it to drain, and releases
// the controller. Repeat calls are no-ops.
func (b *Bridge) Teardown() {
	b.teardown.Do(func() {
		close(b.stop)
		if b.started.Load() {
			<-b.done
		}
		b.ctrl.Teardown()
	})
}
