package hotkey

import (
	"golang.design/x/hotkey"
)

// globalHotkey binds Ctrl+Shift+Space system-wide.
type globalHotkey struct {
	hk      *hotkey.Hotkey
	toggled chan struct{}
	stop    chan struct{}
}

func New() Hotkey {
	return &globalHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		toggled: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *globalHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				select {
				case h.toggled <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *globalHotkey) Unregister() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	h.hk.Unregister()
}

func (h *globalHotkey) Toggled() <-chan struct{} {
	return h.toggled
}
