// Package hotkey emits the local toggle-recording signal. The signal is
// level-triggered: it carries no start/stop intent, the consumer decides
// based on the session state at dispatch time.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	// Toggled fires once per key press.
	Toggled() <-chan struct{}
}
