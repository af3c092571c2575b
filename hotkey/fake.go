package hotkey

type FakeHotkey struct {
	toggled chan struct{}
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{toggled: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error          { return nil }
func (f *FakeHotkey) Unregister()              {}
func (f *FakeHotkey) Toggled() <-chan struct{} { return f.toggled }

func (f *FakeHotkey) SimPress() { f.toggled <- struct{}{} }
