package source

import "errors"

// FakeReader is a test double that applies scripted dumps.
type FakeReader struct {
	// Frames contains scripted dumps. Each call to Load applies the next
	// frame; once exhausted the last frame is applied repeatedly.
	Frames []Dump

	// index tracks current position in Frames
	index int

	// Loads counts calls to Load.
	Loads int

	// Closed tracks if Close was called
	Closed bool

	// LoadError, if set, will be returned by Load()
	LoadError error
}

// NewFakeReader creates a FakeReader with the given frames.
func NewFakeReader(frames []Dump) *FakeReader {
	return &FakeReader{Frames: frames}
}

// Load applies the next scripted frame.
func (f *FakeReader) Load(store Store) error {
	f.Loads++
	if f.LoadError != nil {
		return f.LoadError
	}
	if len(f.Frames) == 0 {
		return errors.New("no frames configured")
	}

	frame := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	return ApplyDump(store, frame)
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the reader to the first frame.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Loads = 0
	f.Closed = false
}
