package mqtt

import (
	"github.com/sweeney/rpc-quality-client/internal/client"
)

// FakePublisher records what would reach the broker. Reports and system
// events are kept in publish order; Retained mirrors the broker's retained
// store, holding the last retained payload per topic.
type FakePublisher struct {
	Reports  []*client.Report
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Retained maps topic to the payload a new subscriber would receive.
	Retained map[string][]byte

	// PublishError and PublishSystemError, if set, are returned without
	// recording anything.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Retained: make(map[string][]byte)}
}

// PublishReport formats and records the report. Reports are not retained.
func (f *FakePublisher) PublishReport(rep *client.Report) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(rep)
	if err != nil {
		return err
	}
	f.Reports = append(f.Reports, rep)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem formats and records the event, updating the retained
// store for retained events.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	if event.Retained {
		if f.Retained == nil {
			f.Retained = make(map[string][]byte)
		}
		f.Retained[TopicSystem] = payload
	}
	return nil
}

// LastReport returns the most recent report, or nil.
func (f *FakePublisher) LastReport() *client.Report {
	if len(f.Reports) == 0 {
		return nil
	}
	return f.Reports[len(f.Reports)-1]
}

// EventNames returns the names of the recorded system events in order.
func (f *FakePublisher) EventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, ev := range f.SystemEvents {
		names[i] = ev.Event
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}
