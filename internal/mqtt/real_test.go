package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// stubClient records publishes. When hold is set the first Publish signals
// held and blocks until hold is closed.
type stubClient struct {
	paho.Client

	mu      sync.Mutex
	sent    []bufferedMsg
	hold    chan struct{}
	held    chan struct{}
	timeout bool
}

func (c *stubClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.sent = append(c.sent, bufferedMsg{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	first := len(c.sent) == 1
	c.mu.Unlock()

	if first && c.hold != nil {
		close(c.held)
		<-c.hold
	}
	return &stubToken{timeout: c.timeout}
}

func (c *stubClient) Disconnect(uint) {}

func (c *stubClient) sentPayloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, string(m.payload))
	}
	return out
}

type stubToken struct {
	paho.Token
	timeout bool
}

func (t *stubToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *stubToken) Error() error                  { return nil }

func rawEvent(payload string) SystemEvent {
	return SystemEvent{Event: "STATUS", RawPayload: []byte(payload), Retained: true}
}

func TestRealPublisherQueuesWhileDisconnected(t *testing.T) {
	stub := &stubClient{}
	p := newPublisher(Options{})
	p.client = stub

	if err := p.PublishSystem(rawEvent("a")); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if got := p.queue.len(); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	if got := len(stub.sentPayloads()); got != 0 {
		t.Errorf("sent %d messages while disconnected", got)
	}
}

func TestRealPublisherReplayKeepsPublishOrder(t *testing.T) {
	stub := &stubClient{hold: make(chan struct{}), held: make(chan struct{})}
	p := newPublisher(Options{})
	p.client = stub

	if err := p.PublishSystem(rawEvent("stale")); err != nil {
		t.Fatalf("PublishSystem stale: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.handleConnect(stub)
		close(done)
	}()
	<-stub.held

	// Replay is in flight: the new message must wait behind it.
	if err := p.PublishSystem(rawEvent("new")); err != nil {
		t.Fatalf("PublishSystem new: %v", err)
	}
	if got := p.queue.len(); got != 1 {
		t.Errorf("queued during replay = %d, want 1", got)
	}

	close(stub.hold)
	<-done

	got := stub.sentPayloads()
	if len(got) != 2 || got[0] != "stale" || got[1] != "new" {
		t.Errorf("sent = %v, want [stale new]", got)
	}
	if n := p.queue.len(); n != 0 {
		t.Errorf("queue not drained: %d left", n)
	}

	// After replay, publishes go straight to the client.
	if err := p.PublishSystem(rawEvent("after")); err != nil {
		t.Fatalf("PublishSystem after: %v", err)
	}
	if got := stub.sentPayloads(); len(got) != 3 || got[2] != "after" {
		t.Errorf("sent = %v, want direct publish of after", got)
	}
}

func TestRealPublisherTimeoutNotQueued(t *testing.T) {
	stub := &stubClient{timeout: true}
	p := newPublisher(Options{})
	p.client = stub
	p.handleConnect(stub)

	if err := p.PublishSystem(rawEvent("slow")); err == nil {
		t.Fatal("expected timeout error")
	}
	if n := p.queue.len(); n != 0 {
		t.Errorf("timed out message was queued: %d", n)
	}
	if got := len(stub.sentPayloads()); got != 1 {
		t.Errorf("sent = %d, want 1", got)
	}
}

func TestRealPublisherOnReconnect(t *testing.T) {
	calls := 0
	stub := &stubClient{}
	p := newPublisher(Options{OnReconnect: func() { calls++ }})
	p.client = stub

	p.handleConnect(stub)
	if calls != 0 {
		t.Fatalf("OnReconnect called on first connect")
	}

	p.handleConnectionLost(stub, nil)
	if p.IsConnected() {
		t.Fatal("still connected after connection lost")
	}
	if err := p.PublishSystem(rawEvent("offline")); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	p.handleConnect(stub)
	if calls != 1 {
		t.Errorf("OnReconnect calls = %d, want 1", calls)
	}
	if got := stub.sentPayloads(); len(got) != 1 || got[0] != "offline" {
		t.Errorf("sent = %v, want [offline] replayed", got)
	}
}
