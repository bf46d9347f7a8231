package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/rpc-quality-client/internal/client"
)

const publishTimeout = 5 * time.Second

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
	// OnReconnect, if set, is called after a reconnect once buffered
	// messages have been replayed.
	OnReconnect func()
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	clientID    string
	onReconnect func()

	mu            sync.Mutex
	queue         *offlineQueue
	connected     bool
	everConnected bool
	replaying     bool // queue is being replayed; new messages go behind it
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until it succeeds.
func NewRealPublisher(opts Options) *RealPublisher {
	p := newPublisher(opts)

	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(p.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleConnectionLost)

	p.client = paho.NewClient(popts)
	p.client.Connect()
	return p
}

// newPublisher returns an unconnected publisher without a client.
func newPublisher(opts Options) *RealPublisher {
	if opts.ClientID == "" {
		opts.ClientID = "rpc-quality-client"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		clientID:    opts.ClientID,
		queue:       newOfflineQueue(opts.BufferSize),
		onReconnect: opts.OnReconnect,
	}
}

// handleConnect replays the offline queue. Until the queue is empty, new
// messages are queued behind the replayed ones so the broker sees them in
// publish order.
func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everConnected
	p.connected = true
	p.everConnected = true
	p.replaying = true
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
	} else {
		log.Printf("mqtt: connected")
	}

	replayed := 0
	for {
		p.mu.Lock()
		if !p.connected || p.queue.len() == 0 {
			p.replaying = false
			p.mu.Unlock()
			break
		}
		pending := p.queue.drainAll()
		p.mu.Unlock()

		for _, m := range pending {
			token := c.Publish(m.topic, m.qos, m.retained, m.payload)
			if !token.WaitTimeout(publishTimeout) {
				log.Printf("mqtt: replay to %s timed out", m.topic)
				continue
			}
			if err := token.Error(); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
				continue
			}
			replayed++
		}
	}
	if replayed > 0 {
		log.Printf("mqtt: replayed %d queued messages", replayed)
	}

	if reconnect && p.onReconnect != nil {
		p.onReconnect()
	}
}

func (p *RealPublisher) handleConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected || p.replaying {
		p.queue.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// On timeout the message stays in paho's in-flight store, which
	// redelivers QoS 1 messages after a reconnect.
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishReport sends a quality report to the MQTT broker.
func (p *RealPublisher) PublishReport(rep *client.Report) error {
	payload, err := FormatPayload(rep)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: reports are infrequent and consumers need every one
	return p.publish(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
