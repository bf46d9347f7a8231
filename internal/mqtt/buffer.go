package mqtt

import (
	"log"

	"github.com/sweeney/rpc-quality-client/internal/metrics"
)

// bufferedMsg is a serialized report or system message awaiting replay.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages while the broker is unreachable, oldest first.
// A retained message supersedes any queued retained message on the same
// topic, since the broker would only keep the last one. When full the
// oldest message is dropped.
// Not safe for concurrent use; the publisher holds its lock.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int  // messages lost to overflow since creation
	overflow bool // a drop has been logged since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range q.msgs {
			if m.retained && m.topic == msg.topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}

	if len(q.msgs) == q.capacity {
		if !q.overflow {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest", q.capacity)
			q.overflow = true
		}
		q.msgs = append(q.msgs[:0], q.msgs[1:]...)
		q.dropped++
		metrics.MQTTDropped.Inc()
	}
	q.msgs = append(q.msgs, msg)
	metrics.MQTTQueued.Set(float64(len(q.msgs)))
}

func (q *offlineQueue) drainAll() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := make([]bufferedMsg, len(q.msgs))
	copy(out, q.msgs)
	q.msgs = q.msgs[:0]
	q.overflow = false
	metrics.MQTTQueued.Set(0)
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
