// Package status provides a thread-safe status tracker for the quality client.
// It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rpc-quality-client/internal/client"
)

// Config contains daemon configuration for display.
type Config struct {
	PeriodMs            int64
	HeartbeatMs         int64
	Broker              string
	HTTPAddr            string
	DBPath              string
	InputPath           string
	PrescaleFactor      int
	MinimumRPCEvents    int
	NumberOfEndcapDisks int
	EnableRPCDqmClient  bool
	OfflineDQM          bool
	UseRollInfo         bool
}

// SkipCounts counts checkpoints that did not produce a fill, by reason.
type SkipCounts struct {
	Disabled  int
	Offline   int
	Prescale  int
	MinEvents int
}

func (c *SkipCounts) add(r client.SkipReason) {
	switch r {
	case client.SkipDisabled:
		c.Disabled++
	case client.SkipOffline:
		c.Offline++
	case client.SkipPrescale:
		c.Prescale++
	case client.SkipMinEvents:
		c.MinEvents++
	}
}

// Total returns the number of skipped checkpoints.
func (c SkipCounts) Total() int {
	return c.Disabled + c.Offline + c.Prescale + c.MinEvents
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
// LastReport is shared but never mutated after publication.
type Snapshot struct {
	SessionID     string
	Booked        bool
	Checkpoints   int
	Fills         int
	Skipped       SkipCounts
	LastSkip      client.SkipReason
	LastReport    *client.Report
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetSession records the active session ID.
func (t *Tracker) SetSession(id string) {
	t.mu.Lock()
	t.snap.SessionID = id
	t.mu.Unlock()
}

// RecordCheckpoint stores the outcome of one checkpoint.
// Called from runLoop after every period boundary and at session end.
func (t *Tracker) RecordCheckpoint(booked bool, rep *client.Report, skip client.SkipReason) {
	t.mu.Lock()
	t.snap.Booked = booked
	t.snap.Checkpoints++
	t.snap.LastSkip = skip
	if rep != nil {
		t.snap.Fills++
		t.snap.LastReport = rep
	} else {
		t.snap.Skipped.add(skip)
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
