// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/quality"
)

// Topic is the MQTT topic for chamber quality reports.
const Topic = "dqm/rpc/chamberquality/reports"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "dqm/rpc/chamberquality/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventLWT         = "LWT"
)

// Publisher publishes reports to MQTT.
type Publisher interface {
	// PublishReport sends a quality report to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReport(rep *client.Report) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure for reports.
type Payload struct {
	Report ReportPayload `json:"report"`
}

// ReportPayload contains the report details.
type ReportPayload struct {
	SessionID   string           `json:"session_id"`
	Timestamp   string           `json:"timestamp"`
	Checkpoint  int              `json:"checkpoint"`
	Final       bool             `json:"final"`
	Events      int              `json:"events"`
	ElapsedMs   int64            `json:"elapsed_ms"`
	Chambers    int              `json:"chambers"`
	Regions     []RegionPayload  `json:"regions"`
	BadChambers []ChamberPayload `json:"bad_chambers"`
}

// RegionPayload is one overview column.
type RegionPayload struct {
	Region    string             `json:"region"`
	Label     string             `json:"label"`
	HasData   bool               `json:"has_data"`
	Entries   float64            `json:"entries"`
	Counts    map[string]int     `json:"counts"`
	Fractions map[string]float64 `json:"fractions"`
}

// ChamberPayload is a detector unit with a non-Good verdict.
type ChamberPayload struct {
	Unit  string `json:"unit"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	State string `json:"state"`
}

// FormatPayload creates the JSON payload for a report.
func FormatPayload(rep *client.Report) ([]byte, error) {
	p := ReportPayload{
		SessionID:   rep.SessionID,
		Timestamp:   rep.Time.UTC().Format(time.RFC3339),
		Checkpoint:  rep.Checkpoint,
		Final:       rep.Final,
		Events:      rep.Events,
		ElapsedMs:   rep.Elapsed.Milliseconds(),
		Chambers:    rep.Total(),
		Regions:     make([]RegionPayload, 0, quality.NumRegions),
		BadChambers: make([]ChamberPayload, 0, len(rep.BadChambers)),
	}
	for _, r := range rep.Regions {
		rp := RegionPayload{
			Region:    r.Region.String(),
			Label:     r.Region.Label(),
			HasData:   r.HasData,
			Entries:   r.Entries,
			Counts:    make(map[string]int, quality.NumStates),
			Fractions: make(map[string]float64, quality.NumStates),
		}
		for _, s := range quality.States {
			rp.Counts[s.String()] = r.Counts.Of(s)
			rp.Fractions[s.String()] = r.Fractions[s-1]
		}
		p.Regions = append(p.Regions, rp)
	}
	for _, c := range rep.BadChambers {
		p.BadChambers = append(p.BadChambers, ChamberPayload{
			Unit:  c.Unit.String(),
			X:     c.X,
			Y:     c.Y,
			State: c.State.String(),
		})
	}
	return json.Marshal(Payload{Report: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

type willInner struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

// WillPayload is the last-will message the broker publishes if the client
// disappears without a clean disconnect. It has no timestamp since it is
// registered at connect time.
func WillPayload() []byte {
	data, _ := json.Marshal(map[string]willInner{
		"system": {Event: EventLWT, Reason: "connection lost"},
	})
	return data
}
