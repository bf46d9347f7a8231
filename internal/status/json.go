package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rpc-quality-client/internal/quality"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	SessionID     string        `json:"session_id"`
	Booked        bool          `json:"booked"`
	Ready         bool          `json:"ready"`
	Checkpoints   int           `json:"checkpoints"`
	Fills         int           `json:"fills"`
	Skipped       SkippedJSON   `json:"skipped"`
	LastSkip      string        `json:"last_skip,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Overview      *OverviewJSON `json:"overview,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SkippedJSON is the JSON representation of skip counts.
type SkippedJSON struct {
	Disabled  int `json:"disabled"`
	Offline   int `json:"offline"`
	Prescale  int `json:"prescale"`
	MinEvents int `json:"min_events"`
}

// OverviewJSON is the latest overview, one entry per region.
type OverviewJSON struct {
	Timestamp   string       `json:"timestamp"`
	Checkpoint  int          `json:"checkpoint"`
	Final       bool         `json:"final"`
	Events      int          `json:"events"`
	Chambers    int          `json:"chambers"`
	BadChambers int          `json:"bad_chambers"`
	Regions     []RegionJSON `json:"regions"`
}

// RegionJSON is one overview column.
type RegionJSON struct {
	Region    string             `json:"region"`
	Label     string             `json:"label"`
	HasData   bool               `json:"has_data"`
	Counts    map[string]int     `json:"counts"`
	Fractions map[string]float64 `json:"fractions"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PeriodMs            int64  `json:"period_ms"`
	HeartbeatMs         int64  `json:"heartbeat_ms"`
	Broker              string `json:"broker"`
	HTTPAddr            string `json:"http_addr"`
	DBPath              string `json:"db_path,omitempty"`
	InputPath           string `json:"input_path,omitempty"`
	PrescaleFactor      int    `json:"prescale_factor"`
	MinimumRPCEvents    int    `json:"minimum_rpc_events"`
	NumberOfEndcapDisks int    `json:"number_of_endcap_disks"`
	EnableRPCDqmClient  bool   `json:"enable_rpc_dqm_client"`
	OfflineDQM          bool   `json:"offline_dqm"`
	UseRollInfo         bool   `json:"use_roll_info"`
}

func buildOverview(snap Snapshot) *OverviewJSON {
	rep := snap.LastReport
	if rep == nil {
		return nil
	}
	ov := &OverviewJSON{
		Timestamp:   rep.Time.UTC().Format(time.RFC3339),
		Checkpoint:  rep.Checkpoint,
		Final:       rep.Final,
		Events:      rep.Events,
		Chambers:    rep.Total(),
		BadChambers: len(rep.BadChambers),
		Regions:     make([]RegionJSON, 0, quality.NumRegions),
	}
	for _, r := range rep.Regions {
		rj := RegionJSON{
			Region:    r.Region.String(),
			Label:     r.Region.Label(),
			HasData:   r.HasData,
			Counts:    make(map[string]int, quality.NumStates),
			Fractions: make(map[string]float64, quality.NumStates),
		}
		for _, s := range quality.States {
			rj.Counts[s.String()] = r.Counts.Of(s)
			rj.Fractions[s.String()] = r.Fractions[s-1]
		}
		ov.Regions = append(ov.Regions, rj)
	}
	return ov
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Config
	return StatusInner{
		SessionID:   snap.SessionID,
		Booked:      snap.Booked,
		Ready:       snap.LastReport != nil,
		Checkpoints: snap.Checkpoints,
		Fills:       snap.Fills,
		Skipped: SkippedJSON{
			Disabled:  snap.Skipped.Disabled,
			Offline:   snap.Skipped.Offline,
			Prescale:  snap.Skipped.Prescale,
			MinEvents: snap.Skipped.MinEvents,
		},
		LastSkip:      string(snap.LastSkip),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: c.Broker},
		Overview:      buildOverview(snap),
		Config: ConfigJSON{
			PeriodMs:            c.PeriodMs,
			HeartbeatMs:         c.HeartbeatMs,
			Broker:              c.Broker,
			HTTPAddr:            c.HTTPAddr,
			DBPath:              c.DBPath,
			InputPath:           c.InputPath,
			PrescaleFactor:      c.PrescaleFactor,
			MinimumRPCEvents:    c.MinimumRPCEvents,
			NumberOfEndcapDisks: c.NumberOfEndcapDisks,
			EnableRPCDqmClient:  c.EnableRPCDqmClient,
			OfflineDQM:          c.OfflineDQM,
			UseRollInfo:         c.UseRollInfo,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// The overview is omitted; reports carry it on their own topic.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Overview = nil

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
