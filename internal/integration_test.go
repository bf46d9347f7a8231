package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/config"
	"github.com/sweeney/rpc-quality-client/internal/db"
	"github.com/sweeney/rpc-quality-client/internal/dqm"
	"github.com/sweeney/rpc-quality-client/internal/mqtt"
	"github.com/sweeney/rpc-quality-client/internal/quality"
	"github.com/sweeney/rpc-quality-client/internal/source"
	"github.com/sweeney/rpc-quality-client/internal/status"
)

func init() {
	client.Logf = func(string, ...interface{}) {}
}

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return startTime }

type cell struct {
	kind  quality.InputKind
	unit  quality.Unit
	x, y  int
	value float64
}

// writeDump writes an input dump with the event counter and the given cells.
func writeDump(t *testing.T, path string, n quality.Naming, events float64, cells ...cell) {
	t.Helper()
	byName := make(map[string]int)
	dump := source.Dump{Histograms: []source.Histogram{{
		Name: n.Events(), NX: 1, XLow: 0.5, XHigh: 1.5,
		Bins: []source.Bin{{X: 1, Value: events}},
	}}}
	for _, c := range cells {
		name := n.Input(c.kind, c.unit)
		i, ok := byName[name]
		if !ok {
			l := c.unit.Layout(false)
			dump.Histograms = append(dump.Histograms, source.Histogram{
				Name: name, NX: l.NX, XLow: l.XLow, XHigh: l.XHigh, NY: l.NY, YLow: l.YLow, YHigh: l.YHigh,
			})
			i = len(dump.Histograms) - 1
			byName[name] = i
		}
		dump.Histograms[i].Bins = append(dump.Histograms[i].Bins, source.Bin{X: c.x, Y: c.y, Value: c.value})
	}
	data, err := json.Marshal(dump)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func onlineConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.OfflineDQM = false
	cfg.PrescaleFactor = 1
	return cfg
}

// One chamber per verdict, spread over the three regions.
var mixedCells = []cell{
	{quality.InputHV, quality.Wheel(-2), 1, 1, 0},
	{quality.InputDead, quality.Disk(1), 2, 3, 0.5},
	{quality.InputNoisyStrips, quality.Disk(-1), 1, 1, 2},
	{quality.InputMultiplicity, quality.Wheel(0), 5, 5, 7},
	{quality.InputAsymmetry, quality.Wheel(2), 1, 1, 0.4},
	{quality.InputDead, quality.Wheel(1), 4, 21, 0.95},
}

// TestIntegrationFullFlow drives a file dump through the store, the
// session, the publisher and the database.
func TestIntegrationFullFlow(t *testing.T) {
	dir := t.TempDir()
	cfg := onlineConfig()
	inputPath := filepath.Join(dir, "inputs.json")
	writeDump(t, inputPath, cfg.Naming(), 25000, mixedCells...)

	reader, err := source.NewFileReader(inputPath)
	require.NoError(t, err)
	defer reader.Close()

	store := dqm.NewStore()
	session := client.OnBeginSession(cfg, store, fixedNow)
	publisher := mqtt.NewFakePublisher()

	database, err := db.Open(filepath.Join(dir, "quality.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.RecordSession(session.ID(), startTime, cfg))

	require.NoError(t, reader.Load(store))
	rep, skip := session.OnPeriodBoundary()
	require.Equal(t, client.SkipNone, skip)
	require.NotNil(t, rep)
	require.NoError(t, publisher.PublishReport(rep))
	reportID, err := database.RecordReport(rep)
	require.NoError(t, err)

	// verdicts
	got := map[string]quality.State{}
	for _, c := range rep.BadChambers {
		got[c.Unit.String()] = c.State
	}
	assert.Equal(t, map[string]quality.State{
		"Wheel-2": quality.StateOff,
		"Disk1":   quality.StatePartiallyDead,
		"Disk-1":  quality.StateNoisyStrip,
		"Wheel0":  quality.StateNoisyChamber,
		"Wheel2":  quality.StateBadShape,
		"Wheel1":  quality.StateDead,
	}, got)
	assert.Equal(t, 25000, rep.Events)

	// maps
	n := cfg.Naming()
	assert.Equal(t, float64(quality.StateDead), store.Get(n.Map(quality.Wheel(1))).BinContent2D(4, 21))
	assert.Equal(t, float64(quality.StateGood), store.Get(n.Map(quality.Wheel(1))).BinContent2D(4, 20))
	assert.Equal(t, float64(quality.StatePartiallyDead), store.Get(n.Map(quality.Disk(1))).BinContent2D(2, 3))

	// overview
	barrel := rep.Regions[quality.RegionBarrel]
	total := float64(barrel.Counts.Total())
	overview := store.Get(n.Overview())
	require.NotNil(t, overview)
	assert.InDelta(t, 1/total, overview.BinContent2D(quality.StateOff.Bin(), quality.RegionBarrel.Row()), 1e-12)
	assert.InDelta(t, (total-4)/total, overview.BinContent2D(quality.StateGood.Bin(), quality.RegionBarrel.Row()), 1e-12)
	for _, r := range quality.Regions {
		sum := 0.0
		for _, s := range quality.States {
			sum += overview.BinContent2D(s.Bin(), r.Row())
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "region %s", r)
	}

	// payload
	var payload mqtt.Payload
	require.NoError(t, json.Unmarshal(publisher.Payloads[0], &payload))
	assert.Equal(t, session.ID(), payload.Report.SessionID)
	assert.Len(t, payload.Report.BadChambers, 6)
	assert.Equal(t, rep.Total(), payload.Report.Chambers)
	assert.Equal(t, "B", payload.Report.Regions[quality.RegionBarrel].Label)
	assert.Equal(t, 1, payload.Report.Regions[quality.RegionBarrel].Counts["DEAD"])

	// persisted
	ov, err := database.LatestOverview(session.ID())
	require.NoError(t, err)
	assert.Equal(t, reportID, ov.ReportID)
	assert.Equal(t, 1, ov.Counts[quality.RegionEndcapPositive][quality.StatePartiallyDead-1])
	assert.InDelta(t, barrel.Fractions[quality.StateGood-1], ov.Fractions[quality.RegionBarrel][quality.StateGood-1], 1e-12)

	chambers, err := database.BadChambers(reportID)
	require.NoError(t, err)
	assert.Len(t, chambers, 6)
}

// TestIntegrationInputsChangeBetweenCheckpoints verifies that each fill
// reflects the latest dump and that recovered chambers return to Good.
func TestIntegrationInputsChangeBetweenCheckpoints(t *testing.T) {
	dir := t.TempDir()
	cfg := onlineConfig()
	inputPath := filepath.Join(dir, "inputs.json")

	reader, err := source.NewFileReader(inputPath)
	require.NoError(t, err)
	store := dqm.NewStore()
	session := client.OnBeginSession(cfg, store, fixedNow)

	writeDump(t, inputPath, cfg.Naming(), 20000,
		cell{quality.InputDead, quality.Wheel(0), 1, 1, 0.9})
	require.NoError(t, reader.Load(store))
	first, _ := session.OnPeriodBoundary()
	require.NotNil(t, first)
	require.Len(t, first.BadChambers, 1)

	writeDump(t, inputPath, cfg.Naming(), 40000,
		cell{quality.InputDead, quality.Wheel(0), 1, 1, 0})
	require.NoError(t, reader.Load(store))
	second, _ := session.OnPeriodBoundary()
	require.NotNil(t, second)
	assert.Empty(t, second.BadChambers)
	assert.Equal(t, 40000, second.Events)
	assert.Equal(t, first.Total(), second.Total())

	// distributions are rebuilt, not accumulated
	dist := store.Get(cfg.Naming().Distribution(quality.Wheel(0)))
	require.NotNil(t, dist)
	assert.Equal(t, float64(second.Units[2].Counts.Total()), dist.Entries())
	assert.Zero(t, dist.BinContent(quality.StateDead.Bin()))
}

// TestIntegrationMissingInputFile verifies that a dump that has not been
// written yet yields an all-Good fill.
func TestIntegrationMissingInputFile(t *testing.T) {
	cfg := onlineConfig()
	reader, err := source.NewFileReader(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	store := dqm.NewStore()
	session := client.OnBeginSession(cfg, store, fixedNow)
	require.NoError(t, reader.Load(store))

	rep, skip := session.OnPeriodBoundary()
	require.Equal(t, client.SkipNone, skip)
	require.NotNil(t, rep)
	assert.Empty(t, rep.BadChambers)
	for _, r := range rep.Regions {
		assert.True(t, r.HasData)
		assert.InDelta(t, 1.0, r.Fractions[quality.StateGood-1], 1e-12)
	}
}

// TestIntegrationConfigFileDrivesCadence loads a YAML parameter set and
// checks the resulting fill cadence.
func TestIntegrationConfigFileDrivesCadence(t *testing.T) {
	cfg, err := config.Parse([]byte("OfflineDQM: false\nPrescaleFactor: 3\nMinimumRPCEvents: 0\n"))
	require.NoError(t, err)

	session := client.OnBeginSession(cfg.Client, dqm.NewStore(), fixedNow)
	var filled []int
	for i := 0; i < 7; i++ {
		if rep, _ := session.OnPeriodBoundary(); rep != nil {
			filled = append(filled, rep.Checkpoint)
		}
	}
	assert.Equal(t, []int{0, 3, 6}, filled)
}

// TestIntegrationStatusLifecycle checks the status documents published as
// STARTUP, after a fill and at SHUTDOWN.
func TestIntegrationStatusLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := onlineConfig()
	inputPath := filepath.Join(dir, "inputs.json")
	writeDump(t, inputPath, cfg.Naming(), 20000, mixedCells...)

	reader, err := source.NewFileReader(inputPath)
	require.NoError(t, err)
	store := dqm.NewStore()
	session := client.OnBeginSession(cfg, store, fixedNow)
	publisher := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{Broker: "tcp://localhost:1883", PrescaleFactor: 1})
	tracker.SetSession(session.ID())

	snap := tracker.Snapshot()
	require.NoError(t, publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}))

	require.NoError(t, reader.Load(store))
	rep, skip := session.OnPeriodBoundary()
	tracker.RecordCheckpoint(session.Booked(), rep, skip)

	rep, skip = session.OnSessionEnd()
	require.NotNil(t, rep)
	tracker.RecordCheckpoint(session.Booked(), rep, skip)

	snap = tracker.Snapshot()
	require.NoError(t, publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventShutdown,
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, "SIGTERM"),
	}))

	require.Len(t, publisher.SystemPayloads, 2)

	var startup status.StatusJSON
	require.NoError(t, json.Unmarshal(publisher.SystemPayloads[0], &startup))
	assert.Equal(t, mqtt.EventStartup, startup.Status.Event)
	assert.Equal(t, session.ID(), startup.Status.SessionID)
	assert.False(t, startup.Status.Ready)
	assert.Zero(t, startup.Status.Checkpoints)

	var shutdown status.StatusJSON
	require.NoError(t, json.Unmarshal(publisher.SystemPayloads[1], &shutdown))
	assert.Equal(t, mqtt.EventShutdown, shutdown.Status.Event)
	assert.Equal(t, "SIGTERM", shutdown.Status.Reason)
	assert.True(t, shutdown.Status.Ready)
	assert.True(t, shutdown.Status.Booked)
	assert.Equal(t, 2, shutdown.Status.Checkpoints)
	assert.Equal(t, 2, shutdown.Status.Fills)

	// full status document carries the latest overview
	var full status.StatusJSON
	require.NoError(t, json.Unmarshal(status.FormatJSON(snap), &full))
	require.NotNil(t, full.Status.Overview)
	assert.True(t, full.Status.Overview.Final)
	assert.Equal(t, 6, full.Status.Overview.BadChambers)
	assert.Len(t, full.Status.Overview.Regions, quality.NumRegions)
}
