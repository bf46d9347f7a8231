package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/metrics"
	"github.com/sweeney/rpc-quality-client/internal/quality"
	"github.com/sweeney/rpc-quality-client/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PeriodMs:         60000,
		HeartbeatMs:      900000,
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":8080",
		PrescaleFactor:   5,
		MinimumRPCEvents: 10000,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func testReport() *client.Report {
	rep := &client.Report{
		SessionID:  "s1",
		Time:       time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
		Checkpoint: 5,
		Events:     20000,
	}
	for _, reg := range quality.Regions {
		rep.Regions[reg].Region = reg
	}
	b := &rep.Regions[quality.RegionBarrel]
	b.Counts.Add(quality.StateGood)
	b.Counts.Add(quality.StateDead)
	b.Entries = 2
	b.HasData = true
	b.Fractions[quality.StateGood-1] = 0.5
	b.Fractions[quality.StateDead-1] = 0.5
	rep.BadChambers = []client.Chamber{{Unit: quality.Wheel(1), X: 4, Y: 20, State: quality.StateDead}}
	return rep
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetSession("s1")
	tr.RecordCheckpoint(true, testReport(), client.SkipNone)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if sj.Status.SessionID != "s1" {
		t.Errorf("SessionID: got %q, want s1", sj.Status.SessionID)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Fills != 1 {
		t.Errorf("Fills: got %d, want 1", sj.Status.Fills)
	}
	if sj.Status.Config.PeriodMs != 60000 {
		t.Errorf("Config.PeriodMs: got %d, want 60000", sj.Status.Config.PeriodMs)
	}
	if sj.Status.Overview == nil || sj.Status.Overview.Regions[1].Fractions["DEAD"] != 0.5 {
		t.Errorf("unexpected overview: %+v", sj.Status.Overview)
	}
}

func TestJSONBeforeFirstFill(t *testing.T) {
	ts, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")

	var sj status.StatusJSON
	json.Unmarshal([]byte(body), &sj)

	if sj.Status.Ready {
		t.Error("expected Ready=false before first fill")
	}
	if sj.Status.Overview != nil {
		t.Error("expected no overview before first fill")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordCheckpoint(true, testReport(), client.SkipNone)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	for _, want := range []string{`id="overview"`, "Part.Dead", "50.0% (1)", "Checkpoint 5"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHTMLEndpointNoFill(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "No fill yet.") {
		t.Error("expected placeholder before first fill")
	}
}

func TestOverviewChart(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordCheckpoint(true, testReport(), client.SkipNone)

	resp, body := get(t, ts.URL+"/overview.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type: got %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "echarts") {
		t.Error("expected echarts page")
	}
}

func TestOverviewChartSeries(t *testing.T) {
	bar := overviewChart(status.Snapshot{LastReport: testReport()})
	if len(bar.MultiSeries) != quality.NumStates {
		t.Fatalf("expected %d series, got %d", quality.NumStates, len(bar.MultiSeries))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	metrics.RecordCheckpoint(testReport(), client.SkipNone)

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{"rpcdqm_client_fills_total", `rpcdqm_client_overview_fraction{region="Barrel",state="DEAD"} 0.5`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")
	var sj1 status.StatusJSON
	json.Unmarshal([]byte(body), &sj1)
	if sj1.Status.Booked {
		t.Error("expected Booked=false initially")
	}

	tr.RecordCheckpoint(true, nil, client.SkipMinEvents)
	tr.SetMQTTConnected(true)

	_, body = get(t, ts.URL+"/index.json")
	var sj2 status.StatusJSON
	json.Unmarshal([]byte(body), &sj2)

	if !sj2.Status.Booked {
		t.Error("expected Booked=true after checkpoint")
	}
	if sj2.Status.Skipped.MinEvents != 1 {
		t.Errorf("Skipped.MinEvents: got %d, want 1", sj2.Status.Skipped.MinEvents)
	}
	if sj2.Status.LastSkip != "min_events" {
		t.Errorf("LastSkip: got %q, want min_events", sj2.Status.LastSkip)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestChambersEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)

	resp, _ := get(t, ts.URL+"/chambers.json")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("before first fill: got %d, want 503", resp.StatusCode)
	}

	rep := testReport()
	rep.BadChambers = append(rep.BadChambers, client.Chamber{Unit: quality.Disk(-2), X: 30, Y: 6, State: quality.StateOff})
	tr.RecordCheckpoint(true, rep, client.SkipNone)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Wheel1", "Disk-2"}},
		{"?unit=Disk-2", []string{"Disk-2"}},
		{"?state=DEAD", []string{"Wheel1"}},
		{"?unit=Wheel1&state=OFF", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, body := get(t, ts.URL+"/chambers.json"+tt.query)
			if resp.StatusCode != 200 {
				t.Fatalf("status: got %d, want 200", resp.StatusCode)
			}
			var parsed chambersJSON
			if err := json.Unmarshal([]byte(body), &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			got := make([]string, 0, len(parsed.Chambers))
			for _, c := range parsed.Chambers {
				got = append(got, c.Unit)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("units = %v, want %v", got, tt.want)
			}
		})
	}

	_, body := get(t, ts.URL+"/chambers.json?unit=Disk-2")
	if !strings.Contains(body, `"region":"EndcapNegative"`) || !strings.Contains(body, `"label":"OFF"`) {
		t.Errorf("unexpected chamber body: %s", body)
	}
}
