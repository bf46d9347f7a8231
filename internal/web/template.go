package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rpc-quality-client/internal/quality"
	"github.com/sweeney/rpc-quality-client/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"percent": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>RPC Chamber Quality</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.good { color: green; font-weight: bold; }
.bad { color: #c00; }
.nodata { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>RPC Chamber Quality</h1>

<h2>Overview</h2>
{{if .LastReport}}
<table id="overview">
<tr><th>State</th>{{range .Regions}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td>{{.Label}}</td>{{range .Cells}}<td class="{{.Class}}">{{if .HasData}}{{percent .Fraction}} ({{.Count}}){{else}}-{{end}}</td>{{end}}</tr>
{{end}}</table>
<p>Checkpoint {{.LastReport.Checkpoint}}{{if .LastReport.Final}} (final){{end}}, {{.LastReport.Events}} events, {{len .LastReport.BadChambers}} chambers not good. <a href="/overview.html">chart</a></p>
{{else}}
<p class="nodata">No fill yet.</p>
{{end}}

<h2>Session</h2>
<table>
<tr><th>ID</th><td>{{.SessionID}}</td></tr>
<tr><th>Booked</th><td>{{if .Booked}}yes{{else}}no{{end}}</td></tr>
<tr><th>Checkpoints</th><td>{{.Checkpoints}}</td></tr>
<tr><th>Fills</th><td>{{.Fills}}</td></tr>
<tr><th>Skipped</th><td>prescale {{.Skipped.Prescale}}, min events {{.Skipped.MinEvents}}, offline {{.Skipped.Offline}}, disabled {{.Skipped.Disabled}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.DBPath}}<tr><th>Database</th><td>{{.Config.DBPath}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Period</th><td>{{.Config.PeriodMs}}ms</td></tr>
<tr><th>Prescale</th><td>{{.Config.PrescaleFactor}}</td></tr>
<tr><th>Minimum events</th><td>{{.Config.MinimumRPCEvents}}</td></tr>
<tr><th>Mode</th><td>{{if .Config.OfflineDQM}}offline{{else}}online{{end}}{{if not .Config.EnableRPCDqmClient}} (disabled){{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

type overviewCell struct {
	Fraction float64
	Count    int
	HasData  bool
	Class    string
}

type overviewRow struct {
	Label string
	Cells [quality.NumRegions]overviewCell
}

func overviewRows(snap status.Snapshot) []overviewRow {
	rep := snap.LastReport
	if rep == nil {
		return nil
	}
	rows := make([]overviewRow, 0, quality.NumStates)
	for _, s := range quality.States {
		row := overviewRow{Label: s.Label()}
		for i, reg := range quality.Regions {
			r := rep.Regions[reg]
			c := overviewCell{
				Fraction: rep.Fraction(reg, s),
				Count:    r.Counts.Of(s),
				HasData:  r.HasData,
				Class:    "nodata",
			}
			switch {
			case !r.HasData:
			case s == quality.StateGood:
				c.Class = "good"
			case c.Count > 0:
				c.Class = "bad"
			default:
				c.Class = ""
			}
			row.Cells[i] = c
		}
		rows = append(rows, row)
	}
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	regions := make([]string, 0, quality.NumRegions)
	for _, r := range quality.Regions {
		regions = append(regions, r.Label())
	}
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Regions []string
		Rows    []overviewRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Regions:  regions,
		Rows:     overviewRows(snap),
	}
	indexTmpl.Execute(w, data)
}
