package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sweeney/rpc-quality-client/internal/quality"
	"github.com/sweeney/rpc-quality-client/internal/status"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// stateColors follow the usual DQM palette: green for good, greys for
// power-off, warm colours for noise and red shades for dead chambers.
var stateColors = [quality.NumStates]string{
	"#2ca02c", "#7f7f7f", "#ffbb33", "#ff7f0e", "#d62728", "#8c1c13", "#9467bd",
}

// overviewChart builds a stacked bar per region of the latest overview
// fractions, one series per state.
func overviewChart(snap status.Snapshot) *charts.Bar {
	subtitle := "no fill yet"
	if rep := snap.LastReport; rep != nil {
		subtitle = fmt.Sprintf("checkpoint=%d events=%d %s", rep.Checkpoint, rep.Events, rep.Time.UTC().Format(time.RFC3339))
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "RPC Chamber Quality", Width: "900px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "RPC System Quality Overview", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "fraction", Min: 0, Max: 1}),
	)

	labels := make([]string, 0, quality.NumRegions)
	for _, r := range quality.Regions {
		labels = append(labels, r.Label())
	}
	bar.SetXAxis(labels)

	for i, s := range quality.States {
		data := make([]opts.BarData, 0, quality.NumRegions)
		for _, r := range quality.Regions {
			v := 0.0
			if snap.LastReport != nil {
				v = snap.LastReport.Fraction(r, s)
			}
			data = append(data, opts.BarData{Value: v})
		}
		bar.AddSeries(s.Label(), data,
			charts.WithBarChartOpts(opts.BarChart{Stack: "overview"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: stateColors[i]}),
		)
	}
	return bar
}

func (s *Server) handleOverviewChart(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(overviewChart(snap))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
