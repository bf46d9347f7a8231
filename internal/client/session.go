// Package client implements the RPC chamber quality monitoring session.
// The session books its output histograms once, then on selected
// checkpoints classifies every detector unit from the upstream input maps
// and summarises the verdicts per unit, per region and globally.
package client

import (
	"log"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/rpc-quality-client/internal/dqm"
	"github.com/sweeney/rpc-quality-client/internal/quality"
)

// Logf is the package diagnostic logger. Tests may replace it.
var Logf = log.Printf

// Store is the subset of the monitor element store used by the session.
type Store interface {
	SetCurrentFolder(folder string)
	Book1D(name string, nbins int, low, high float64) (*dqm.MonitorElement, error)
	Book2D(name string, nx int, xlow, xhigh float64, ny int, ylow, yhigh float64) (*dqm.MonitorElement, error)
	Get(fullName string) *dqm.MonitorElement
}

// Session is one monitoring session. It is created at begin of session and
// dropped after OnSessionEnd. Checkpoints must be invoked serially.
type Session struct {
	cfg    Config
	naming quality.Naming
	store  Store
	now    func() time.Time
	id     string

	booked  bool
	counter int
	fills   int
}

// OnBeginSession creates a session. now is injectable for tests; nil uses
// time.Now.
func OnBeginSession(cfg Config, store Store, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		cfg:    cfg,
		naming: cfg.Naming(),
		store:  store,
		now:    now,
		id:     uuid.NewString(),
	}
	Logf("client: begin session %s (offline=%v prescale=%d min_events=%d disks=%d)",
		s.id, cfg.OfflineDQM, cfg.prescale(), cfg.MinimumRPCEvents, cfg.NumberOfEndcapDisks)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Booked reports whether the output histograms have been booked.
func (s *Session) Booked() bool { return s.booked }

// Counter returns the number of period boundaries seen so far.
func (s *Session) Counter() int { return s.counter }

// Fills returns the number of completed fill passes.
func (s *Session) Fills() int { return s.fills }

// Config returns the session parameter set.
func (s *Session) Config() Config { return s.cfg }

// OnPeriodBoundary is invoked at the end of every monitoring period
// (luminosity block). In online mode the first boundary books the
// histograms, and every prescale-th boundary, starting with the first,
// runs a fill pass.
func (s *Session) OnPeriodBoundary() (*Report, SkipReason) {
	defer func() { s.counter++ }()

	if !s.cfg.EnableRPCDqmClient {
		return nil, SkipDisabled
	}
	if s.cfg.OfflineDQM {
		return nil, SkipOffline
	}
	if !s.booked {
		s.book()
	}
	if s.counter%s.cfg.prescale() != 0 {
		return nil, SkipPrescale
	}
	return s.fill(false)
}

// OnSessionEnd runs the final fill pass, booking first if no boundary has
// booked yet.
func (s *Session) OnSessionEnd() (*Report, SkipReason) {
	Logf("client: end session %s after %d periods, %d fills", s.id, s.counter, s.fills)
	if !s.cfg.EnableRPCDqmClient {
		return nil, SkipDisabled
	}
	if !s.booked {
		s.book()
	}
	return s.fill(true)
}

func (s *Session) book() {
	s.booked = true
	s.store.SetCurrentFolder(s.naming.SummaryDir())

	for _, r := range quality.Regions {
		s.bookDistribution(quality.RegionSummaryName(r))
	}

	if ov, err := s.store.Book2D(quality.OverviewName, quality.NumStates, 0.5, quality.NumStates+0.5, quality.NumRegions, 0.5, quality.NumRegions+0.5); err != nil {
		Logf("client: %v", err)
	} else {
		for _, r := range quality.Regions {
			ov.SetBinLabel(r.Row(), r.Label(), dqm.AxisY)
		}
		labelStates(ov)
	}

	for _, u := range quality.Units(s.cfg.NumberOfEndcapDisks) {
		l := u.Layout(s.cfg.UseRollInfo)
		if me, err := s.store.Book2D(quality.MapName(u), l.NX, l.XLow, l.XHigh, l.NY, l.YLow, l.YHigh); err != nil {
			Logf("client: %v", err)
		} else {
			for i, lbl := range l.XLabels {
				me.SetBinLabel(i+1, lbl, dqm.AxisX)
			}
			for i, lbl := range l.YLabels {
				me.SetBinLabel(i+1, lbl, dqm.AxisY)
			}
		}
		s.bookDistribution(quality.DistributionName(u))
	}
	Logf("client: booked quality histograms in %s", s.naming.SummaryDir())
}

func (s *Session) bookDistribution(name string) {
	me, err := s.store.Book1D(name, quality.NumStates, 0.5, quality.NumStates+0.5)
	if err != nil {
		Logf("client: %v", err)
		return
	}
	labelStates(me)
}

func labelStates(me *dqm.MonitorElement) {
	for _, st := range quality.States {
		me.SetBinLabel(st.Bin(), st.Label(), dqm.AxisX)
	}
}

// processedEvents reads the upstream event counter. When it is absent the
// threshold itself is returned so the gate passes.
func (s *Session) processedEvents() int {
	if me := s.store.Get(s.naming.Events()); me != nil {
		return int(me.BinContent(1))
	}
	return s.cfg.MinimumRPCEvents
}

// unitResult is the classification of every valid coordinate of one unit,
// in Coordinates() order.
type unitResult struct {
	unit   quality.Unit
	coords [][2]int
	states []quality.State
}

func (s *Session) fill(final bool) (*Report, SkipReason) {
	start := s.now()
	events := s.processedEvents()
	if events < s.cfg.MinimumRPCEvents {
		Logf("client: %d events below minimum %d, skipping fill", events, s.cfg.MinimumRPCEvents)
		return nil, SkipMinEvents
	}

	var summaries [quality.NumRegions]*dqm.MonitorElement
	for _, r := range quality.Regions {
		summaries[r] = s.store.Get(s.naming.RegionSummary(r))
		if summaries[r] != nil {
			summaries[r].Reset()
		}
	}

	results := s.classifyUnits()

	rep := &Report{
		SessionID:  s.id,
		Time:       start,
		Checkpoint: s.counter,
		Final:      final,
		Events:     events,
	}
	for _, r := range quality.Regions {
		rep.Regions[r].Region = r
	}

	for _, res := range results {
		region := res.unit.SummaryRegion()
		qmap := s.store.Get(s.naming.Map(res.unit))
		dist := s.store.Get(s.naming.Distribution(res.unit))
		if dist != nil {
			dist.Reset()
		}
		summary := summaries[region]

		ur := UnitReport{Unit: res.unit}
		for i, c := range res.coords {
			st := res.states[i]
			if qmap != nil {
				qmap.SetBinContent2D(c[0], c[1], float64(st))
			}
			if dist != nil {
				dist.Fill(float64(st))
			}
			if summary != nil {
				summary.Fill(float64(st))
			}
			ur.Counts.Add(st)
			rep.Regions[region].Counts.Add(st)
			if st != quality.StateGood {
				rep.BadChambers = append(rep.BadChambers, Chamber{Unit: res.unit, X: c[0], Y: c[1], State: st})
			}
		}
		rep.Units = append(rep.Units, ur)
	}

	s.fillOverview(summaries, rep)

	s.fills++
	rep.Elapsed = s.now().Sub(start)
	Logf("client: fill %d at checkpoint %d: %d units classified, %d not good",
		s.fills, s.counter, rep.Total(), len(rep.BadChambers))
	return rep, SkipNone
}

// classifyUnits classifies every unit concurrently. Only reads happen here;
// the histogram writes are done serially by the caller in unit order.
func (s *Session) classifyUnits() []unitResult {
	units := quality.Units(s.cfg.NumberOfEndcapDisks)
	results := make([]unitResult, len(units))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, u := range units {
		g.Go(func() error {
			results[i] = s.classifyUnit(u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Session) classifyUnit(u quality.Unit) unitResult {
	var inputs [quality.NumInputs]*dqm.MonitorElement
	for i, kind := range quality.InputKinds {
		inputs[i] = s.store.Get(s.naming.Input(kind, u))
	}
	read := func(kind quality.InputKind, x, y int, fallback float64) float64 {
		if me := inputs[kind]; me != nil {
			return me.BinContent2D(x, y)
		}
		return fallback
	}

	res := unitResult{unit: u, coords: u.Coordinates()}
	res.states = make([]quality.State, len(res.coords))
	def := quality.DefaultInputs()
	for i, c := range res.coords {
		x, y := c[0], c[1]
		in := quality.Inputs{
			HV:           read(quality.InputHV, x, y, def.HV),
			LV:           read(quality.InputLV, x, y, def.LV),
			Dead:         read(quality.InputDead, x, y, def.Dead),
			FirstBin:     read(quality.InputFirstBin, x, y, def.FirstBin),
			NoisyStrips:  read(quality.InputNoisyStrips, x, y, def.NoisyStrips),
			Multiplicity: read(quality.InputMultiplicity, x, y, def.Multiplicity),
			Asymmetry:    read(quality.InputAsymmetry, x, y, def.Asymmetry),
		}
		res.states[i] = quality.Classify(in)
	}
	return res
}

// fillOverview writes count/entries per (state, region). Regions without
// entries stay at zero, which consumers read as "no data".
func (s *Session) fillOverview(summaries [quality.NumRegions]*dqm.MonitorElement, rep *Report) {
	overview := s.store.Get(s.naming.Overview())
	if overview != nil {
		overview.Reset()
	}

	for _, r := range quality.Regions {
		summary := summaries[r]
		if summary == nil {
			continue
		}
		entries := summary.Entries()
		rep.Regions[r].Entries = entries
		if entries == 0 {
			continue
		}
		rep.Regions[r].HasData = true
		for _, st := range quality.States {
			frac := summary.BinContent(st.Bin()) / entries
			rep.Regions[r].Fractions[st-1] = frac
			if overview != nil {
				overview.SetBinContent2D(st.Bin(), r.Row(), frac)
			}
		}
	}
}
