package client

import (
	"time"

	"github.com/sweeney/rpc-quality-client/internal/quality"
)

// SkipReason explains why a checkpoint did not produce a fill.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipDisabled  SkipReason = "disabled"
	SkipOffline   SkipReason = "offline"
	SkipPrescale  SkipReason = "prescale"
	SkipMinEvents SkipReason = "min_events"
)

// Report summarises one fill pass.
type Report struct {
	SessionID  string
	Time       time.Time
	Elapsed    time.Duration
	Checkpoint int  // period counter at the time of the fill
	Final      bool // produced at session end
	Events     int  // processed events read from the event counter

	Regions     [quality.NumRegions]RegionReport
	Units       []UnitReport
	BadChambers []Chamber
}

// RegionReport is the per-region summary, as written into the overview.
type RegionReport struct {
	Region    quality.Region
	Counts    quality.StateCounts
	Entries   float64
	HasData   bool
	Fractions [quality.NumStates]float64
}

// UnitReport holds the state counts of one wheel or disk.
type UnitReport struct {
	Unit   quality.Unit
	Counts quality.StateCounts
}

// Chamber is a detector unit whose verdict is not Good.
type Chamber struct {
	Unit  quality.Unit
	X, Y  int
	State quality.State
}

// Total returns the number of classified detector units.
func (r *Report) Total() int {
	n := 0
	for _, reg := range r.Regions {
		n += reg.Counts.Total()
	}
	return n
}

// Fraction returns the overview fraction of state s in region reg.
func (r *Report) Fraction(reg quality.Region, s quality.State) float64 {
	if !s.Valid() {
		return 0
	}
	return r.Regions[reg].Fractions[s-1]
}
