// Package quality contains the pure chamber quality logic: the state space,
// detector geometry, histogram naming and the classification rules.
// This package has NO external dependencies (no metric store, MQTT, OS or time).
package quality

import "fmt"

// State is the quality verdict for one detector unit. The numeric value is
// the ordinal written into quality maps and filled into distributions.
type State int

const (
	StateGood          State = 1
	StateOff           State = 2
	StateNoisyStrip    State = 3
	StateNoisyChamber  State = 4
	StatePartiallyDead State = 5
	StateDead          State = 6
	StateBadShape      State = 7
)

// NumStates is the number of bins in every state distribution.
const NumStates = 7

// States lists every state in ordinal order.
var States = [NumStates]State{
	StateGood,
	StateOff,
	StateNoisyStrip,
	StateNoisyChamber,
	StatePartiallyDead,
	StateDead,
	StateBadShape,
}

var stateLabels = [NumStates]string{"Good", "OFF", "Nois.St", "Nois.Ch", "Part.Dead", "Dead", "Bad.Shape"}

var stateNames = [NumStates]string{"GOOD", "OFF", "NOISY_STRIP", "NOISY_CHAMBER", "PARTIALLY_DEAD", "DEAD", "BAD_SHAPE"}

// Valid reports whether s is one of the seven known states.
func (s State) Valid() bool {
	return s >= StateGood && s <= StateBadShape
}

// Bin returns the 1-based distribution bin for the state.
func (s State) Bin() int {
	return int(s)
}

// Label returns the axis label used in booked distributions.
func (s State) Label() string {
	if !s.Valid() {
		return ""
	}
	return stateLabels[s-1]
}

// String returns a stable upper-case name, used in payloads and logs.
func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("STATE(%d)", int(s))
	}
	return stateNames[s-1]
}

// Region is one of the three detector regions.
type Region int

const (
	RegionEndcapNegative Region = 0
	RegionBarrel         Region = 1
	RegionEndcapPositive Region = 2
)

// NumRegions is the number of detector regions.
const NumRegions = 3

// Regions lists the regions in overview row order.
var Regions = [NumRegions]Region{RegionEndcapNegative, RegionBarrel, RegionEndcapPositive}

var regionNames = [NumRegions]string{"EndcapNegative", "Barrel", "EndcapPositive"}

var regionLabels = [NumRegions]string{"E-", "B", "E+"}

// String returns the region name used in histogram names.
func (r Region) String() string {
	if r < 0 || int(r) >= NumRegions {
		return fmt.Sprintf("Region(%d)", int(r))
	}
	return regionNames[r]
}

// Label returns the short overview axis label ("E-", "B", "E+").
func (r Region) Label() string {
	if r < 0 || int(r) >= NumRegions {
		return ""
	}
	return regionLabels[r]
}

// Row returns the 1-based overview y bin for the region.
func (r Region) Row() int {
	return int(r) + 1
}

// Inputs holds the seven monitored quantities for one detector unit.
type Inputs struct {
	HV           float64 // HV status, 1 = nominal
	LV           float64 // LV status, 1 = nominal
	Dead         float64 // dead channel fraction
	FirstBin     float64 // fraction of clusters with size 1
	NoisyStrips  float64 // number of noisy strips
	Multiplicity float64 // mean digi multiplicity
	Asymmetry    float64 // left-right asymmetry
}

// DefaultInputs returns the neutral inputs used when an input map is absent.
func DefaultInputs() Inputs {
	return Inputs{HV: 1, LV: 1}
}

// StateCounts holds one count per state, indexed by State.Bin()-1.
type StateCounts [NumStates]int

// Add increments the count for s. Unknown states are ignored.
func (c *StateCounts) Add(s State) {
	if s.Valid() {
		c[s-1]++
	}
}

// Of returns the count for s.
func (c StateCounts) Of(s State) int {
	if !s.Valid() {
		return 0
	}
	return c[s-1]
}

// Total returns the sum of all counts.
func (c StateCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
