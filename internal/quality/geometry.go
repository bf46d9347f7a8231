package quality

import (
	"fmt"
	"strconv"
)

// Unit is a structural unit: a barrel wheel or an endcap disk.
type Unit struct {
	Barrel bool
	Index  int // wheel -2..2, or signed disk number
}

// Wheel returns the barrel unit for wheel w.
func Wheel(w int) Unit { return Unit{Barrel: true, Index: w} }

// Disk returns the endcap unit for disk d.
func Disk(d int) Unit { return Unit{Index: d} }

// MinWheel and MaxWheel bound the barrel wheels.
const (
	MinWheel = -2
	MaxWheel = 2
)

// Barrel and endcap map dimensions.
const (
	BarrelSectors  = 12
	BarrelRolls    = 21
	EndcapSegments = 36
	EndcapRolls    = 6
)

// String returns "Wheel{w}" or "Disk{d}".
func (u Unit) String() string {
	if u.Barrel {
		return fmt.Sprintf("Wheel%d", u.Index)
	}
	return fmt.Sprintf("Disk%d", u.Index)
}

// SummaryRegion returns the region whose summary distribution collects this
// unit's verdicts.
func (u Unit) SummaryRegion() Region {
	switch {
	case u.Barrel:
		return RegionBarrel
	case u.Index < 0:
		return RegionEndcapNegative
	default:
		return RegionEndcapPositive
	}
}

// Units enumerates the structural units in sweep order: wheels -2..2, then
// disks -numberOfDisks..numberOfDisks skipping 0.
func Units(numberOfDisks int) []Unit {
	units := make([]Unit, 0, MaxWheel-MinWheel+1+2*max(numberOfDisks, 0))
	for w := MinWheel; w <= MaxWheel; w++ {
		units = append(units, Wheel(w))
	}
	for d := -numberOfDisks; d <= numberOfDisks; d++ {
		if d == 0 {
			continue
		}
		units = append(units, Disk(d))
	}
	return units
}

// XBins returns the number of valid x bins of the unit's map.
func (u Unit) XBins() int {
	if u.Barrel {
		return BarrelSectors
	}
	return EndcapSegments
}

// YBins returns the number of valid y bins in column x. Barrel sectors have
// a different number of rolls: sector 4 has 21, sectors 9 and 11 have 15.
func (u Unit) YBins(x int) int {
	if !u.Barrel {
		return EndcapRolls
	}
	switch x {
	case 4:
		return 21
	case 9, 11:
		return 15
	default:
		return 17
	}
}

// Valid reports whether (x, y) addresses a real detector unit.
func (u Unit) Valid(x, y int) bool {
	if x < 1 || x > u.XBins() {
		return false
	}
	return y >= 1 && y <= u.YBins(x)
}

// Coordinates returns every valid (x, y) of the unit in sweep order
// (x outer, y inner).
func (u Unit) Coordinates() [][2]int {
	var out [][2]int
	for x := 1; x <= u.XBins(); x++ {
		for y := 1; y <= u.YBins(x); y++ {
			out = append(out, [2]int{x, y})
		}
	}
	return out
}

// MapLayout describes how a unit's 2-D map is booked.
type MapLayout struct {
	NX, NY           int
	XLow, XHigh      float64
	YLow, YHigh      float64
	XLabels, YLabels []string
}

var barrelRollNames = []string{
	"RB1in_B", "RB1in_F", "RB1out_B", "RB1out_F",
	"RB2in_B", "RB2in_F", "RB2in_M", "RB2out_B", "RB2out_F",
	"RB3-_B", "RB3-_F", "RB3+_B", "RB3+_F",
	"RB4-_B", "RB4-_F", "RB4+_B", "RB4+_F",
	"RB4--_B", "RB4--_F", "RB4++_B", "RB4++_F",
}

var endcapRollNames = []string{"R2_A", "R2_B", "R2_C", "R3_A", "R3_B", "R3_C"}

// Layout returns the map layout of the unit. With useRollInfo the y axis is
// labelled by roll name, otherwise by roll number.
func (u Unit) Layout(useRollInfo bool) MapLayout {
	var l MapLayout
	var rollNames []string
	if u.Barrel {
		l.NX, l.NY = BarrelSectors, BarrelRolls
		rollNames = barrelRollNames
		for i := 1; i <= l.NX; i++ {
			l.XLabels = append(l.XLabels, fmt.Sprintf("Sec%d", i))
		}
	} else {
		l.NX, l.NY = EndcapSegments, EndcapRolls
		rollNames = endcapRollNames
		for i := 1; i <= l.NX; i++ {
			l.XLabels = append(l.XLabels, strconv.Itoa(i))
		}
	}
	l.XLow, l.XHigh = 0.5, float64(l.NX)+0.5
	l.YLow, l.YHigh = 0.5, float64(l.NY)+0.5
	for i := 1; i <= l.NY; i++ {
		if useRollInfo {
			l.YLabels = append(l.YLabels, rollNames[i-1])
		} else {
			l.YLabels = append(l.YLabels, strconv.Itoa(i))
		}
	}
	return l
}
