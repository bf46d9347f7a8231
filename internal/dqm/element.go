package dqm

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Kind is the dimensionality of a monitor element.
type Kind int

const (
	Kind1D Kind = 1
	Kind2D Kind = 2
)

// Axis selectors for SetBinLabel.
const (
	AxisX = 1
	AxisY = 2
)

// axis is a fixed-width binning with optional labels. Bin 0 is the
// underflow and bin N+1 the overflow.
type axis struct {
	n         int
	low, high float64
	labels    []string
}

func newAxis(n int, low, high float64) axis {
	return axis{n: n, low: low, high: high, labels: make([]string, n)}
}

// find returns the bin containing v. NaN goes to the overflow.
func (a axis) find(v float64) int {
	switch {
	case math.IsNaN(v):
		return a.n + 1
	case v < a.low:
		return 0
	case v >= a.high:
		return a.n + 1
	}
	b := 1 + int(float64(a.n)*(v-a.low)/(a.high-a.low))
	if b > a.n {
		b = a.n
	}
	return b
}

// MonitorElement is a booked 1-D or 2-D histogram. All methods are safe
// for concurrent use.
type MonitorElement struct {
	mu       sync.RWMutex
	name     string
	kind     Kind
	x, y     axis
	contents []float64
	entries  float64
}

func newElement(name string, kind Kind, x, y axis) *MonitorElement {
	return &MonitorElement{
		name:     name,
		kind:     kind,
		x:        x,
		y:        y,
		contents: make([]float64, (x.n+2)*(y.n+2)),
	}
}

// Name returns the fully qualified name (folder + "/" + booking name).
func (m *MonitorElement) Name() string { return m.name }

// Kind returns the element dimensionality.
func (m *MonitorElement) Kind() Kind { return m.kind }

// NBinsX returns the number of in-range x bins.
func (m *MonitorElement) NBinsX() int { return m.x.n }

// NBinsY returns the number of in-range y bins (0 for 1-D elements).
func (m *MonitorElement) NBinsY() int {
	if m.kind == Kind1D {
		return 0
	}
	return m.y.n
}

func (m *MonitorElement) index(x, y int) (int, bool) {
	if x < 0 || x > m.x.n+1 || y < 0 || y > m.y.n+1 {
		return 0, false
	}
	return y*(m.x.n+2) + x, true
}

// SetBinLabel labels bin on the given axis (AxisX or AxisY). Out of range
// bins are ignored.
func (m *MonitorElement) SetBinLabel(bin int, label string, ax int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &m.x
	if ax == AxisY {
		if m.kind == Kind1D {
			return
		}
		a = &m.y
	}
	if bin < 1 || bin > a.n {
		return
	}
	a.labels[bin-1] = label
}

// BinLabel returns the label of bin on the given axis.
func (m *MonitorElement) BinLabel(bin int, ax int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.x
	if ax == AxisY {
		a = m.y
	}
	if bin < 1 || bin > a.n {
		return ""
	}
	return a.labels[bin-1]
}

// BinContent returns the content of bin x of a 1-D element.
// Out of range bins read as zero.
func (m *MonitorElement) BinContent(x int) float64 {
	return m.BinContent2D(x, 0)
}

// BinContent2D returns the content of bin (x, y) of a 2-D element.
// Out of range bins read as zero.
func (m *MonitorElement) BinContent2D(x, y int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index(x, y)
	if !ok {
		return 0
	}
	return m.contents[i]
}

// SetBinContent overwrites bin x of a 1-D element.
func (m *MonitorElement) SetBinContent(x int, v float64) {
	m.SetBinContent2D(x, 0, v)
}

// SetBinContent2D overwrites bin (x, y) of a 2-D element. Only Fill
// counts towards Entries.
func (m *MonitorElement) SetBinContent2D(x, y int, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index(x, y)
	if !ok {
		return
	}
	m.contents[i] = v
}

// Fill increments the bin containing v by one.
func (m *MonitorElement) Fill(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index(m.x.find(v), 0)
	if !ok {
		return
	}
	m.contents[i]++
	m.entries++
}

// Fill2D increments the bin containing (x, y) by one.
func (m *MonitorElement) Fill2D(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index(m.x.find(x), m.y.find(y))
	if !ok {
		return
	}
	m.contents[i]++
	m.entries++
}

// Entries returns the number of fills since the last reset.
func (m *MonitorElement) Entries() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries
}

// Integral returns the sum of all in-range bins.
func (m *MonitorElement) Integral() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return floats.Sum(m.inRange())
}

func (m *MonitorElement) inRange() []float64 {
	var out []float64
	if m.kind == Kind1D {
		return append(out, m.contents[1:m.x.n+1]...)
	}
	for y := 1; y <= m.y.n; y++ {
		row := y * (m.x.n + 2)
		out = append(out, m.contents[row+1:row+m.x.n+1]...)
	}
	return out
}

// Reset zeroes every bin and the entry count. Labels are kept.
func (m *MonitorElement) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.contents {
		m.contents[i] = 0
	}
	m.entries = 0
}

// Snapshot returns an immutable copy of the element.
func (m *MonitorElement) Snapshot() ElementSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := ElementSnapshot{
		Name:    m.name,
		Kind:    m.kind,
		NX:      m.x.n,
		XLow:    m.x.low,
		XHigh:   m.x.high,
		XLabels: append([]string(nil), m.x.labels...),
		Entries: m.entries,
	}
	if m.kind == Kind2D {
		s.NY = m.y.n
		s.YLow, s.YHigh = m.y.low, m.y.high
		s.YLabels = append([]string(nil), m.y.labels...)
	}
	s.Contents = m.inRange()
	return s
}

// ElementSnapshot is a point-in-time copy of a monitor element.
// Contents holds the in-range bins, x fastest.
type ElementSnapshot struct {
	Name             string
	Kind             Kind
	NX, NY           int
	XLow, XHigh      float64
	YLow, YHigh      float64
	XLabels, YLabels []string
	Contents         []float64
	Entries          float64
}

// At returns the content of in-range bin (x, y); y is ignored for 1-D.
func (s ElementSnapshot) At(x, y int) float64 {
	if s.Kind == Kind1D {
		if x < 1 || x > s.NX {
			return 0
		}
		return s.Contents[x-1]
	}
	if x < 1 || x > s.NX || y < 1 || y > s.NY {
		return 0
	}
	return s.Contents[(y-1)*s.NX+x-1]
}
