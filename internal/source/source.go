// Package source loads the upstream input histograms (HV/LV status, dead
// channel fractions, cluster size, noisy strips, multiplicity, asymmetry
// and the processed-events counter) into the monitor element store.
// The file implementation reads dumps written by the upstream producers.
// The fake implementation allows testing without producers.
package source

import (
	"errors"
	"fmt"
	"path"

	"github.com/sweeney/rpc-quality-client/internal/dqm"
)

// Store is the part of the monitor element store a reader writes into.
type Store interface {
	SetCurrentFolder(folder string)
	Book1D(name string, nbins int, low, high float64) (*dqm.MonitorElement, error)
	Book2D(name string, nx int, xlow, xhigh float64, ny int, ylow, yhigh float64) (*dqm.MonitorElement, error)
	Get(fullName string) *dqm.MonitorElement
}

// Reader loads the latest upstream histograms.
type Reader interface {
	// Load writes the current input histograms into store, booking any that
	// are not booked yet.
	Load(store Store) error

	// Close releases reader resources.
	Close() error
}

// Dump is the on-disk document written by upstream producers.
type Dump struct {
	Histograms []Histogram `json:"histograms"`
}

// Histogram is one input histogram. NY == 0 means 1-D.
type Histogram struct {
	Name  string  `json:"name"`
	NX    int     `json:"nx"`
	XLow  float64 `json:"xlow"`
	XHigh float64 `json:"xhigh"`
	NY    int     `json:"ny,omitempty"`
	YLow  float64 `json:"ylow,omitempty"`
	YHigh float64 `json:"yhigh,omitempty"`
	Bins  []Bin   `json:"bins"`
}

// Bin is one non-empty bin.
type Bin struct {
	X     int     `json:"x"`
	Y     int     `json:"y,omitempty"`
	Value float64 `json:"value"`
}

// ErrShapeMismatch is returned when a histogram does not match the binning
// of the element already booked under its name.
var ErrShapeMismatch = errors.New("source: histogram shape differs from booked element")

// Apply writes h into store. Existing elements are reset and overwritten so
// the store always reflects the latest producer output.
func Apply(store Store, h Histogram) error {
	me := store.Get(h.Name)
	if me == nil {
		dir, base := path.Split(h.Name)
		store.SetCurrentFolder(dir)
		var err error
		if h.NY == 0 {
			me, err = store.Book1D(base, h.NX, h.XLow, h.XHigh)
		} else {
			me, err = store.Book2D(base, h.NX, h.XLow, h.XHigh, h.NY, h.YLow, h.YHigh)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", h.Name, err)
		}
	}
	if !sameShape(me, h) {
		return fmt.Errorf("apply %s: %w (booked %dx%d, got %dx%d)",
			h.Name, ErrShapeMismatch, me.NBinsX(), me.NBinsY(), h.NX, h.NY)
	}
	me.Reset()
	for _, b := range h.Bins {
		if h.NY == 0 {
			me.SetBinContent(b.X, b.Value)
		} else {
			me.SetBinContent2D(b.X, b.Y, b.Value)
		}
	}
	return nil
}

func sameShape(me *dqm.MonitorElement, h Histogram) bool {
	kind := dqm.Kind2D
	if h.NY == 0 {
		kind = dqm.Kind1D
	}
	return me.Kind() == kind && me.NBinsX() == h.NX && me.NBinsY() == h.NY
}

// ApplyDump applies every histogram of d, returning the first error after
// attempting all of them.
func ApplyDump(store Store, d Dump) error {
	var first error
	for _, h := range d.Histograms {
		if err := Apply(store, h); err != nil && first == nil {
			first = err
		}
	}
	return first
}
