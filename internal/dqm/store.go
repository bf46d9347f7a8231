// Package dqm provides an in-process monitor element store: named 1-D and
// 2-D histograms booked in folders and retrieved by fully qualified name.
// Booking a name twice in the same store is an error.
package dqm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicateName is returned when a name is booked twice.
var ErrDuplicateName = errors.New("dqm: monitor element already booked")

// ErrBadBinning is returned for non-positive bin counts or empty ranges.
var ErrBadBinning = errors.New("dqm: invalid binning")

// Store holds monitor elements keyed by full name.
type Store struct {
	mu       sync.RWMutex
	folder   string
	elements map[string]*MonitorElement
}

// NewStore creates an empty store with the root folder selected.
func NewStore() *Store {
	return &Store{elements: make(map[string]*MonitorElement)}
}

// SetCurrentFolder selects the folder new elements are booked into.
func (s *Store) SetCurrentFolder(folder string) {
	s.mu.Lock()
	s.folder = strings.Trim(folder, "/")
	s.mu.Unlock()
}

// CurrentFolder returns the selected booking folder.
func (s *Store) CurrentFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder
}

// Book1D books a 1-D element in the current folder.
func (s *Store) Book1D(name string, nbins int, low, high float64) (*MonitorElement, error) {
	if nbins <= 0 || high <= low {
		return nil, fmt.Errorf("book %s: %w", name, ErrBadBinning)
	}
	return s.book(name, Kind1D, newAxis(nbins, low, high), newAxis(0, 0, 0))
}

// Book2D books a 2-D element in the current folder.
func (s *Store) Book2D(name string, nx int, xlow, xhigh float64, ny int, ylow, yhigh float64) (*MonitorElement, error) {
	if nx <= 0 || ny <= 0 || xhigh <= xlow || yhigh <= ylow {
		return nil, fmt.Errorf("book %s: %w", name, ErrBadBinning)
	}
	return s.book(name, Kind2D, newAxis(nx, xlow, xhigh), newAxis(ny, ylow, yhigh))
}

func (s *Store) book(name string, kind Kind, x, y axis) (*MonitorElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := name
	if s.folder != "" {
		full = s.folder + "/" + name
	}
	if _, ok := s.elements[full]; ok {
		return nil, fmt.Errorf("book %s: %w", full, ErrDuplicateName)
	}
	me := newElement(full, kind, x, y)
	s.elements[full] = me
	return me, nil
}

// Get returns the element with the given full name, or nil if absent.
func (s *Store) Get(fullName string) *MonitorElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elements[fullName]
}

// Names returns every booked full name, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.elements))
	for n := range s.elements {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of booked elements.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Snapshot copies every element whose full name starts with prefix.
// An empty prefix copies the whole store.
func (s *Store) Snapshot(prefix string) map[string]ElementSnapshot {
	out := make(map[string]ElementSnapshot)
	for _, n := range s.Names() {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		if me := s.Get(n); me != nil {
			out[n] = me.Snapshot()
		}
	}
	return out
}
