// Package web provides an HTTP status server for the quality client.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/rpc-quality-client/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/overview.html", s.handleOverviewChart)
	mux.HandleFunc("/chambers.json", s.handleChambers)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request multiplexer. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// chamberJSON is one non-Good detector unit of the latest fill.
type chamberJSON struct {
	Unit   string `json:"unit"`
	Region string `json:"region"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	State  string `json:"state"`
	Label  string `json:"label"`
}

type chambersJSON struct {
	Checkpoint int           `json:"checkpoint"`
	Final      bool          `json:"final"`
	Chambers   []chamberJSON `json:"chambers"`
}

// handleChambers lists the non-Good units of the latest fill. The optional
// unit and state query parameters filter by unit name ("Wheel-1") and
// state name ("DEAD").
func (s *Server) handleChambers(w http.ResponseWriter, r *http.Request) {
	rep := s.tracker.Snapshot().LastReport
	if rep == nil {
		http.Error(w, "no fill yet", http.StatusServiceUnavailable)
		return
	}

	unit := r.URL.Query().Get("unit")
	state := r.URL.Query().Get("state")
	out := chambersJSON{
		Checkpoint: rep.Checkpoint,
		Final:      rep.Final,
		Chambers:   make([]chamberJSON, 0, len(rep.BadChambers)),
	}
	for _, c := range rep.BadChambers {
		if unit != "" && c.Unit.String() != unit {
			continue
		}
		if state != "" && c.State.String() != state {
			continue
		}
		out.Chambers = append(out.Chambers, chamberJSON{
			Unit:   c.Unit.String(),
			Region: c.Unit.SummaryRegion().String(),
			X:      c.X,
			Y:      c.Y,
			State:  c.State.String(),
			Label:  c.State.Label(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
