// Package web serves the charger status over HTTP: an auto-refreshing page
// for people, a JSON document for scripts and a health check for the
// supervisor.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/evse-controller/internal/iec61851"
	"github.com/sweeney/evse-controller/internal/status"
)

const readHeaderTimeout = 5 * time.Second

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", getOnly(s.handleIndex))
	mux.HandleFunc("/index.html", getOnly(s.handleIndex))
	mux.HandleFunc("/index.json", getOnly(s.handleJSON))
	mux.HandleFunc("/healthz", getOnly(s.handleHealth))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// The status is read-only.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleHealth answers 200 while the controller can charge, 503 during the
// startup delay and while a fault holds the charger in EF.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !snap.EVSE.Started:
		http.Error(w, "starting", http.StatusServiceUnavailable)
	case snap.EVSE.ContactorError:
		http.Error(w, "contactor error", http.StatusServiceUnavailable)
	case snap.EVSE.State == iec61851.StateEF:
		http.Error(w, "fault", http.StatusServiceUnavailable)
	default:
		w.Write([]byte("ok\n"))
	}
}
