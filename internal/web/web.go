package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"mobcal/internal/config"
	"mobcal/internal/ics"
	appLog "mobcal/internal/log"
	"mobcal/internal/model"
	"mobcal/internal/refresh"
)

// Snapshots is what the server needs from the refresher.
type Snapshots interface {
	Latest() *refresh.Snapshot
	Refresh(ctx context.Context) (*refresh.Snapshot, error)
}

// Server exposes the latest catalogue evaluation over HTTP.
type Server struct {
	cfg   *config.Config
	snaps Snapshots
	mux   *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, snaps Snapshots) *Server {
	s := &Server{
		cfg:   cfg,
		snaps: snaps,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="mobcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// EventsResponse is the JSON shape of /api/events and of `mobcal -once`.
type EventsResponse struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Window      windowDTO          `json:"window"`
	Events      []EventDTO         `json:"events"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

type windowDTO struct {
	Lower time.Time `json:"lower"`
	Upper time.Time `json:"upper"`
}

// EventDTO is the outbound occurrence record.
type EventDTO struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	BackgroundColor string    `json:"backgroundColor"`
	TextColor       string    `json:"textColor"`
}

// EventsQuery narrows an events response. Zero values select everything.
type EventsQuery struct {
	// Activity keeps only one activity's events and diagnostics.
	Activity string
	// From and To keep events overlapping [From, To); either may be zero.
	From, To time.Time
}

// NewEventsResponse converts a snapshot into its JSON form.
func NewEventsResponse(snap *refresh.Snapshot, q EventsQuery) EventsResponse {
	occurrences := snap.Result.Occurrences
	if !q.From.IsZero() || !q.To.IsZero() {
		from, to := q.From, q.To
		if from.IsZero() {
			from = snap.Window.Lower()
		}
		if to.IsZero() {
			// Window bounds are inclusive; nudge so an event starting on the
			// upper bound still overlaps.
			to = snap.Window.Upper().Add(time.Second)
		}
		occurrences = snap.During(from, to)
	}

	resp := EventsResponse{
		GeneratedAt: snap.GeneratedAt,
		Window:      windowDTO{Lower: snap.Window.Lower().UTC(), Upper: snap.Window.Upper().UTC()},
		Events:      make([]EventDTO, 0, len(occurrences)),
		Diagnostics: make([]model.Diagnostic, 0, len(snap.Result.Diagnostics)),
	}
	for _, occ := range occurrences {
		if q.Activity != "" && occ.ActivityID != q.Activity {
			continue
		}
		resp.Events = append(resp.Events, EventDTO{
			Start:           occ.Start,
			End:             occ.End,
			Title:           occ.Title,
			URL:             occ.URL,
			BackgroundColor: occ.BackgroundColor,
			TextColor:       occ.TextColor,
		})
	}
	for _, d := range snap.Result.Diagnostics {
		if q.Activity != "" && d.ActivityID != q.Activity {
			continue
		}
		resp.Diagnostics = append(resp.Diagnostics, d)
	}
	return resp
}

// handleEvents returns the latest evaluation.
//
// GET /api/events?activity=standup&from=2024-03-08T00:00:00Z&to=2024-03-09T00:00:00Z
//   - activity: optional activity ID filter
//   - from, to: optional RFC 3339 range; events overlapping [from, to)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eq := EventsQuery{Activity: q.Get("activity")}
	var err error
	if eq.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	if eq.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}
	if !eq.From.IsZero() && !eq.To.IsZero() && !eq.From.Before(eq.To) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	snap := s.snaps.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "catalogue not evaluated yet")
		return
	}
	writeJSON(w, http.StatusOK, NewEventsResponse(snap, eq))
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

// handleRefresh forces a catalogue reload and re-evaluation.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snaps.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to refresh catalogue")
		return
	}
	writeJSON(w, http.StatusOK, NewEventsResponse(snap, EventsQuery{}))
}

// handleCalendar serves the latest evaluation as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	snap := s.snaps.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "catalogue not evaluated yet")
		return
	}
	name := ""
	if s.cfg != nil {
		name = s.cfg.CalendarName
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Encode(name, snap.Result.Occurrences, snap.GeneratedAt)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
