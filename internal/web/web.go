package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"rareopen/internal/config"
	"rareopen/internal/dataset"
	appLog "rareopen/internal/log"
	"rareopen/internal/match"
	"rareopen/internal/model"
	"rareopen/internal/rank"
)

// openingLength is the calendar length given to an exported opening.
const openingLength = 30 * time.Minute

// Loader produces a fresh data snapshot.
type Loader func(ctx context.Context) (*dataset.Snapshot, error)

// Server exposes the ranking over HTTP. It holds the current snapshot and
// swaps it on Reload; handlers only ever read a snapshot.
type Server struct {
	cfg    *config.Config
	ranker *rank.Ranker
	loader Loader
	mux    *http.ServeMux

	now func() time.Time

	mu   sync.RWMutex
	snap *dataset.Snapshot
}

// NewServer constructs a new Server. now supplies the default reference
// time for ranking; nil uses time.Now. Call Reload before serving.
func NewServer(cfg *config.Config, ranker *rank.Ranker, loader Loader, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		ranker: ranker,
		loader: loader,
		mux:    http.NewServeMux(),
		now:    now,
	}
	s.registerRoutes()
	return s
}

// Reload loads a new snapshot. On failure the previous one stays in place.
func (s *Server) Reload(ctx context.Context) error {
	snap, err := s.loader(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

func (s *Server) snapshot() *dataset.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Handler returns the root handler, with Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="rareopen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves until ctx is canceled, then shuts down gracefully.
func StartServer(ctx context.Context, s *Server, listen string) error {
	hs := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/next", s.handleNext)
	s.mux.HandleFunc("/api/next.ics", s.handleNextICS)
	s.mux.HandleFunc("/api/match", s.handleMatch)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// openingDTO is the JSON view of a ranked opening.
type openingDTO struct {
	Name            string    `json:"name"`
	Stand           string    `json:"stand"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	At              time.Time `json:"at"`
	House           *string   `json:"house"`
	GlassPrice      *float64  `json:"glass_price"`
	PreferenceScore int       `json:"preference_score"`
}

type nextResponse struct {
	Now      time.Time    `json:"now"`
	LoadedAt time.Time    `json:"loaded_at"`
	Openings []openingDTO `json:"openings"`
}

// handleNext ranks upcoming openings.
//
// GET  /api/next?house=Krug&size=magnum&older_than=2010&exclude=...&now=RFC3339
// POST /api/next with a JSON preferences body (same fields as the config file)
//
// Request preferences overlay the configured ones for this request only.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	openings, now, snap, ok := s.rankRequest(w, r)
	if !ok {
		return
	}

	dtos := make([]openingDTO, 0, len(openings))
	for _, o := range openings {
		dtos = append(dtos, openingDTO{
			Name:            o.Name,
			Stand:           o.Stand,
			Date:            o.Date,
			Time:            o.Time,
			At:              o.At,
			House:           o.House,
			GlassPrice:      o.GlassPrice,
			PreferenceScore: o.PreferenceScore,
		})
	}
	writeJSON(w, http.StatusOK, nextResponse{Now: now, LoadedAt: snap.LoadedAt, Openings: dtos})
}

// handleNextICS returns the same ranking as a subscribable calendar.
func (s *Server) handleNextICS(w http.ResponseWriter, r *http.Request) {
	openings, now, _, ok := s.rankRequest(w, r)
	if !ok {
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//rareopen//Rare openings//EN")
	for _, o := range openings {
		ev := cal.AddEvent(openingUID(o))
		ev.SetDtStampTime(now)
		ev.SetStartAt(o.At)
		ev.SetEndAt(o.At.Add(openingLength))
		ev.SetSummary(o.Name)
		ev.SetLocation(o.Stand)
		ev.SetDescription(describe(o))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, cal.Serialize())
}

// openingUID is stable across requests so calendar clients update in place.
func openingUID(o model.ScoredOpening) string {
	key := o.Name + "|" + o.At.UTC().Format(time.RFC3339) + "|" + o.Stand
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@rareopen"
}

func describe(o model.ScoredOpening) string {
	price := "N/A"
	if o.GlassPrice != nil {
		price = strconv.FormatFloat(*o.GlassPrice, 'f', 2, 64) + " EUR"
	}
	return fmt.Sprintf("Glass price: %s. Preference score: %d.", price, o.PreferenceScore)
}

func (s *Server) rankRequest(w http.ResponseWriter, r *http.Request) ([]model.ScoredOpening, time.Time, *dataset.Snapshot, bool) {
	var dyn *model.Preferences
	switch r.Method {
	case http.MethodGet:
		p, err := preferencesFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, time.Time{}, nil, false
		}
		dyn = p
	case http.MethodPost:
		var p model.Preferences
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid preferences body")
			return nil, time.Time{}, nil, false
		}
		dyn = &p
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, time.Time{}, nil, false
	}

	now := s.now()
	if v := r.URL.Query().Get("now"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "now must be RFC3339")
			return nil, time.Time{}, nil, false
		}
		now = t
	}

	snap := s.snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "data not loaded")
		return nil, time.Time{}, nil, false
	}

	openings := s.ranker.Rank(snap.Input(s.cfg.Preferences), now, dyn)
	appLog.Info("api next request", "method", r.Method, "now", now.Format(time.RFC3339), "results", len(openings))
	return openings, now, snap, true
}

// preferencesFromQuery builds an overlay from query parameters. It returns
// nil when no preference parameter is present.
func preferencesFromQuery(r *http.Request) (*model.Preferences, error) {
	q := r.URL.Query()
	var p model.Preferences
	set := false

	if vals, ok := q["house"]; ok {
		p.Houses = splitList(vals)
		set = true
	}
	if vals, ok := q["size"]; ok {
		p.Sizes = splitList(vals)
		set = true
	}
	if v := q.Get("older_than"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("older_than must be a year")
		}
		p.OlderThanYear = &y
		set = true
	}
	if vals, ok := q["exclude"]; ok {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				p.ExcludedWines = append(p.ExcludedWines, v)
			}
		}
		set = true
	}

	if !set {
		return nil, nil
	}
	return &p, nil
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type matchResponse struct {
	Name    string           `json:"name"`
	Matched bool             `json:"matched"`
	Match   match.PriceMatch `json:"match"`
}

// handleMatch explains how a schedule name resolves against the price list.
//
// GET /api/match?name=Krug+Vintage+2008+Magnum
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	snap := s.snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "data not loaded")
		return
	}

	pm, ok := s.ranker.Matcher.Match(name, snap.Catalog, match.NewHouseIndex(snap.Houses))
	writeJSON(w, http.StatusOK, matchResponse{Name: name, Matched: ok, Match: pm})
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
