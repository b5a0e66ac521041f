// Package api serves the read-only query API over the tender store plus the
// manual scan trigger.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/export"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/metrics"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/usecase"
)

// Submitter starts a batch asynchronously.
type Submitter interface {
	Submit(ids []string) usecase.Ack
}

// Deps wires the server.
type Deps struct {
	Reader         ports.TenderReader
	Portals        *portal.Registry
	Trigger        Submitter
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	reader  ports.TenderReader
	portals *portal.Registry
	trigger Submitter
	origins []string
	now     func() time.Time
	log     *zap.Logger
}

// NewServer builds the handlers.
func NewServer(deps Deps) *Server {
	s := &Server{
		reader:  deps.Reader,
		portals: deps.Portals,
		trigger: deps.Trigger,
		origins: deps.AllowedOrigins,
		now:     deps.Clock,
		log:     deps.Logger,
	}
	if s.portals == nil {
		s.portals = portal.Default()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.log == nil {
		s.log = zap.L()
	}
	s.log = s.log.With(zap.String("component", "api"))
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tenders", s.listTenders)
		r.Get("/tender/{id}", s.tenderDetail)
		r.Get("/stats", s.stats)
		r.Get("/portals", s.listPortals)
		r.Post("/scan", s.triggerScan)
		r.Get("/export/csv", s.exportCSV)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// tenderSummary is one row of the list endpoint.
type tenderSummary struct {
	ID              string     `json:"id"`
	TenderID        string     `json:"tender_id"`
	Title           string     `json:"title"`
	Organization    string     `json:"organization"`
	Portal          string     `json:"portal"`
	Value           float64    `json:"value"`
	ClosingDate     *time.Time `json:"closing_date"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	Categories      []string   `json:"categories"`
	TenderURL       string     `json:"tender_url"`
	MatchingCourses []string   `json:"matching_courses"`
	Priority        string     `json:"priority"`
}

func summarize(t domain.StoredTender) tenderSummary {
	return tenderSummary{
		ID:              t.ID,
		TenderID:        t.ExternalID,
		Title:           t.Title,
		Organization:    t.Organization,
		Portal:          t.SourceName,
		Value:           t.Value,
		ClosingDate:     t.ClosingAt,
		Description:     t.Description,
		Location:        t.Location,
		Categories:      nonNil(t.Categories),
		TenderURL:       t.SourceURL,
		MatchingCourses: nonNil(t.MatchedOfferings),
		Priority:        string(t.Priority),
	}
}

func (s *Server) listTenders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tenders, err := s.reader.List(r.Context(), f)
	if err != nil {
		s.log.Error("list tenders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tenders")
		return
	}
	out := make([]tenderSummary, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, summarize(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseFilter(r *http.Request) (ports.ListFilter, error) {
	q := r.URL.Query()
	f := ports.ListFilter{
		ActiveOnly: true,
		Portal:     q.Get("portal"),
		Category:   q.Get("category"),
		Search:     strings.TrimSpace(q.Get("search")),
	}
	var err error
	if f.Skip, err = intParam(q.Get("skip"), 0); err != nil || f.Skip < 0 {
		return f, eris.New("skip must be a non-negative integer")
	}
	if f.Limit, err = intParam(q.Get("limit"), 100); err != nil || f.Limit < 1 {
		return f, eris.New("limit must be a positive integer")
	}
	if v := q.Get("min_value"); v != "" {
		if f.MinValue, err = strconv.ParseFloat(v, 64); err != nil {
			return f, eris.New("min_value must be a number")
		}
	}
	if v := q.Get("priority"); v != "" {
		f.Priority = domain.Priority(strings.ToLower(v))
		if !f.Priority.Valid() {
			return f, eris.New("priority must be one of low, medium, high")
		}
	}
	return f, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) tenderDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.reader.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Tender not found")
		return
	}
	if err != nil {
		s.log.Error("get tender failed", zap.String("tender_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load tender")
		return
	}
	if err := s.reader.IncrementDownloadCount(r.Context(), id); err != nil {
		s.log.Warn("download count not updated", zap.String("tender_id", id), zap.Error(err))
	} else {
		t.DownloadCount++
	}
	t.Categories = nonNil(t.Categories)
	t.Keywords = nonNil(t.Keywords)
	t.MatchedOfferings = nonNil(t.MatchedOfferings)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.reader.Stats(r.Context(), s.now())
	if err != nil {
		s.log.Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	if st.ByPortal == nil {
		st.ByPortal = []ports.PortalCount{}
	}
	writeJSON(w, http.StatusOK, st)
}

type portalStatus struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	URL             string     `json:"url"`
	ActiveTenders   int        `json:"active_tenders"`
	LastUpdate      *time.Time `json:"last_update"`
	RequiresBrowser bool       `json:"requires_browser"`
}

func (s *Server) listPortals(w http.ResponseWriter, r *http.Request) {
	activity, err := s.reader.PortalActivity(r.Context())
	if err != nil {
		s.log.Error("portal activity failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load portals")
		return
	}
	all := s.portals.All()
	out := make([]portalStatus, 0, len(all))
	for _, d := range all {
		act := activity[d.Name]
		out = append(out, portalStatus{
			ID:              d.ID,
			Name:            d.Name,
			Type:            string(d.Kind),
			URL:             d.BaseURL(),
			ActiveTenders:   act.ActiveTenders,
			LastUpdate:      act.LastUpdate,
			RequiresBrowser: d.NeedsBrowser,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"portals": out})
}

type scanRequest struct {
	Portals []string `json:"portals"`
	Set     string   `json:"set"`
}

func (s *Server) triggerScan(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scanning is disabled")
		return
	}
	var req scanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := req.Portals
	if len(ids) == 0 {
		name := req.Set
		if name == "" {
			name = string(portal.SetAll)
		}
		set, err := portal.ParseSet(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ids, err = s.portals.Select(set); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ack := s.trigger.Submit(ids)
	s.log.Info("scan triggered", zap.String("run_id", ack.RunID), zap.Int("sources", len(ids)))
	writeJSON(w, http.StatusAccepted, ack)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	db := "healthy"
	if err := s.reader.Ping(r.Context()); err != nil {
		s.log.Warn("database ping failed", zap.Error(err))
		db = "unhealthy"
	}
	status := "healthy"
	if db != "healthy" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"database":  db,
		"timestamp": s.now(),
	})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenders, err := s.reader.List(r.Context(), ports.ListFilter{
		ActiveOnly: true,
		Portal:     q.Get("portal"),
		Category:   q.Get("category"),
		Limit:      -1,
	})
	if err != nil {
		s.log.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export tenders")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, tenders); err != nil {
		s.log.Error("export encode failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export tenders")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(s.now()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
