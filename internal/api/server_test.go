package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/export"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/usecase"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeTrigger struct {
	ids [][]string
}

func (f *fakeTrigger) Submit(ids []string) usecase.Ack {
	f.ids = append(f.ids, ids)
	return usecase.Ack{Message: "Scan initiated", Status: "processing", RunID: "run-1"}
}

func newTestServer(t *testing.T) (*storage.SQLiteStore, *fakeTrigger, http.Handler) {
	t.Helper()
	clock := func() time.Time { return testNow }
	st, err := storage.NewSQLite(filepath.Join(t.TempDir(), "api.db"), storage.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	trig := &fakeTrigger{}
	srv := NewServer(Deps{Reader: st, Trigger: trig, Clock: clock, Logger: zap.NewNop()})
	return st, trig, srv.Routes()
}

func seed(t *testing.T, st *storage.SQLiteStore, tenders ...domain.Tender) {
	t.Helper()
	for _, tn := range tenders {
		_, err := st.Upsert(context.Background(), tn)
		require.NoError(t, err)
	}
}

func tender(portalName, id string, value float64, p domain.Priority, cats ...string) domain.Tender {
	closing := testNow.AddDate(0, 0, 5)
	return domain.Tender{
		RawTender: domain.RawTender{
			ExternalID: id, SourceName: portalName, Title: "Tender " + id,
			Organization: "Org", Value: value, ClosingAt: &closing,
		},
		Categories:       cats,
		MatchedOfferings: []string{"Certified ScrumMaster (CSM)"},
		Priority:         p,
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListTenders_Filters(t *testing.T) {
	st, _, h := newTestServer(t)
	seed(t, st,
		tender("CanadaBuys", "A", 500000, domain.PriorityMedium, "agile-scrum"),
		tender("MERX", "B", 20000, domain.PriorityHigh, "leadership"),
	)

	rec := do(t, h, http.MethodGet, "/api/tenders?portal=MERX", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []tenderSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "MERX_B", got[0].ID)
	assert.Equal(t, []string{"leadership"}, got[0].Categories)

	rec = do(t, h, http.MethodGet, "/api/tenders?min_value=100000&category=agile-scrum", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].TenderID)
}

func TestListTenders_BadParams(t *testing.T) {
	_, _, h := newTestServer(t)
	for _, q := range []string{"limit=abc", "skip=-1", "min_value=lots", "priority=urgent", "limit=0"} {
		rec := do(t, h, http.MethodGet, "/api/tenders?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListTenders_EmptyIsArray(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/tenders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTenderDetail_IncrementsDownloads(t *testing.T) {
	st, _, h := newTestServer(t)
	seed(t, st, tender("CanadaBuys", "A", 1, domain.PriorityLow))

	rec := do(t, h, http.MethodGet, "/api/tender/CanadaBuys_A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.StoredTender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.DownloadCount)

	rec = do(t, h, http.MethodGet, "/api/tender/CanadaBuys_A", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.DownloadCount)
}

func TestTenderDetail_NotFound(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/tender/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tender not found")
}

func TestStats(t *testing.T) {
	st, _, h := newTestServer(t)
	seed(t, st, tender("CanadaBuys", "A", 100, domain.PriorityLow, "agile-scrum"))

	rec := do(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ports.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.TotalTenders)
	assert.Equal(t, 1, got.ClosingSoon)
	assert.Equal(t, 1, got.ByCategory["agile-scrum"])
}

func TestPortals_IncludesActivity(t *testing.T) {
	st, _, h := newTestServer(t)
	seed(t, st, tender("CanadaBuys", "A", 1, domain.PriorityLow), tender("CanadaBuys", "B", 1, domain.PriorityLow))

	rec := do(t, h, http.MethodGet, "/api/portals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Portals []portalStatus `json:"portals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got.Portals)
	assert.Equal(t, "canadabuys", got.Portals[0].ID)
	assert.Equal(t, 2, got.Portals[0].ActiveTenders)
	assert.NotNil(t, got.Portals[0].LastUpdate)
	assert.False(t, got.Portals[0].RequiresBrowser)
}

func TestTriggerScan_Acknowledges(t *testing.T) {
	_, trig, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/scan", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var ack usecase.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "Scan initiated", ack.Message)
	assert.Equal(t, "processing", ack.Status)
	require.Len(t, trig.ids, 1)
	assert.Len(t, trig.ids[0], 29)

	rec = do(t, h, http.MethodPost, "/api/scan", `{"set":"high_priority"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, trig.ids[1], 6)

	rec = do(t, h, http.MethodPost, "/api/scan", `{"portals":["merx"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"merx"}, trig.ids[2])

	rec = do(t, h, http.MethodPost, "/api/scan", `{"set":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type downReader struct {
	ports.TenderReader
}

func (downReader) Ping(context.Context) error { return eris.New("connection refused") }

func TestHealth(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	down := NewServer(Deps{Reader: downReader{}, Logger: zap.NewNop()}).Routes()
	rec = do(t, down, http.MethodGet, "/health", "")
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"database":"unhealthy"`)
}

func TestExportCSV(t *testing.T) {
	st, _, h := newTestServer(t)
	seed(t, st,
		tender("CanadaBuys", "A", 1234.5, domain.PriorityHigh, "agile-scrum"),
		tender("MERX", "B", 10, domain.PriorityLow, "leadership"),
	)

	rec := do(t, h, http.MethodGet, "/api/export/csv?category=agile-scrum", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=tenders_20250310.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	rows, err := export.Read(rec.Body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].TenderID)
	assert.Equal(t, "CanadaBuys", rows[0].Portal)
	assert.Equal(t, "high", rows[0].Priority)
	assert.Equal(t, "1234.5", rows[0].Value)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, _, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tenders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
