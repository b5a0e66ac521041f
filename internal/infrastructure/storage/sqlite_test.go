package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, WithClock(fixedClock))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Upsert_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tender := sampleTender("PW-1")

	got, err := st.Upsert(ctx, tender)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, got)

	got, err = st.Upsert(ctx, tender)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnchanged, got)

	all, err := st.List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "CanadaBuys_PW-1", all[0].ID)
	assert.True(t, all[0].IsActive)
	assert.Equal(t, domain.ContentHash(tender), all[0].Hash)
}

func TestSQLite_Upsert_UpdatePreservesStoreFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tender := sampleTender("PW-1")

	_, err := st.Upsert(ctx, tender)
	require.NoError(t, err)
	require.NoError(t, st.IncrementDownloadCount(ctx, "CanadaBuys_PW-1"))
	require.NoError(t, st.IncrementDownloadCount(ctx, "CanadaBuys_PW-1"))

	tender.Title = "Agile coaching services - amended"
	tender.Value = 300000
	got, err := st.Upsert(ctx, tender)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, got)

	stored, err := st.Get(ctx, "CanadaBuys_PW-1")
	require.NoError(t, err)
	assert.Equal(t, "Agile coaching services - amended", stored.Title)
	assert.Equal(t, 300000.0, stored.Value)
	assert.Equal(t, 2, stored.DownloadCount)
	assert.Equal(t, testNow, stored.CreatedAt)
	assert.Equal(t, []string{"agile-scrum"}, stored.Categories)
	require.NotNil(t, stored.ClosingAt)
	assert.True(t, stored.ClosingAt.Equal(*at(10)))
}

func TestSQLite_Upsert_InactiveStaysInactive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tender := sampleTender("OLD-1")
	tender.ClosingAt = at(-1)

	_, err := st.Upsert(ctx, tender)
	require.NoError(t, err)
	n, err := st.SweepExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tender.Title = "Re-posted"
	got, err := st.Upsert(ctx, tender)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, got)

	stored, err := st.Get(ctx, "CanadaBuys_OLD-1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestSQLite_SweepExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	past := sampleTender("PAST")
	past.ClosingAt = at(-3)
	future := sampleTender("FUTURE")
	open := sampleTender("OPEN")
	open.ClosingAt = nil
	for _, tn := range []domain.Tender{past, future, open} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}

	n, err := st.SweepExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.SweepExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	active, err := st.List(ctx, ports.ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Dated rows sort before undated ones.
	assert.Equal(t, "CanadaBuys_FUTURE", active[0].ID)
	assert.Equal(t, "CanadaBuys_OPEN", active[1].ID)
}

func TestSQLite_PurgeOld(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ancient := sampleTender("ANCIENT")
	ancient.ClosingAt = at(-200)
	recent := sampleTender("RECENT")
	recent.ClosingAt = at(-20)
	for _, tn := range []domain.Tender{ancient, recent} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}
	_, err := st.SweepExpired(ctx, testNow)
	require.NoError(t, err)

	n, err := st.PurgeOld(ctx, testNow, 180*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = st.Get(ctx, "CanadaBuys_ANCIENT")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(ctx, "CanadaBuys_RECENT")
	assert.NoError(t, err)
}

func TestSQLite_List_FiltersAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleTender("A")
	a.ClosingAt = at(5)
	a.Priority = domain.PriorityLow
	b := sampleTender("B")
	b.ClosingAt = at(5)
	b.Priority = domain.PriorityHigh
	c := sampleTender("C")
	c.SourceName = "City of Winnipeg"
	c.Title = "Linux server administration"
	c.Description = ""
	c.Value = 10000
	c.Categories = []string{"it-technical"}
	c.ClosingAt = at(2)
	for _, tn := range []domain.Tender{a, b, c} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}

	all, err := st.List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"City of Winnipeg_C", "CanadaBuys_B", "CanadaBuys_A"},
		[]string{all[0].ID, all[1].ID, all[2].ID})

	byPortal, err := st.List(ctx, ports.ListFilter{Portal: "City of Winnipeg"})
	require.NoError(t, err)
	require.Len(t, byPortal, 1)

	byCategory, err := st.List(ctx, ports.ListFilter{Category: "agile-scrum"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	byValue, err := st.List(ctx, ports.ListFilter{MinValue: 100000})
	require.NoError(t, err)
	assert.Len(t, byValue, 2)

	bySearch, err := st.List(ctx, ports.ListFilter{Search: "LINUX"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "City of Winnipeg_C", bySearch[0].ID)

	byPriority, err := st.List(ctx, ports.ListFilter{Priority: domain.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, "CanadaBuys_B", byPriority[0].ID)

	page, err := st.List(ctx, ports.ListFilter{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "CanadaBuys_B", page[0].ID)
}

func TestSQLite_List_WildcardsMatchLiterally(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	plain := sampleTender("PLAIN")
	odd := sampleTender("ODD")
	odd.Title = "100% online scrum_master course"
	odd.Categories = []string{"it_technical"}
	for _, tn := range []domain.Tender{plain, odd} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}

	byCategory, err := st.List(ctx, ports.ListFilter{Category: "%"})
	require.NoError(t, err)
	assert.Empty(t, byCategory)

	byCategory, err = st.List(ctx, ports.ListFilter{Category: "it_technical"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "CanadaBuys_ODD", byCategory[0].ID)

	bySearch, err := st.List(ctx, ports.ListFilter{Search: "%"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "CanadaBuys_ODD", bySearch[0].ID)

	bySearch, err = st.List(ctx, ports.ListFilter{Search: "m_ster"})
	require.NoError(t, err)
	assert.Empty(t, bySearch)
}

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	soon := sampleTender("SOON")
	soon.ClosingAt = at(3)
	soon.PostedAt = at(0)
	later := sampleTender("LATER")
	later.ClosingAt = at(30)
	later.Categories = []string{"agile-scrum", "leadership"}
	wpg := sampleTender("WPG")
	wpg.SourceName = "City of Winnipeg"
	wpg.Value = 50000
	for _, tn := range []domain.Tender{soon, later, wpg} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}

	stats, err := st.Stats(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTenders)
	assert.Equal(t, 550000.0, stats.TotalValue)
	assert.Equal(t, 1, stats.ClosingSoon)
	assert.Equal(t, 1, stats.NewToday)
	assert.Equal(t, map[string]int{"agile-scrum": 3, "leadership": 1}, stats.ByCategory)
	require.Len(t, stats.ByPortal, 2)
	assert.Equal(t, ports.PortalCount{Portal: "CanadaBuys", Count: 2, Value: 500000}, stats.ByPortal[0])
	require.NotNil(t, stats.LastScan)
	assert.True(t, stats.LastScan.Equal(testNow))
}

func TestSQLite_PortalActivity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	expired := sampleTender("X")
	expired.ClosingAt = at(-1)
	for _, tn := range []domain.Tender{sampleTender("A"), expired} {
		_, err := st.Upsert(ctx, tn)
		require.NoError(t, err)
	}
	_, err := st.SweepExpired(ctx, testNow)
	require.NoError(t, err)

	act, err := st.PortalActivity(ctx)
	require.NoError(t, err)
	require.Contains(t, act, "CanadaBuys")
	assert.Equal(t, 1, act["CanadaBuys"].ActiveTenders)
	require.NotNil(t, act["CanadaBuys"].LastUpdate)
}

func TestSQLite_IncrementDownloadCount_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.IncrementDownloadCount(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ConcurrentUpsertsSameKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := st.Upsert(ctx, sampleTender("RACE"))
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
	all, err := st.List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
