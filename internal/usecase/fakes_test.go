package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/scanner"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory reconciliation store keyed like the real one.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]domain.StoredTender
	failKeys  map[string]bool
	sweeps    int
	purges    int
	sweepErr  error
	swept     int64
	purged    int64
	lastPurge time.Duration
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.StoredTender{}, failKeys: map[string]bool{}}
}

func (m *memStore) Upsert(_ context.Context, t domain.Tender) (domain.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := t.Key()
	if m.failKeys[key] {
		return 0, eris.Errorf("constraint violation on %s", key)
	}
	hash := domain.ContentHash(t)
	cur, ok := m.rows[key]
	switch {
	case !ok:
		m.rows[key] = domain.StoredTender{Tender: t, ID: key, Hash: hash, IsActive: true}
		return domain.OutcomeCreated, nil
	case cur.Hash == hash:
		return domain.OutcomeUnchanged, nil
	default:
		cur.Tender, cur.Hash = t, hash
		m.rows[key] = cur
		return domain.OutcomeUpdated, nil
	}
}

func (m *memStore) SweepExpired(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return m.swept, m.sweepErr
}

func (m *memStore) PurgeOld(_ context.Context, _ time.Time, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purges++
	m.lastPurge = retention
	return m.purged, nil
}

type fakeBrowser struct {
	mu     sync.Mutex
	closed int
}

func (b *fakeBrowser) Navigate(context.Context, string) error { return nil }

func (b *fakeBrowser) WaitFor(context.Context, string, time.Duration) error { return nil }

func (b *fakeBrowser) PageSource(context.Context) (string, error) { return "<html></html>", nil }

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	acquired int
	err      error
	session  *fakeBrowser
}

func (p *fakeProvider) Acquire(context.Context) (ports.BrowserSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired++
	if p.err != nil {
		return nil, p.err
	}
	if p.session == nil {
		p.session = &fakeBrowser{}
	}
	return p.session, nil
}

// staticEnricher tags every record with a fixed priority.
type staticEnricher struct {
	priority domain.Priority
}

func (e staticEnricher) Enrich(raw domain.RawTender) domain.Tender {
	return domain.Tender{RawTender: raw, Priority: e.priority}
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.messages = append(n.messages, digest)
	return nil
}

func records(portalName string, ids ...string) scanner.Extractor {
	return scanner.ExtractorFunc(func(context.Context, scanner.Session) ([]domain.RawTender, error) {
		out := make([]domain.RawTender, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.RawTender{
				ExternalID: id,
				SourceName: portalName,
				Title:      "Tender " + id,
			})
		}
		return out, nil
	})
}

func failing(msg string) scanner.Extractor {
	return scanner.ExtractorFunc(func(context.Context, scanner.Session) ([]domain.RawTender, error) {
		return nil, eris.New(msg)
	})
}
