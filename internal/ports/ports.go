package ports

import (
	"context"
	"time"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/scanner"
)

// BrowserSession is a scanner.Browser the orchestrator must close.
type BrowserSession interface {
	scanner.Browser
	Close() error
}

// BrowserProvider opens remote browser sessions.
type BrowserProvider interface {
	Acquire(ctx context.Context) (BrowserSession, error)
}

// Enricher classifies and prioritises raw records.
type Enricher interface {
	Enrich(raw domain.RawTender) domain.Tender
}

// ListFilter narrows list and export queries. Zero values mean "any". A
// zero Limit is the default page size and a negative Limit disables paging.
type ListFilter struct {
	Skip       int
	Limit      int
	Portal     string
	MinValue   float64
	Category   string
	Priority   domain.Priority
	Search     string
	ActiveOnly bool
}

// PortalCount is one row of the by-portal statistics.
type PortalCount struct {
	Portal string  `json:"portal"`
	Count  int     `json:"count"`
	Value  float64 `json:"value"`
}

// Stats aggregates active tenders for the dashboard endpoint.
type Stats struct {
	TotalTenders int            `json:"total_tenders"`
	TotalValue   float64        `json:"total_value"`
	ByPortal     []PortalCount  `json:"by_portal"`
	ByCategory   map[string]int `json:"by_category"`
	ClosingSoon  int            `json:"closing_soon"`
	NewToday     int            `json:"new_today"`
	LastScan     *time.Time     `json:"last_scan"`
}

// PortalActivity summarises stored records for one portal name.
type PortalActivity struct {
	ActiveTenders int
	LastUpdate    *time.Time
}

// TenderStore is the reconciliation store.
type TenderStore interface {
	Upsert(ctx context.Context, t domain.Tender) (domain.UpsertOutcome, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeOld(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// TenderReader is the read side used by the query API and export.
type TenderReader interface {
	List(ctx context.Context, f ListFilter) ([]domain.StoredTender, error)
	Get(ctx context.Context, id string) (domain.StoredTender, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	Stats(ctx context.Context, now time.Time) (Stats, error)
	PortalActivity(ctx context.Context) (map[string]PortalActivity, error)
	Ping(ctx context.Context) error
}

// Notifier delivers a post-batch digest.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler is a time-based job driver. Jobs receive a context that is
// cancelled when the driver stops.
type Scheduler interface {
	Schedule(name, spec string, job func(ctx context.Context)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
