// Package storage is the reconciliation store: idempotent upserts keyed by
// the tender's external identity, plus the expiry sweep and retention purge.
package storage

import (
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// ErrNotFound is returned when a tender id has no row.
var ErrNotFound = eris.New("tender not found")

const (
	defaultLimit = 100
	maxLimit     = 100
)

var tenderColumns = []string{
	"id", "tender_id", "portal", "title", "organization", "description", "location",
	"value", "posted_date", "closing_date", "tender_url", "documents_url",
	"contact_email", "contact_phone", "categories", "keywords", "matching_courses",
	"attachments", "priority", "hash", "is_active", "download_count",
	"created_at", "last_updated",
}

// updatable lists the canonical columns overwritten when the hash changes.
// is_active, download_count and created_at belong to the store.
var updatable = []string{
	"tender_id", "portal", "title", "organization", "description", "location",
	"value", "posted_date", "closing_date", "tender_url", "documents_url",
	"contact_email", "contact_phone", "categories", "keywords", "matching_courses",
	"attachments", "priority", "hash", "last_updated",
}

type options struct {
	now func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithClock overrides the clock stamped on created_at and last_updated.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const priorityRank = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likeLiteral escapes LIKE wildcards so user input matches literally.
func likeLiteral(s string) string { return likeEscaper.Replace(s) }

// like builds a pattern match with an explicit escape character; SQLite has
// no default one.
func like(col, op, pattern string) sq.Sqlizer {
	return sq.Expr(col+" "+op+" ? ESCAPE '\\'", pattern)
}

// dialect captures what differs between the two backends.
type dialect struct {
	builder sq.StatementBuilderType
	search  func(col, pattern string) sq.Sqlizer
	time    func(t time.Time) any
}

var postgresDialect = dialect{
	builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	search:  func(col, pattern string) sq.Sqlizer { return like(col, "ILIKE", pattern) },
	time:    func(t time.Time) any { return t.UTC() },
}

var sqliteDialect = dialect{
	builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	search:  func(col, pattern string) sq.Sqlizer { return like(col, "LIKE", pattern) },
	time:    func(t time.Time) any { return t.UTC().UnixMilli() },
}

func (d dialect) optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.time(*t)
}

// encoded is a tender flattened to column values.
type encoded struct {
	id, tenderID, portal            string
	categories, keywords, offerings string
	attachments, hash               string
}

func encode(t domain.Tender) (encoded, error) {
	var (
		e   encoded
		err error
	)
	e.id = t.Key()
	e.tenderID = domain.NormalizeID(t.ExternalID)
	e.portal = t.SourceName
	e.hash = domain.ContentHash(t)
	if e.categories, err = jsonList(t.Categories); err != nil {
		return e, err
	}
	if e.keywords, err = jsonList(t.Keywords); err != nil {
		return e, err
	}
	if e.offerings, err = jsonList(t.MatchedOfferings); err != nil {
		return e, err
	}
	if e.attachments, err = jsonList(t.Attachments); err != nil {
		return e, err
	}
	return e, nil
}

func jsonList[T any](in []T) (string, error) {
	if in == nil {
		in = []T{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", eris.Wrap(err, "encode list column")
	}
	return string(b), nil
}

func decodeList[T any](raw string) []T {
	out := []T{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []T{}
	}
	return out
}

// values returns the canonical column values in updatable order, minus
// last_updated which the caller appends.
func (d dialect) values(t domain.Tender, e encoded) []any {
	return []any{
		e.tenderID, e.portal, t.Title, t.Organization, t.Description, t.Location,
		t.Value, d.optTime(t.PostedAt), d.optTime(t.ClosingAt), t.SourceURL, t.DocumentsURL,
		t.ContactEmail, t.ContactPhone, e.categories, e.keywords, e.offerings,
		e.attachments, string(t.Priority), e.hash,
	}
}

// insert builds the INSERT for a new row.
func (d dialect) insert(t domain.Tender, e encoded, now time.Time) sq.InsertBuilder {
	vals := append([]any{e.id}, d.values(t, e)...)
	vals = append(vals, true, 0, d.time(now), d.time(now))
	return d.builder.Insert("tenders").Columns(tenderColumns...).Values(vals...)
}

// update builds the overwrite of canonical fields for an existing row.
func (d dialect) update(t domain.Tender, e encoded, now time.Time) sq.UpdateBuilder {
	vals := append(d.values(t, e), d.time(now))
	b := d.builder.Update("tenders")
	for i, col := range updatable {
		b = b.Set(col, vals[i])
	}
	return b.Where(sq.Eq{"id": e.id})
}

func clampLimit(limit int) uint64 {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return uint64(limit)
}

// list builds the filtered, ordered read query.
func (d dialect) list(f ports.ListFilter) sq.SelectBuilder {
	q := d.builder.Select(tenderColumns...).From("tenders")
	if f.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	if f.Portal != "" {
		q = q.Where(sq.Eq{"portal": f.Portal})
	}
	if f.MinValue > 0 {
		q = q.Where(sq.GtOrEq{"value": f.MinValue})
	}
	if f.Category != "" {
		q = q.Where(like("categories", "LIKE", `%"`+likeLiteral(f.Category)+`"%`))
	}
	if f.Priority != "" {
		q = q.Where(sq.Eq{"priority": string(f.Priority)})
	}
	if f.Search != "" {
		pattern := "%" + likeLiteral(f.Search) + "%"
		q = q.Where(sq.Or{
			d.search("title", pattern),
			d.search("description", pattern),
			d.search("organization", pattern),
		})
	}
	q = q.OrderBy("closing_date IS NULL", "closing_date ASC", priorityRank+" DESC", "id ASC")
	if f.Limit >= 0 {
		q = q.Limit(clampLimit(f.Limit))
	}
	if f.Skip > 0 {
		q = q.Offset(uint64(f.Skip))
	}
	return q
}

// record is a scanned row before list columns are decoded.
type record struct {
	id, tenderID, portal, title, organization, description, location string
	value                                                             float64
	posted, closing                                                   *time.Time
	url, documents, email, phone                                      string
	categories, keywords, offerings, attachments                      string
	priority, hash                                                    string
	active                                                            bool
	downloads                                                         int
	created, updated                                                  time.Time
}

func (r record) stored() domain.StoredTender {
	return domain.StoredTender{
		Tender: domain.Tender{
			RawTender: domain.RawTender{
				ExternalID:   r.tenderID,
				SourceName:   r.portal,
				Title:        r.title,
				Organization: r.organization,
				Description:  r.description,
				Location:     r.location,
				Value:        r.value,
				PostedAt:     r.posted,
				ClosingAt:    r.closing,
				SourceURL:    r.url,
				DocumentsURL: r.documents,
				ContactEmail: r.email,
				ContactPhone: r.phone,
				Attachments:  decodeList[domain.AttachmentRef](r.attachments),
			},
			Categories:       decodeList[string](r.categories),
			Keywords:         decodeList[string](r.keywords),
			MatchedOfferings: decodeList[string](r.offerings),
			Priority:         domain.Priority(r.priority),
		},
		ID:            r.id,
		Hash:          r.hash,
		IsActive:      r.active,
		DownloadCount: r.downloads,
		CreatedAt:     r.created,
		LastUpdated:   r.updated,
	}
}

// countCategories tallies the categories column of active rows.
func countCategories(raw []string) map[string]int {
	out := map[string]int{}
	for _, r := range raw {
		for _, c := range decodeList[string](r) {
			out[c]++
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
