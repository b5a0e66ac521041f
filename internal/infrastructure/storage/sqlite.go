package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// SQLiteStore implements the store on modernc.org/sqlite. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.TenderStore  = (*SQLiteStore)(nil)
	_ ports.TenderReader = (*SQLiteStore)(nil)
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps the select-then-write upsert serialised.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: applyOptions(opts).now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenders (
	id               TEXT PRIMARY KEY,
	tender_id        TEXT NOT NULL,
	portal           TEXT NOT NULL,
	title            TEXT NOT NULL,
	organization     TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	value            REAL NOT NULL DEFAULT 0,
	posted_date      INTEGER,
	closing_date     INTEGER,
	tender_url       TEXT NOT NULL DEFAULT '',
	documents_url    TEXT NOT NULL DEFAULT '',
	contact_email    TEXT NOT NULL DEFAULT '',
	contact_phone    TEXT NOT NULL DEFAULT '',
	categories       TEXT NOT NULL DEFAULT '[]',
	keywords         TEXT NOT NULL DEFAULT '[]',
	matching_courses TEXT NOT NULL DEFAULT '[]',
	attachments      TEXT NOT NULL DEFAULT '[]',
	priority         TEXT NOT NULL DEFAULT 'low',
	hash             TEXT NOT NULL,
	is_active        INTEGER NOT NULL DEFAULT 1,
	download_count   INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	last_updated     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tenders_portal ON tenders(portal);
CREATE INDEX IF NOT EXISTS idx_tenders_closing ON tenders(closing_date);
CREATE INDEX IF NOT EXISTS idx_tenders_active ON tenders(is_active);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Upsert reconciles one tender inside its own transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, t domain.Tender) (domain.UpsertOutcome, error) {
	e, err := encode(t)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT hash FROM tenders WHERE id = ?`, e.id).Scan(&stored)
	var (
		outcome domain.UpsertOutcome
		b       sq.Sqlizer
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome, b = domain.OutcomeCreated, sqliteDialect.insert(t, e, s.now())
	case err != nil:
		return 0, eris.Wrapf(err, "sqlite: lookup %s", e.id)
	case stored == e.hash:
		return domain.OutcomeUnchanged, nil
	default:
		outcome, b = domain.OutcomeUpdated, sqliteDialect.update(t, e, s.now())
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build upsert")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, eris.Wrapf(err, "sqlite: write %s", e.id)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit %s", e.id)
	}
	return outcome, nil
}

// SweepExpired deactivates active rows whose closing date has passed.
func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.exec(ctx, "sweep expired", sqliteDialect.builder.Update("tenders").
		Set("is_active", false).
		Where(sq.Eq{"is_active": true}).
		Where(sq.Lt{"closing_date": sqliteDialect.time(now)}))
}

// PurgeOld deletes inactive rows that closed more than retention ago.
func (s *SQLiteStore) PurgeOld(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	return s.exec(ctx, "purge old", sqliteDialect.builder.Delete("tenders").
		Where(sq.Eq{"is_active": false}).
		Where(sq.Lt{"closing_date": sqliteDialect.time(now.Add(-retention))}))
}

func (s *SQLiteStore) exec(ctx context.Context, op string, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: build %s", op)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s", op)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrapf(err, "sqlite: %s rows affected", op)
}

// List returns tenders matching f ordered by closing date then priority.
func (s *SQLiteStore) List(ctx context.Context, f ports.ListFilter) ([]domain.StoredTender, error) {
	query, args, err := sqliteDialect.list(f).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tenders")
	}
	defer rows.Close()

	var out []domain.StoredTender
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tender")
		}
		out = append(out, r.stored())
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate tenders")
}

// Get loads one tender by primary key.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.StoredTender, error) {
	query, args, err := sqliteDialect.builder.Select(tenderColumns...).
		From("tenders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.StoredTender{}, eris.Wrap(err, "sqlite: build get")
	}
	r, err := scanSQLite(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredTender{}, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return domain.StoredTender{}, eris.Wrapf(err, "sqlite: get %s", id)
	}
	return r.stored(), nil
}

// IncrementDownloadCount records one detail view of a tender.
func (s *SQLiteStore) IncrementDownloadCount(ctx context.Context, id string) error {
	n, err := s.exec(ctx, "increment downloads", sqliteDialect.builder.Update("tenders").
		Set("download_count", sq.Expr("download_count + 1")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Stats aggregates active tenders.
func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (ports.Stats, error) {
	st := ports.Stats{ByCategory: map[string]int{}}
	t := sqliteDialect.time

	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 THEN value ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND closing_date > ? AND closing_date <= ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN posted_date >= ? THEN 1 ELSE 0 END), 0),
		MAX(last_updated)
		FROM tenders`,
		t(now), t(now.Add(7*24*time.Hour)), t(startOfDay(now))).
		Scan(&st.TotalTenders, &st.TotalValue, &st.ClosingSoon, &st.NewToday, &last)
	if err != nil {
		return st, eris.Wrap(err, "sqlite: stats totals")
	}
	st.LastScan = fromMillis(last)

	rows, err := s.db.QueryContext(ctx, `SELECT portal, COUNT(*), COALESCE(SUM(value), 0)
		FROM tenders WHERE is_active = 1 GROUP BY portal ORDER BY COUNT(*) DESC, portal`)
	if err != nil {
		return st, eris.Wrap(err, "sqlite: stats by portal")
	}
	for rows.Next() {
		var pc ports.PortalCount
		if err := rows.Scan(&pc.Portal, &pc.Count, &pc.Value); err != nil {
			rows.Close()
			return st, eris.Wrap(err, "sqlite: scan portal count")
		}
		st.ByPortal = append(st.ByPortal, pc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, eris.Wrap(err, "sqlite: iterate portal counts")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT categories FROM tenders WHERE is_active = 1`)
	if err != nil {
		return st, eris.Wrap(err, "sqlite: stats by category")
	}
	defer rows.Close()
	var raw []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return st, eris.Wrap(err, "sqlite: scan categories")
		}
		raw = append(raw, c)
	}
	if err := rows.Err(); err != nil {
		return st, eris.Wrap(err, "sqlite: iterate categories")
	}
	st.ByCategory = countCategories(raw)
	return st, nil
}

// PortalActivity reports active counts and the last write per portal name.
func (s *SQLiteStore) PortalActivity(ctx context.Context) (map[string]ports.PortalActivity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT portal,
		COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0), MAX(last_updated)
		FROM tenders GROUP BY portal`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: portal activity")
	}
	defer rows.Close()

	out := map[string]ports.PortalActivity{}
	for rows.Next() {
		var (
			name   string
			active int
			last   sql.NullInt64
		)
		if err := rows.Scan(&name, &active, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan portal activity")
		}
		out[name] = ports.PortalActivity{ActiveTenders: active, LastUpdate: fromMillis(last)}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate portal activity")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (record, error) {
	var (
		r                record
		posted, closing  sql.NullInt64
		created, updated int64
	)
	err := row.Scan(
		&r.id, &r.tenderID, &r.portal, &r.title, &r.organization, &r.description, &r.location,
		&r.value, &posted, &closing, &r.url, &r.documents,
		&r.email, &r.phone, &r.categories, &r.keywords, &r.offerings,
		&r.attachments, &r.priority, &r.hash, &r.active, &r.downloads,
		&created, &updated,
	)
	if err != nil {
		return r, err
	}
	r.posted = fromMillis(posted)
	r.closing = fromMillis(closing)
	r.created = time.UnixMilli(created).UTC()
	r.updated = time.UnixMilli(updated).UTC()
	return r, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
