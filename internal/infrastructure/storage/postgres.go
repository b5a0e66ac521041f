package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// Pool is the subset of pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements ports.TenderStore and ports.TenderReader on pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

var (
	_ ports.TenderStore  = (*PostgresStore)(nil)
	_ ports.TenderReader = (*PostgresStore)(nil)
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
	if poolCfg.MaxConns > 0 {
		maxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		minConns = poolCfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: applyOptions(opts).now}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: applyOptions(opts).now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenders (
	id               TEXT PRIMARY KEY,
	tender_id        TEXT NOT NULL,
	portal           TEXT NOT NULL,
	title            TEXT NOT NULL,
	organization     TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	value            NUMERIC NOT NULL DEFAULT 0,
	posted_date      TIMESTAMPTZ,
	closing_date     TIMESTAMPTZ,
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
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	download_count   INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tenders_portal ON tenders (portal);
CREATE INDEX IF NOT EXISTS idx_tenders_closing ON tenders (closing_date);
CREATE INDEX IF NOT EXISTS idx_tenders_active ON tenders (is_active);
`

// Migrate creates the schema. It is safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Upsert reconciles one tender in a single statement. The conditional
// DO UPDATE leaves unchanged rows untouched, so no row comes back for them.
func (s *PostgresStore) Upsert(ctx context.Context, t domain.Tender) (domain.UpsertOutcome, error) {
	e, err := encode(t)
	if err != nil {
		return 0, err
	}
	sets := make([]string, 0, len(updatable))
	for _, col := range updatable {
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	query, args, err := postgresDialect.insert(t, e, s.now()).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ") +
			" WHERE tenders.hash IS DISTINCT FROM EXCLUDED.hash RETURNING (xmax = 0)").
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build upsert")
	}

	var inserted bool
	err = s.pool.QueryRow(ctx, query, args...).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.OutcomeUnchanged, nil
	case err != nil:
		return 0, eris.Wrapf(err, "postgres: upsert %s", e.id)
	case inserted:
		return domain.OutcomeCreated, nil
	default:
		return domain.OutcomeUpdated, nil
	}
}

// SweepExpired deactivates active rows whose closing date has passed.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := postgresDialect.builder.Update("tenders").
		Set("is_active", false).
		Where(sq.Eq{"is_active": true}).
		Where(sq.Lt{"closing_date": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build sweep")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: sweep expired")
	}
	return tag.RowsAffected(), nil
}

// PurgeOld deletes inactive rows that closed more than retention ago.
func (s *PostgresStore) PurgeOld(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	query, args, err := postgresDialect.builder.Delete("tenders").
		Where(sq.Eq{"is_active": false}).
		Where(sq.Lt{"closing_date": now.Add(-retention).UTC()}).
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build purge")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge old")
	}
	return tag.RowsAffected(), nil
}

// List returns tenders matching f ordered by closing date then priority.
func (s *PostgresStore) List(ctx context.Context, f ports.ListFilter) ([]domain.StoredTender, error) {
	query, args, err := postgresDialect.list(f).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tenders")
	}
	defer rows.Close()

	var out []domain.StoredTender
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan tender")
		}
		out = append(out, r.stored())
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate tenders")
}

// Get loads one tender by primary key.
func (s *PostgresStore) Get(ctx context.Context, id string) (domain.StoredTender, error) {
	query, args, err := postgresDialect.builder.Select(tenderColumns...).
		From("tenders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.StoredTender{}, eris.Wrap(err, "postgres: build get")
	}
	r, err := scanPostgres(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StoredTender{}, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return domain.StoredTender{}, eris.Wrapf(err, "postgres: get %s", id)
	}
	return r.stored(), nil
}

// IncrementDownloadCount records one detail view of a tender.
func (s *PostgresStore) IncrementDownloadCount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tenders SET download_count = download_count + 1 WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment downloads %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Stats aggregates active tenders.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (ports.Stats, error) {
	st := ports.Stats{ByCategory: map[string]int{}}
	now = now.UTC()

	err := s.pool.QueryRow(ctx, `SELECT
		COUNT(*) FILTER (WHERE is_active),
		COALESCE(SUM(value) FILTER (WHERE is_active), 0),
		COUNT(*) FILTER (WHERE is_active AND closing_date > $1 AND closing_date <= $2),
		COUNT(*) FILTER (WHERE posted_date >= $3),
		MAX(last_updated)
		FROM tenders`,
		now, now.Add(7*24*time.Hour), startOfDay(now)).
		Scan(&st.TotalTenders, &st.TotalValue, &st.ClosingSoon, &st.NewToday, &st.LastScan)
	if err != nil {
		return st, eris.Wrap(err, "postgres: stats totals")
	}

	rows, err := s.pool.Query(ctx, `SELECT portal, COUNT(*), COALESCE(SUM(value), 0)
		FROM tenders WHERE is_active GROUP BY portal ORDER BY COUNT(*) DESC, portal`)
	if err != nil {
		return st, eris.Wrap(err, "postgres: stats by portal")
	}
	for rows.Next() {
		var pc ports.PortalCount
		if err := rows.Scan(&pc.Portal, &pc.Count, &pc.Value); err != nil {
			rows.Close()
			return st, eris.Wrap(err, "postgres: scan portal count")
		}
		st.ByPortal = append(st.ByPortal, pc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, eris.Wrap(err, "postgres: iterate portal counts")
	}

	rows, err = s.pool.Query(ctx, `SELECT categories FROM tenders WHERE is_active`)
	if err != nil {
		return st, eris.Wrap(err, "postgres: stats by category")
	}
	defer rows.Close()
	var raw []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return st, eris.Wrap(err, "postgres: scan categories")
		}
		raw = append(raw, c)
	}
	if err := rows.Err(); err != nil {
		return st, eris.Wrap(err, "postgres: iterate categories")
	}
	st.ByCategory = countCategories(raw)
	return st, nil
}

// PortalActivity reports active counts and the last write per portal name.
func (s *PostgresStore) PortalActivity(ctx context.Context) (map[string]ports.PortalActivity, error) {
	rows, err := s.pool.Query(ctx, `SELECT portal, COUNT(*) FILTER (WHERE is_active), MAX(last_updated)
		FROM tenders GROUP BY portal`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: portal activity")
	}
	defer rows.Close()

	out := map[string]ports.PortalActivity{}
	for rows.Next() {
		var (
			name string
			act  ports.PortalActivity
		)
		if err := rows.Scan(&name, &act.ActiveTenders, &act.LastUpdate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan portal activity")
		}
		out[name] = act
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate portal activity")
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func scanPostgres(row pgx.Row) (record, error) {
	var r record
	err := row.Scan(
		&r.id, &r.tenderID, &r.portal, &r.title, &r.organization, &r.description, &r.location,
		&r.value, &r.posted, &r.closing, &r.url, &r.documents,
		&r.email, &r.phone, &r.categories, &r.keywords, &r.offerings,
		&r.attachments, &r.priority, &r.hash, &r.active, &r.downloads,
		&r.created, &r.updated,
	)
	return r, err
}
