package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/metrics"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/scanner"
)

type runIDKey struct{}

// WithRunID attaches a batch id chosen by the caller, so an acknowledgement
// can name the run before it starts.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// BatchRunner runs one batch over a list of portal ids.
type BatchRunner interface {
	RunBatch(ctx context.Context, ids []string) (*domain.RunReport, error)
}

// ErrFatalBatch marks a batch-level failure the invoking scheduler may retry.
var ErrFatalBatch = eris.New("fatal batch failure")

const (
	defaultSourceTimeout   = 5 * time.Minute
	defaultHTTPConcurrency = 4
)

// OrchestratorDeps wires all driven adapters into the batch runner.
type OrchestratorDeps struct {
	Portals         *portal.Registry
	Extractors      *scanner.Registry
	HTTP            scanner.Fetcher
	Browsers        ports.BrowserProvider
	Enricher        ports.Enricher
	Store           ports.TenderStore
	Notifier        ports.Notifier
	Logger          *zap.Logger
	Clock           func() time.Time
	SourceTimeout   time.Duration
	HTTPConcurrency int
}

// Orchestrator runs batches: extract per source, enrich, reconcile, sweep.
type Orchestrator struct {
	portals     *portal.Registry
	extractors  *scanner.Registry
	http        scanner.Fetcher
	browsers    ports.BrowserProvider
	enricher    ports.Enricher
	store       ports.TenderStore
	notifier    ports.Notifier
	log         *zap.Logger
	now         func() time.Time
	timeout     time.Duration
	concurrency int
}

// NewOrchestrator constructs the batch runner.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		portals:     deps.Portals,
		extractors:  deps.Extractors,
		http:        deps.HTTP,
		browsers:    deps.Browsers,
		enricher:    deps.Enricher,
		store:       deps.Store,
		notifier:    deps.Notifier,
		log:         deps.Logger,
		now:         deps.Clock,
		timeout:     deps.SourceTimeout,
		concurrency: deps.HTTPConcurrency,
	}
	if o.portals == nil {
		o.portals = portal.Default()
	}
	if o.log == nil {
		o.log = zap.L()
	}
	o.log = o.log.With(zap.String("component", "orchestrator"))
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.timeout <= 0 {
		o.timeout = defaultSourceTimeout
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultHTTPConcurrency
	}
	return o
}

// job is one resolved source inside a batch.
type job struct {
	desc      domain.PortalDescriptor
	extractor scanner.Extractor
	records   []domain.RawTender
	err       error
}

// RunBatch processes ids in order. A failing source is recorded in the
// report and never stops the others. When the shared browser session
// cannot be acquired the remaining browser sources are aborted and the
// report comes back together with an error wrapping ErrFatalBatch.
func (o *Orchestrator) RunBatch(ctx context.Context, ids []string) (*domain.RunReport, error) {
	if o.extractors == nil || o.store == nil || o.enricher == nil {
		return nil, eris.New("orchestrator is not configured")
	}

	started := o.now()
	report := domain.NewRunReport(runIDFrom(ctx), ids, started)
	log := o.log.With(zap.String("run_id", report.RunID))
	log.Info("batch started", zap.Int("sources", len(ids)))
	metrics.BatchesInFlight.Inc()
	defer metrics.BatchesInFlight.Dec()

	jobs := o.resolve(ids, report, log)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, j := range jobs {
		if j.desc.NeedsBrowser {
			continue
		}
		g.Go(func() error {
			j.records, j.err = o.extract(gctx, j, nil, started, log)
			return nil
		})
	}
	fatal := o.runBrowserJobs(ctx, jobs, started, log)
	_ = g.Wait()

	var created []domain.Tender
	for _, j := range jobs {
		created = append(created, o.reconcile(ctx, j, report, log)...)
	}

	expired, err := o.store.SweepExpired(ctx, o.now())
	if err != nil {
		log.Error("expiry sweep failed", zap.Error(err))
	}
	report.Expired = expired

	o.publishDigest(ctx, created, log)

	report.FinishedAt = o.now()
	metrics.RecordBatch(report, fatal)
	log.Info("batch finished",
		zap.Int("scanned", len(report.Scanned)),
		zap.Int("total_found", report.TotalFound),
		zap.Int("new", report.NewCount),
		zap.Int("updated", report.UpdatedCount),
		zap.Int64("expired", report.Expired),
		zap.Int("errors", len(report.Errors)),
	)
	return report, fatal
}

func (o *Orchestrator) resolve(ids []string, report *domain.RunReport, log *zap.Logger) []*job {
	jobs := make([]*job, 0, len(ids))
	for _, id := range ids {
		desc, ok := o.portals.Lookup(id)
		if !ok {
			log.Warn("portal not configured, skipping", zap.String("portal_id", id))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		ex, err := o.extractors.Resolve(id)
		if err != nil {
			log.Warn("no extractor registered, skipping", zap.String("portal_id", id), zap.Error(err))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		jobs = append(jobs, &job{desc: desc, extractor: ex})
	}
	return jobs
}

// runBrowserJobs runs browser sources one at a time on a session acquired
// on first use and released before returning.
func (o *Orchestrator) runBrowserJobs(ctx context.Context, jobs []*job, started time.Time, log *zap.Logger) error {
	var (
		session ports.BrowserSession
		fatal   error
	)
	defer func() {
		if session == nil {
			return
		}
		if err := session.Close(); err != nil {
			log.Warn("browser session close failed", zap.Error(err))
		}
	}()

	for _, j := range jobs {
		if !j.desc.NeedsBrowser {
			continue
		}
		if fatal != nil {
			j.err = fatal
			continue
		}
		if session == nil {
			if o.browsers == nil {
				fatal = eris.Wrap(ErrFatalBatch, "no browser provider configured")
				j.err = fatal
				continue
			}
			s, err := o.browsers.Acquire(ctx)
			if err != nil {
				log.Error("browser session unavailable", zap.Error(err))
				fatal = eris.Wrapf(ErrFatalBatch, "acquire browser session: %v", err)
				j.err = fatal
				continue
			}
			session = s
		}
		j.records, j.err = o.extract(ctx, j, session, started, log)
	}
	return fatal
}

func (o *Orchestrator) extract(ctx context.Context, j *job, browser scanner.Browser, now time.Time, log *zap.Logger) ([]domain.RawTender, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	plog := log.With(zap.String("portal", j.desc.Name))
	plog.Info("scanning portal")
	sess := scanner.Session{
		Portal:  j.desc,
		HTTP:    o.http,
		Browser: browser,
		Now:     now,
		Logger:  plog,
	}
	records, err := j.extractor.Extract(ctx, sess)
	metrics.RecordSource(j.desc.Name, err)
	if err != nil {
		plog.Error("portal scan failed", zap.Error(err))
		return nil, err
	}
	return records, nil
}

// reconcile runs one source's records through enrichment and the store.
// It returns the tenders the store created.
func (o *Orchestrator) reconcile(ctx context.Context, j *job, report *domain.RunReport, log *zap.Logger) []domain.Tender {
	name := j.desc.Name
	if j.err != nil {
		report.AddError(name, j.err)
		return nil
	}

	plog := log.With(zap.String("portal", name))
	res := report.Portal(name)
	res.Found = len(j.records)
	report.TotalFound += len(j.records)

	var created []domain.Tender
	for _, raw := range j.records {
		if err := raw.Validate(o.portals.KnownName); err != nil {
			plog.Debug("dropping malformed record", zap.String("tender_id", raw.ExternalID), zap.Error(err))
			res.Dropped++
			continue
		}
		tender := o.enricher.Enrich(raw)
		outcome, err := o.store.Upsert(ctx, tender)
		if err != nil {
			plog.Error("upsert failed", zap.String("tender_id", raw.ExternalID), zap.Error(err))
			res.StoreErrors++
			continue
		}
		report.Record(name, outcome)
		metrics.RecordOutcome(name, outcome)
		if outcome == domain.OutcomeCreated {
			created = append(created, tender)
		}
	}
	report.Scanned = append(report.Scanned, j.desc.ID)
	return created
}

func (o *Orchestrator) publishDigest(ctx context.Context, created []domain.Tender, log *zap.Logger) {
	if o.notifier == nil {
		return
	}
	msg := BuildDigest(created)
	if msg == "" {
		return
	}
	if err := o.notifier.PublishDigest(ctx, msg); err != nil {
		log.Warn("digest delivery failed", zap.Error(err))
	}
}

// BuildDigest formats newly created high-priority tenders. It returns ""
// when there is nothing to announce.
func BuildDigest(created []domain.Tender) string {
	var b strings.Builder
	for _, t := range created {
		if t.Priority != domain.PriorityHigh {
			continue
		}
		fmt.Fprintf(&b, "- %s\n%s | %s\n", t.Title, t.SourceName, t.Organization)
		if t.Value > 0 {
			fmt.Fprintf(&b, "Value: $%.0f\n", t.Value)
		}
		if t.ClosingAt != nil {
			fmt.Fprintf(&b, "Closes: %s\n", t.ClosingAt.Format("2006-01-02"))
		}
		if len(t.MatchedOfferings) > 0 {
			fmt.Fprintf(&b, "Courses: %s\n", strings.Join(t.MatchedOfferings, ", "))
		}
		fmt.Fprintf(&b, "%s\n\n", t.SourceURL)
	}
	if b.Len() == 0 {
		return ""
	}
	return "New high-priority tenders\n\n" + b.String()
}

