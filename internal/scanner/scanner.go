package scanner

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
)

// ErrUnknownSource is returned when a portal id has no extractor.
var ErrUnknownSource = eris.New("unknown source")

// Fetcher is the plain HTTP capability handed to extractors.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Browser is the remote browser capability handed to extractors. The
// orchestrator owns its lifetime; extractors never quit it.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, css string, timeout time.Duration) error
	PageSource(ctx context.Context) (string, error)
}

// Session carries everything one extractor invocation may use. Browser is
// nil for portals that do not declare the need for one.
type Session struct {
	Portal  domain.PortalDescriptor
	HTTP    Fetcher
	Browser Browser
	Now     time.Time
	Logger  *zap.Logger
}

// Log returns the session logger, never nil.
func (s Session) Log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Extractor pulls raw tenders from one upstream portal. It skips malformed
// items and returns an error only when the source as a whole failed.
type Extractor interface {
	Extract(ctx context.Context, s Session) ([]domain.RawTender, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, s Session) ([]domain.RawTender, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, s Session) ([]domain.RawTender, error) {
	return f(ctx, s)
}

// Entry is one dispatch-table slot: either a concrete extractor or an alias
// to another slot.
type Entry struct {
	extractor Extractor
	alias     string
}

// Direct binds an id to an extractor.
func Direct(e Extractor) Entry {
	return Entry{extractor: e}
}

// AliasOf binds an id to whatever another id resolves to.
func AliasOf(id string) Entry {
	return Entry{alias: id}
}

// Table is the static dispatch table, keyed by portal id.
type Table map[string]Entry

// Resolve flattens aliases into a Registry. Dangling or cyclic aliases fail.
func (t Table) Resolve() (*Registry, error) {
	reg := NewRegistry()
	for id := range t {
		ex, err := t.follow(id)
		if err != nil {
			return nil, err
		}
		reg.Register(id, ex)
	}
	return reg, nil
}

func (t Table) follow(id string) (Extractor, error) {
	visited := map[string]struct{}{}
	cur := id
	for {
		if _, loop := visited[cur]; loop {
			return nil, eris.Errorf("alias cycle at %q", id)
		}
		visited[cur] = struct{}{}

		entry, ok := t[cur]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownSource, "alias %q points to %q", id, cur)
		}
		if entry.alias == "" {
			if entry.extractor == nil {
				return nil, eris.Errorf("entry %q has no extractor", cur)
			}
			return entry.extractor, nil
		}
		cur = entry.alias
	}
}

// Registry is the resolved, flat id to extractor map.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]Extractor{}}
}

// Register adds or replaces an extractor.
func (r *Registry) Register(id string, ex Extractor) {
	if r.extractors == nil {
		r.extractors = map[string]Extractor{}
	}
	r.extractors[id] = ex
}

// Resolve returns the extractor for id or ErrUnknownSource.
func (r *Registry) Resolve(id string) (Extractor, error) {
	if ex, ok := r.extractors[id]; ok {
		return ex, nil
	}
	return nil, eris.Wrapf(ErrUnknownSource, "source %q is not registered", id)
}

// Wrap applies decorate to every registered extractor.
func (r *Registry) Wrap(decorate func(id string, ex Extractor) Extractor) {
	for id, ex := range r.extractors {
		r.extractors[id] = decorate(id, ex)
	}
}
