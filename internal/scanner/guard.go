package scanner

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
)

// DefaultItemCap bounds how many records one invocation may yield.
const DefaultItemCap = 30

// GuardOptions configures Guard.
type GuardOptions struct {
	ItemCap  int
	Relevant func(text string) bool
}

// Guard decorates an extractor so that panics become errors, records are
// stamped with the portal name, irrelevant records are discarded and the
// yield is capped.
func Guard(ex Extractor, opts GuardOptions) Extractor {
	if opts.ItemCap <= 0 {
		opts.ItemCap = DefaultItemCap
	}
	return ExtractorFunc(func(ctx context.Context, s Session) (out []domain.RawTender, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				out = nil
				err = eris.Errorf("extractor panic: %v", rec)
			}
		}()

		raw, err := ex.Extract(ctx, s)
		if err != nil {
			return nil, err
		}

		out = make([]domain.RawTender, 0, min(len(raw), opts.ItemCap))
		for _, r := range raw {
			if r.SourceName == "" {
				r.SourceName = s.Portal.Name
			}
			r.Description = domain.Truncate(r.Description, domain.MaxDescription)
			if opts.Relevant != nil && !opts.Relevant(r.Text()) {
				continue
			}
			out = append(out, r)
			if len(out) == opts.ItemCap {
				s.Log().Debug("item cap reached", zap.Int("cap", opts.ItemCap), zap.Int("available", len(raw)))
				break
			}
		}
		return out, nil
	})
}
