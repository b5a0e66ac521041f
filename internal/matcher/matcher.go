// Package matcher attaches offerings and a priority tier to classified tenders.
package matcher

import (
	"math"
	"strings"
	"time"

	"TenderScanner/internal/classify"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/taxonomy"
)

const (
	highValue   = 1_000_000
	mediumValue = 500_000
	highDays    = 7
	mediumDays  = 14
	topKeywords = 5
	minTokenLen = 3
)

// Engine enriches raw records: classification, keywords, offerings, priority.
type Engine struct {
	classifier *classify.Classifier
	tax        *taxonomy.Taxonomy
	now        func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for priority.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires an engine around a classifier.
func New(classifier *classify.Classifier, opts ...Option) *Engine {
	if classifier == nil {
		classifier = classify.New(nil)
	}
	e := &Engine{
		classifier: classifier,
		tax:        classifier.Taxonomy(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich turns a raw record into a canonical tender.
func (e *Engine) Enrich(raw domain.RawTender) domain.Tender {
	text := raw.Text()
	t := domain.Tender{
		RawTender:  raw,
		Categories: e.classifier.Classify(text),
		Keywords:   e.classifier.ExtractKeywords(text),
	}
	t.MatchedOfferings = e.MatchOfferings(t)
	t.Priority = CalculatePriority(t, e.now())
	return t
}

// MatchOfferings returns up to domain.MaxOfferings offerings from the
// record's assigned categories, first matches first.
func (e *Engine) MatchOfferings(t domain.Tender) []string {
	text := classify.Normalize(t.Title + " " + t.Description + " " + strings.Join(t.Keywords, " "))

	seen := map[string]struct{}{}
	out := []string{}
	for _, tag := range t.Categories {
		cat, ok := e.tax.Lookup(tag)
		if !ok {
			continue
		}
		categoryHit := containsAny(text, cat.TopKeywords(topKeywords))
		for _, offering := range cat.Offerings {
			if _, dup := seen[offering]; dup {
				continue
			}
			if !offeringMatches(text, offering) && !categoryHit {
				continue
			}
			seen[offering] = struct{}{}
			out = append(out, offering)
			if len(out) == domain.MaxOfferings {
				return out
			}
		}
	}
	return out
}

func offeringMatches(text, offering string) bool {
	name := strings.ToLower(offering)
	if strings.Contains(text, name) {
		return true
	}
	for _, token := range strings.Fields(name) {
		if len([]rune(token)) > minTokenLen && strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// DaysUntil is floor(closing - now) in whole days; negative once closed.
func DaysUntil(closing, now time.Time) int {
	return int(math.Floor(closing.Sub(now).Hours() / 24))
}

// CalculatePriority applies the tier rules in order; the first match wins.
func CalculatePriority(t domain.Tender, now time.Time) domain.Priority {
	if t.ClosingAt == nil {
		return domain.PriorityLow
	}
	days := DaysUntil(*t.ClosingAt, now)

	switch {
	case t.Value > highValue,
		days < highDays,
		len(t.MatchedOfferings) >= 3,
		len(t.Categories) >= 2:
		return domain.PriorityHigh
	case t.Value > mediumValue,
		days < mediumDays,
		len(t.MatchedOfferings) >= 1:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
