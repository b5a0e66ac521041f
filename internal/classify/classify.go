// Package classify maps free text onto taxonomy categories and keywords.
package classify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/taxonomy"
)

// MinCategoryHits is the number of distinct keyword hits a category needs.
const MinCategoryHits = 2

// Classifier is stateless apart from the taxonomy it reads.
type Classifier struct {
	tax *taxonomy.Taxonomy
}

// New builds a classifier over tax, or the embedded taxonomy when nil.
func New(tax *taxonomy.Taxonomy) *Classifier {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Classifier{tax: tax}
}

// Taxonomy exposes the registry the classifier reads.
func (c *Classifier) Taxonomy() *taxonomy.Taxonomy {
	return c.tax
}

// Normalize composes accents and lower-cases text before substring matching.
func Normalize(text string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(text))
}

// Classify returns categories with at least MinCategoryHits keyword hits,
// in taxonomy order.
func (c *Classifier) Classify(text string) []domain.CategoryTag {
	lower := Normalize(text)
	tags := []domain.CategoryTag{}
	for _, cat := range c.tax.Categories() {
		hits := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= MinCategoryHits {
			tags = append(tags, cat.Name)
		}
	}
	return tags
}

// ExtractKeywords collects taxonomy keywords found in text, in taxonomy
// order, without duplicates, capped at domain.MaxKeywords.
func (c *Classifier) ExtractKeywords(text string) []string {
	lower := Normalize(text)
	seen := map[string]struct{}{}
	out := []string{}
	for _, cat := range c.tax.Categories() {
		for _, kw := range cat.Keywords {
			if _, dup := seen[kw]; dup {
				continue
			}
			if strings.Contains(lower, kw) {
				seen[kw] = struct{}{}
				out = append(out, kw)
				if len(out) == domain.MaxKeywords {
					return out
				}
			}
		}
	}
	return out
}

// IsTrainingRelated reports whether text mentions any relevance term.
func (c *Classifier) IsTrainingRelated(text string) bool {
	lower := Normalize(text)
	for _, term := range c.tax.RelevanceTerms() {
		if strings.Contains(lower, Normalize(term)) {
			return true
		}
	}
	return false
}
