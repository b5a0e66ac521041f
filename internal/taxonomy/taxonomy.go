// Package taxonomy holds the fixed category registry used to classify tenders.
package taxonomy

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultDocument []byte

// Category maps a tag to its keyword set and offering names.
type Category struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	Offerings []string `yaml:"offerings"`
}

// TopKeywords returns the first n keywords of the category.
func (c Category) TopKeywords(n int) []string {
	if n > len(c.Keywords) {
		n = len(c.Keywords)
	}
	return c.Keywords[:n]
}

// Taxonomy is immutable once built. Category order is significant.
type Taxonomy struct {
	categories []Category
	byName     map[string]int
	relevance  []string
}

type document struct {
	Categories []Category `yaml:"categories"`
	Relevance  []string   `yaml:"relevance"`
}

// Parse decodes a taxonomy document. Keywords are lower-cased.
func Parse(raw []byte) (*Taxonomy, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "decode taxonomy")
	}
	if len(doc.Categories) == 0 {
		return nil, eris.New("taxonomy has no categories")
	}

	t := &Taxonomy{byName: make(map[string]int, len(doc.Categories))}
	for _, c := range doc.Categories {
		if c.Name == "" {
			return nil, eris.New("taxonomy category without name")
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, eris.Errorf("duplicate taxonomy category %q", c.Name)
		}
		c.Keywords = lowerAll(c.Keywords)
		t.byName[c.Name] = len(t.categories)
		t.categories = append(t.categories, c)
	}
	t.relevance = lowerAll(doc.Relevance)
	return t, nil
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded taxonomy, decoded on first use.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := Parse(defaultDocument)
		if err != nil {
			panic(eris.ToString(err, true))
		}
		defaultTax = t
	})
	return defaultTax
}

// Categories returns the categories in registry order.
func (t *Taxonomy) Categories() []Category {
	return append([]Category(nil), t.categories...)
}

// Lookup returns a category by name.
func (t *Taxonomy) Lookup(name string) (Category, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Category{}, false
	}
	return t.categories[idx], true
}

// Names lists the category tags in registry order.
func (t *Taxonomy) Names() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.Name
	}
	return out
}

// RelevanceTerms returns the multilingual training-relevance terms.
func (t *Taxonomy) RelevanceTerms() []string {
	return append([]string(nil), t.relevance...)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
