package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThreshold(t *testing.T) {
	t.Parallel()

	c := New(nil)
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"single keyword", "Seeking an agile vendor", false},
		{"two keywords", "Agile delivery with a certified Scrum Master", true},
		{"upper case", "AGILE KANBAN BOARD", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tags := c.Classify(tc.text)
			if tc.want {
				assert.Contains(t, tags, "agile-scrum")
			} else {
				assert.NotContains(t, tags, "agile-scrum")
			}
		})
	}
}

func TestClassifyOrder(t *testing.T) {
	t.Parallel()

	c := New(nil)
	tags := c.Classify("Compliance audit plus PMP and PMBOK")
	assert.Equal(t, []string{"project-management", "compliance"}, tags)
}

func TestExtractKeywordsOrderAndCap(t *testing.T) {
	t.Parallel()

	c := New(nil)
	kws := c.ExtractKeywords("SQL scrum agile")
	// sql belongs to it-technical and data-analytics; it appears once.
	assert.Equal(t, []string{"sql", "agile", "scrum"}, kws)

	long := "prince2 pmp project management capm msp portfolio program management pmo agile project pmbok pmi itil cloud"
	assert.Len(t, c.ExtractKeywords(long), 10)
}

func TestIsTrainingRelated(t *testing.T) {
	t.Parallel()

	c := New(nil)
	assert.True(t, c.IsTrainingRelated("Services de formation linguistique"))
	assert.True(t, c.IsTrainingRelated("Renforcement des capacités"))
	assert.True(t, c.IsTrainingRelated("SÉMINAIRE annuel"))
	assert.False(t, c.IsTrainingRelated("Road salt supply"))
}
