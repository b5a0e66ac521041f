package domain

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func known(name string) bool { return name == "canadabuys" }

func TestPrimaryKeyDeterministic(t *testing.T) {
	t.Parallel()

	a := RawTender{SourceName: "canadabuys", ExternalID: " PW-24-001 ", Title: "one"}
	b := RawTender{SourceName: "canadabuys", ExternalID: "PW-24-001", Title: "two", Value: 10}

	assert.Equal(t, "canadabuys_PW-24-001", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, PrimaryKey("canadabuys", "PW-24-001"), a.Key())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  RawTender
		ok   bool
	}{
		{"valid", RawTender{SourceName: "canadabuys", ExternalID: "1"}, true},
		{"blank id", RawTender{SourceName: "canadabuys", ExternalID: "   "}, false},
		{"unknown source", RawTender{SourceName: "nowhere", ExternalID: "1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate(known)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidRecord))
		})
	}
}

func TestContentHashOrderIndependent(t *testing.T) {
	t.Parallel()

	closing := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Tender{
		RawTender: RawTender{
			SourceName: "canadabuys", ExternalID: "1", Title: "Agile coaching",
			ClosingAt: &closing,
		},
		Categories:       []string{"agile-scrum", "leadership"},
		Keywords:         []string{"agile", "coaching"},
		MatchedOfferings: []string{"B", "A"},
		Priority:         PriorityMedium,
	}
	shuffled := base
	shuffled.Categories = []string{"leadership", "agile-scrum"}
	shuffled.MatchedOfferings = []string{"A", "B"}
	local := closing.In(time.FixedZone("EST", -5*3600))
	shuffled.ClosingAt = &local

	assert.Equal(t, ContentHash(base), ContentHash(shuffled))

	changed := base
	changed.Title = "Agile coaching services"
	assert.NotEqual(t, ContentHash(base), ContentHash(changed))
}

func TestContentHashIgnoresNilVersusEmpty(t *testing.T) {
	t.Parallel()

	a := Tender{RawTender: RawTender{SourceName: "x", ExternalID: "1"}}
	b := a
	b.Keywords = []string{}
	b.Attachments = []AttachmentRef{}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentIDStable(t *testing.T) {
	t.Parallel()

	posted := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	first := ContentID("Leadership Training ", "PEI Finance", &posted)
	second := ContentID("leadership training", "pei finance", &posted)
	assert.Equal(t, first, second)
	assert.Len(t, first, 24)
}

func TestSyntheticIDUsesClock(t *testing.T) {
	t.Parallel()

	now := time.UnixMicro(1700000000123456)
	assert.Equal(t, "PEI_1700000000123456", SyntheticID("PEI", now, 0))
	assert.Equal(t, "PEI_1700000000123458", SyntheticID("PEI", now, 2))
}

func TestRunReportRecord(t *testing.T) {
	t.Parallel()

	r := NewRunReport("run", []string{"a"}, time.Now())
	r.Record("a", OutcomeCreated)
	r.Record("a", OutcomeUpdated)
	r.Record("a", OutcomeUnchanged)

	assert.Equal(t, 1, r.NewCount)
	assert.Equal(t, 2, r.UpdatedCount)
	assert.Equal(t, &PortalResult{New: 1, Updated: 1, Unchanged: 1}, r.ByPortal["a"])
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "éco", Truncate("écoles", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}
