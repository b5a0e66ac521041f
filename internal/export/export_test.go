package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/ports"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "tenders_20250310.csv", FileName(time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)))
}

func TestWrite_HeaderAndColumns(t *testing.T) {
	closing := time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := Write(&buf, []domain.StoredTender{{
		Tender: domain.Tender{
			RawTender: domain.RawTender{
				ExternalID: "WS-1", SourceName: "MERX", Title: "Training, \"Agile\"",
				Value: 1500000, ClosingAt: &closing, SourceURL: "https://www.merx.com/x",
			},
			MatchedOfferings: []string{"ICAgile Certified Professional (ICP)", "Certified ScrumMaster (CSM)"},
			Priority:         domain.PriorityHigh,
		},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "tender_id,title,organization,portal,value,closing_date,location,priority,matching_courses,url", lines[0])
	assert.Equal(t, `WS-1,"Training, ""Agile""",,MERX,1500000,2025-04-01,,high,ICAgile Certified Professional (ICP);Certified ScrumMaster (CSM),https://www.merx.com/x`, lines[1])
}

func TestRead_Empty(t *testing.T) {
	rows, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// Exporting active rows from the store and reading them back recovers
// the identifying columns.
func TestRoundTrip_ThroughStore(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	st, err := storage.NewSQLite(filepath.Join(t.TempDir(), "export.db"), storage.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	closing := now.AddDate(0, 0, 14)
	inputs := []domain.Tender{
		{RawTender: domain.RawTender{ExternalID: "A-1", SourceName: "CanadaBuys", Title: "PMP, PRINCE2; training", Value: 12345.67, ClosingAt: &closing}, Priority: domain.PriorityHigh},
		{RawTender: domain.RawTender{ExternalID: "B-2", SourceName: "City of Ottawa", Title: "Cloud migration", Value: 0}, Priority: domain.PriorityLow},
	}
	for _, in := range inputs {
		_, err := st.Upsert(ctx, in)
		require.NoError(t, err)
	}

	stored, err := st.List(ctx, ports.ListFilter{ActiveOnly: true, Limit: -1})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, stored))

	rows, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(stored))
	for i, row := range rows {
		assert.Equal(t, stored[i].ExternalID, row.TenderID)
		assert.Equal(t, stored[i].Title, row.Title)
		assert.Equal(t, stored[i].SourceName, row.Portal)
		assert.Equal(t, string(stored[i].Priority), row.Priority)
		v, err := row.Amount()
		require.NoError(t, err)
		assert.Equal(t, stored[i].Value, v)
	}
}
