package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"TenderScanner/internal/domain"
)

func TestRecordSource(t *testing.T) {
	before := testutil.ToFloat64(SourceRunsTotal.WithLabelValues("MERX", "error"))
	RecordSource("MERX", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(SourceRunsTotal.WithLabelValues("MERX", "error")))
}

func TestRecordBatch_Status(t *testing.T) {
	start := time.Now()
	report := domain.NewRunReport("r1", nil, start)
	report.FinishedAt = start.Add(time.Second)
	report.AddError("MERX", errors.New("down"))

	before := testutil.ToFloat64(BatchesTotal.WithLabelValues("partial"))
	RecordBatch(report, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(BatchesTotal.WithLabelValues("partial")))
}
