package domain

import "time"

// UpsertOutcome tells the caller what the store did with a record.
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota + 1
	OutcomeUpdated
	OutcomeUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// PortalResult aggregates counters for one portal within a batch.
type PortalResult struct {
	Found       int `json:"found"`
	New         int `json:"new"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Dropped     int `json:"dropped"`
	StoreErrors int `json:"store_errors"`
}

// PortalError records a total source failure.
type PortalError struct {
	Portal string `json:"portal"`
	Error  string `json:"error"`
}

// RunReport summarizes one batch. UpdatedCount merges updated and
// unchanged records; ByPortal keeps them apart.
type RunReport struct {
	RunID        string                   `json:"run_id"`
	Requested    []string                 `json:"requested"`
	Scanned      []string                 `json:"scanned"`
	TotalFound   int                      `json:"total_found"`
	NewCount     int                      `json:"new_tenders"`
	UpdatedCount int                      `json:"updated_tenders"`
	Expired      int64                    `json:"expired"`
	Errors       []PortalError            `json:"errors"`
	ByPortal     map[string]*PortalResult `json:"by_portal"`
	Skipped      []string                 `json:"skipped,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
}

// NewRunReport prepares an empty report.
func NewRunReport(runID string, requested []string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		Requested: append([]string{}, requested...),
		Scanned:   []string{},
		Errors:    []PortalError{},
		ByPortal:  map[string]*PortalResult{},
		StartedAt: startedAt,
	}
}

// Portal returns the result bucket for a portal, creating it on first use.
func (r *RunReport) Portal(name string) *PortalResult {
	if res, ok := r.ByPortal[name]; ok {
		return res
	}
	res := &PortalResult{}
	r.ByPortal[name] = res
	return res
}

// AddError records a failed portal.
func (r *RunReport) AddError(portal string, err error) {
	r.Errors = append(r.Errors, PortalError{Portal: portal, Error: err.Error()})
}

// Record applies one upsert outcome to the per-portal and aggregate counters.
func (r *RunReport) Record(portal string, outcome UpsertOutcome) {
	res := r.Portal(portal)
	switch outcome {
	case OutcomeCreated:
		res.New++
		r.NewCount++
	case OutcomeUpdated:
		res.Updated++
		r.UpdatedCount++
	case OutcomeUnchanged:
		res.Unchanged++
		r.UpdatedCount++
	}
}
