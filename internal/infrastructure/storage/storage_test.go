package storage

import (
	"time"

	"TenderScanner/internal/domain"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func at(days int) *time.Time {
	t := testNow.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}

func sampleTender(id string) domain.Tender {
	return domain.Tender{
		RawTender: domain.RawTender{
			ExternalID:   id,
			SourceName:   "CanadaBuys",
			Title:        "Agile coaching services",
			Organization: "Public Services and Procurement Canada",
			Description:  "Scrum and agile transformation support",
			Location:     "Ottawa",
			Value:        250000,
			PostedAt:     at(-2),
			ClosingAt:    at(10),
			SourceURL:    "https://canadabuys.canada.ca/en/tender-opportunities/" + id,
		},
		Categories:       []string{"agile-scrum"},
		Keywords:         []string{"agile", "scrum"},
		MatchedOfferings: []string{"Certified ScrumMaster (CSM)"},
		Priority:         domain.PriorityMedium,
	}
}
