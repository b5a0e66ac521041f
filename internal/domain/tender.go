package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// MaxKeywords caps the keyword list stored per tender.
const MaxKeywords = 10

// MaxOfferings caps the matched offerings stored per tender.
const MaxOfferings = 5

// MaxDescription caps description length in characters.
const MaxDescription = 1000

// ErrInvalidRecord marks records dropped before classification.
var ErrInvalidRecord = eris.New("invalid tender record")

// Priority is the coarse ranking assigned to a tender.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// CategoryTag names one taxonomy category (e.g. "agile-scrum").
type CategoryTag = string

// AttachmentRef is opaque metadata about a tender document.
type AttachmentRef struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// RawTender is the extractor output before classification.
type RawTender struct {
	ExternalID   string          `json:"tender_id"`
	SourceName   string          `json:"portal"`
	Title        string          `json:"title"`
	Organization string          `json:"organization"`
	Description  string          `json:"description"`
	Location     string          `json:"location"`
	Value        float64         `json:"value"`
	PostedAt     *time.Time      `json:"posted_date,omitempty"`
	ClosingAt    *time.Time      `json:"closing_date,omitempty"`
	SourceURL    string          `json:"tender_url"`
	DocumentsURL string          `json:"documents_url,omitempty"`
	ContactEmail string          `json:"contact_email,omitempty"`
	ContactPhone string          `json:"contact_phone,omitempty"`
	Attachments  []AttachmentRef `json:"attachments,omitempty"`
}

// Text returns the combined title and description used for matching.
func (r RawTender) Text() string {
	return r.Title + " " + r.Description
}

// Tender is the canonical, fully enriched record.
type Tender struct {
	RawTender
	Categories       []CategoryTag `json:"categories"`
	Keywords         []string      `json:"keywords"`
	MatchedOfferings []string      `json:"matching_courses"`
	Priority         Priority      `json:"priority"`
}

// StoredTender adds the storage-owned lifecycle fields.
type StoredTender struct {
	Tender
	ID            string    `json:"id"`
	Hash          string    `json:"-"`
	IsActive      bool      `json:"is_active"`
	DownloadCount int       `json:"download_count"`
	LastUpdated   time.Time `json:"last_updated"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeID trims whitespace from an externally supplied identifier.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// PrimaryKey derives the store key from the external identity.
func PrimaryKey(sourceName, externalID string) string {
	return sourceName + "_" + NormalizeID(externalID)
}

// Key returns the primary key of the record.
func (r RawTender) Key() string {
	return PrimaryKey(r.SourceName, r.ExternalID)
}

// Validate checks the record is storable: a non-empty id and a known source.
func (r RawTender) Validate(knownSource func(name string) bool) error {
	if NormalizeID(r.ExternalID) == "" {
		return eris.Wrap(ErrInvalidRecord, "empty external id")
	}
	if knownSource == nil || !knownSource(r.SourceName) {
		return eris.Wrapf(ErrInvalidRecord, "unknown source %q", r.SourceName)
	}
	return nil
}

// SyntheticID builds a fallback id for sources without stable identifiers.
// seq keeps ids from one page distinct. The id depends on the wall clock,
// so repeated runs insert duplicates instead of updating; see ContentID for
// a stable alternative.
func SyntheticID(prefix string, now time.Time, seq int) string {
	return fmt.Sprintf("%s_%d", prefix, now.UnixMicro()+int64(seq))
}

// ContentID derives a stable identifier from title, organization and posting date.
func ContentID(title, organization string, postedAt *time.Time) string {
	posted := ""
	if postedAt != nil {
		posted = postedAt.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title)) + "|" +
		strings.ToLower(strings.TrimSpace(organization)) + "|" + posted))
	return hex.EncodeToString(sum[:12])
}

type hashView struct {
	ExternalID       string          `json:"tender_id"`
	SourceName       string          `json:"portal"`
	Title            string          `json:"title"`
	Organization     string          `json:"organization"`
	Description      string          `json:"description"`
	Location         string          `json:"location"`
	Value            float64         `json:"value"`
	PostedAt         string          `json:"posted_date"`
	ClosingAt        string          `json:"closing_date"`
	SourceURL        string          `json:"tender_url"`
	DocumentsURL     string          `json:"documents_url"`
	ContactEmail     string          `json:"contact_email"`
	ContactPhone     string          `json:"contact_phone"`
	Attachments      []AttachmentRef `json:"attachments"`
	Categories       []string        `json:"categories"`
	Keywords         []string        `json:"keywords"`
	MatchedOfferings []string        `json:"matching_courses"`
	Priority         Priority        `json:"priority"`
}

// ContentHash fingerprints every canonical field. Set-valued fields are
// sorted first so their order never changes the hash.
func ContentHash(t Tender) string {
	view := hashView{
		ExternalID:       NormalizeID(t.ExternalID),
		SourceName:       t.SourceName,
		Title:            t.Title,
		Organization:     t.Organization,
		Description:      t.Description,
		Location:         t.Location,
		Value:            t.Value,
		PostedAt:         formatTime(t.PostedAt),
		ClosingAt:        formatTime(t.ClosingAt),
		SourceURL:        t.SourceURL,
		DocumentsURL:     t.DocumentsURL,
		ContactEmail:     t.ContactEmail,
		ContactPhone:     t.ContactPhone,
		Attachments:      nonNil(t.Attachments),
		Categories:       sortedCopy(t.Categories),
		Keywords:         nonNil(t.Keywords),
		MatchedOfferings: sortedCopy(t.MatchedOfferings),
		Priority:         t.Priority,
	}
	// Marshal cannot fail for this shape.
	raw, _ := json.Marshal(view)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
