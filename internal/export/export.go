// Package export renders stored tenders as CSV and reads such files back.
package export

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"TenderScanner/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	listSep    = ";"
)

// Row is one CSV line. Field order is the column order.
type Row struct {
	TenderID        string `csv:"tender_id"`
	Title           string `csv:"title"`
	Organization    string `csv:"organization"`
	Portal          string `csv:"portal"`
	Value           string `csv:"value"`
	ClosingDate     string `csv:"closing_date"`
	Location        string `csv:"location"`
	Priority        string `csv:"priority"`
	MatchingCourses string `csv:"matching_courses"`
	URL             string `csv:"url"`
}

// FileName is the attachment name for an export produced at now.
func FileName(now time.Time) string {
	return "tenders_" + now.Format("20060102") + ".csv"
}

// ToRow flattens a stored tender.
func ToRow(t domain.StoredTender) Row {
	r := Row{
		TenderID:        t.ExternalID,
		Title:           t.Title,
		Organization:    t.Organization,
		Portal:          t.SourceName,
		Value:           strconv.FormatFloat(t.Value, 'f', -1, 64),
		Location:        t.Location,
		Priority:        string(t.Priority),
		MatchingCourses: strings.Join(t.MatchedOfferings, listSep),
		URL:             t.SourceURL,
	}
	if t.ClosingAt != nil {
		r.ClosingDate = t.ClosingAt.UTC().Format(dateLayout)
	}
	return r
}

// Write encodes tenders with a header line.
func Write(w io.Writer, tenders []domain.StoredTender) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Row{}); err != nil {
		return eris.Wrap(err, "export: header")
	}
	for _, t := range tenders {
		if err := enc.Encode(ToRow(t)); err != nil {
			return eris.Wrapf(err, "export: encode %s", t.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// Read decodes a previously exported file.
func Read(r io.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "export: read header")
	}
	var rows []Row
	for {
		var row Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, eris.Wrap(err, "export: decode row")
		}
		rows = append(rows, row)
	}
}

// Offerings splits the matching_courses column.
func (r Row) Offerings() []string {
	if r.MatchingCourses == "" {
		return nil
	}
	return strings.Split(r.MatchingCourses, listSep)
}

// Amount parses the value column.
func (r Row) Amount() (float64, error) {
	v, err := strconv.ParseFloat(r.Value, 64)
	return v, eris.Wrapf(err, "export: value %q", r.Value)
}
