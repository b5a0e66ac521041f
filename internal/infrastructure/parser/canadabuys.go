package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/url"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/scanner"
)

const canadaBuysNoticeURL = "https://canadabuys.canada.ca/en/tender-opportunities/"

type canadaBuysTenderRow struct {
	ReferenceNumber    string `csv:"reference_number"`
	SolicitationNumber string `csv:"solicitation_number"`
	TitleEN            string `csv:"title_en"`
	Title              string `csv:"title"`
	OrgNameEN          string `csv:"org_name_en"`
	DepartmentEN       string `csv:"department_en"`
	ContractValue      string `csv:"contract_value"`
	EstimatedValue     string `csv:"estimated_value"`
	DateClosing        string `csv:"date_closing"`
	ClosingDate        string `csv:"closing_date"`
	PublicationDate    string `csv:"publication_date"`
	DatePosted         string `csv:"date_posted"`
	DescriptionEN      string `csv:"description_en"`
	Description        string `csv:"description"`
	DeliveryRegionEN   string `csv:"delivery_region_en"`
	Region             string `csv:"region"`
}

type canadaBuysAwardRow struct {
	ReferenceNumber   string `csv:"reference_number"`
	DescriptionEN     string `csv:"description_en"`
	OrgNameEN         string `csv:"org_name_en"`
	ContractValue     string `csv:"contract_value"`
	ContractAwardDate string `csv:"contract_award_date"`
	PublicationDate   string `csv:"publication_date"`
	CommentsEN        string `csv:"comments_en"`
	DeliveryRegionEN  string `csv:"delivery_region_en"`
}

func first(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

func (r canadaBuysTenderRow) toRaw() domain.RawTender {
	id := first(r.ReferenceNumber, r.SolicitationNumber)
	return domain.RawTender{
		ExternalID:   id,
		Title:        first(r.TitleEN, r.Title),
		Organization: first(r.OrgNameEN, r.DepartmentEN),
		Description:  first(r.DescriptionEN, r.Description),
		Location:     first(r.DeliveryRegionEN, r.Region, "Canada"),
		Value:        ParseValue(first(r.ContractValue, r.EstimatedValue)),
		ClosingAt:    ParseDate(first(r.DateClosing, r.ClosingDate)),
		PostedAt:     ParseDate(first(r.PublicationDate, r.DatePosted)),
		SourceURL:    canadaBuysNoticeURL + url.PathEscape(id),
	}
}

func (r canadaBuysAwardRow) toRaw() domain.RawTender {
	id := clean(r.ReferenceNumber)
	return domain.RawTender{
		ExternalID:   id,
		Title:        clean(r.DescriptionEN),
		Organization: clean(r.OrgNameEN),
		Description:  clean(r.CommentsEN),
		Location:     first(r.DeliveryRegionEN, "Canada"),
		Value:        ParseValue(r.ContractValue),
		ClosingAt:    ParseDate(r.ContractAwardDate),
		PostedAt:     ParseDate(r.PublicationDate),
		SourceURL:    canadaBuysNoticeURL + url.PathEscape(id),
	}
}

// CanadaBuys reads the federal open-data CSV feeds: URLs[0] carries tender
// notices and URLs[1], when present, contract awards.
type CanadaBuys struct{}

// Extract downloads and decodes each feed. A feed that fails to download
// is logged and skipped; the source fails only when every feed fails.
func (CanadaBuys) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	if len(s.Portal.URLs) == 0 {
		return nil, eris.New("canadabuys: no feed urls")
	}

	var (
		out     []domain.RawTender
		lastErr error
		ok      int
	)
	for i, feed := range s.Portal.URLs {
		body, err := s.HTTP.Get(ctx, feed)
		if err != nil {
			lastErr = err
			s.Log().Warn("canadabuys feed unavailable", zap.String("url", feed), zap.Error(err))
			continue
		}
		ok++

		var rows []domain.RawTender
		if i == 0 {
			rows, err = decodeRows(body, canadaBuysTenderRow.toRaw, s.Log())
		} else {
			rows, err = decodeRows(body, canadaBuysAwardRow.toRaw, s.Log())
		}
		if err != nil {
			s.Log().Warn("canadabuys feed truncated", zap.String("url", feed), zap.Error(err))
		}
		out = append(out, rows...)
	}
	if ok == 0 {
		return nil, eris.Wrap(lastErr, "canadabuys: all feeds failed")
	}
	return out, nil
}

// decodeRows yields every decodable row. Rows without an id or with a bad
// field count are skipped. A CSV syntax error stops decoding and is
// returned with the rows read so far.
func decodeRows[T any](body []byte, convert func(T) domain.RawTender, log *zap.Logger) ([]domain.RawTender, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "read csv header")
	}

	var out []domain.RawTender
	for {
		var row T
		err := dec.Decode(&row)
		if err == io.EOF {
			return out, nil
		}
		var syntax *csv.ParseError
		if errors.As(err, &syntax) {
			return out, eris.Wrap(err, "decode csv row")
		}
		if err != nil {
			log.Debug("skipping malformed csv row", zap.Error(err))
			continue
		}
		raw := convert(row)
		if raw.ExternalID == "" {
			log.Debug("skipping csv row without reference number")
			continue
		}
		out = append(out, raw)
	}
}
