package parser

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/scanner"
)

var peiClosingExpr = regexp.MustCompile(`Closing[:\s]+([A-Za-z]+ \d{1,2}, \d{4})`)

// Manitoba lists tender links on the provincial tenders page.
type Manitoba struct{}

// Extract implements scanner.Extractor.
func (Manitoba) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	page := pageURL(s.Portal.URLs, 0)
	doc, err := fetchDocument(ctx, s, page)
	if err != nil {
		return nil, err
	}

	posted := s.Now.UTC()
	var out []domain.RawTender
	doc.Find(`a[href*="/tenders/tender_"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id := strings.TrimSuffix(path.Base(strings.TrimRight(href, "/")), ".html")
		if id == "" || id == "." {
			return
		}
		out = append(out, domain.RawTender{
			ExternalID:   id,
			Title:        clean(a.Text()),
			Organization: "Manitoba Government",
			Location:     "Manitoba",
			PostedAt:     &posted,
			SourceURL:    resolve(page, href),
		})
	})
	return out, nil
}

// Winnipeg reads the City of Winnipeg bid opportunity table.
type Winnipeg struct{}

// Extract implements scanner.Extractor.
func (Winnipeg) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	page := pageURL(s.Portal.URLs, 0)
	doc, err := fetchDocument(ctx, s, page)
	if err != nil {
		return nil, err
	}

	var out []domain.RawTender
	doc.Find("table.bidopptable tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if i == 0 || cells.Length() < 4 {
			return
		}
		rec := domain.RawTender{
			ExternalID:   clean(cells.Eq(0).Text()),
			Title:        clean(cells.Eq(1).Text()),
			Organization: "City of Winnipeg",
			Location:     "Winnipeg",
			PostedAt:     ParseDate(cells.Eq(2).Text()),
			ClosingAt:    ParseDate(cells.Eq(3).Text()),
			SourceURL:    page,
		}
		if href, ok := cells.Eq(1).Find("a").Attr("href"); ok {
			rec.SourceURL = resolve(page, href)
		}
		out = append(out, rec)
	})
	return out, nil
}

// PEI reads the Prince Edward Island tender search results. Results carry
// no stable id when data-id is absent; those get a clock-based id.
type PEI struct{}

// Extract implements scanner.Extractor.
func (PEI) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	page := pageURL(s.Portal.URLs, 1)
	doc, err := fetchDocument(ctx, s, page)
	if err != nil {
		return nil, err
	}

	posted := s.Now.UTC()
	var out []domain.RawTender
	doc.Find("li.search-result").Each(func(i int, item *goquery.Selection) {
		title := item.Find("h3.title").First()
		if title.Length() == 0 {
			return
		}
		id, ok := item.Attr("data-id")
		if !ok || strings.TrimSpace(id) == "" {
			id = domain.SyntheticID("PEI", s.Now, i)
		}
		desc := clean(item.Find("p.search-snippet").First().Text())
		rec := domain.RawTender{
			ExternalID:   id,
			Title:        clean(title.Text()),
			Organization: "PEI Government",
			Location:     "Prince Edward Island",
			Description:  desc,
			PostedAt:     &posted,
		}
		if href, ok := title.Find("a").Attr("href"); ok {
			rec.SourceURL = resolve(page, href)
		}
		if m := peiClosingExpr.FindStringSubmatch(desc); m != nil {
			rec.ClosingAt = ParseDate(m[1])
		}
		out = append(out, rec)
	})
	return out, nil
}

// Newfoundland reads the NL commodity search for training tenders.
type Newfoundland struct{}

// Extract implements scanner.Extractor.
func (Newfoundland) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	page := pageURL(s.Portal.URLs, 1)
	doc, err := fetchDocument(ctx, s, page)
	if err != nil {
		return nil, err
	}

	var out []domain.RawTender
	doc.Find("div.tender-list div.tender-item").Each(func(_ int, item *goquery.Selection) {
		id, _ := item.Attr("data-tender-id")
		org := clean(item.Find("span.dept").First().Text())
		if org == "" {
			org = "NL Government"
		}
		rec := domain.RawTender{
			ExternalID:   strings.TrimSpace(id),
			Title:        clean(item.Find("h3").First().Text()),
			Organization: org,
			Location:     "Newfoundland and Labrador",
			Description:  clean(item.Find("p.desc").First().Text()),
			Value:        ParseValue(item.Find("span.value").First().Text()),
			ClosingAt:    ParseDate(item.Find("span.closing").First().Text()),
			PostedAt:     ParseDate(item.Find("span.posted").First().Text()),
		}
		if href, ok := item.Find("a").Attr("href"); ok {
			rec.SourceURL = resolve(page, href)
		}
		out = append(out, rec)
	})
	return out, nil
}
