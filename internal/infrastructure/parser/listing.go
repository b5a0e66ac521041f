package parser

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/scanner"
)

const waitTimeout = 10 * time.Second

// Columns maps table cells to fields for row-based listings. -1 disables
// a column.
type Columns struct {
	ID           int
	Title        int
	Organization int
	Posted       int
	Closing      int
	Value        int
}

// Labels maps "Label: value" detail blocks to fields for card listings.
type Labels struct {
	Block        string
	ID           string
	Organization string
	Posted       string
	Closing      string
	Value        string
}

// ListingSpec describes one browser-rendered result page.
type ListingSpec struct {
	// URL overrides the descriptor URL; URLIndex picks one otherwise.
	URL      string
	URLIndex int
	// OrgOption names a descriptor option sent as the OrgParam query value.
	OrgOption string
	OrgParam  string

	Wait string
	Item string

	Columns *Columns

	ID           string
	IDAttr       string
	Title        string
	Link         string
	Organization string
	Posted       string
	Closing      string
	Value        string
	Description  string
	Labels       *Labels

	DefaultOrganization string
	Location            string
	MustContain         string
	SyntheticPrefix     string
}

// Listing is a selector-driven extractor over a shared browser session.
type Listing struct {
	Spec ListingSpec
}

// Extract implements scanner.Extractor.
func (l Listing) Extract(ctx context.Context, s scanner.Session) ([]domain.RawTender, error) {
	page, err := l.pageURL(s.Portal)
	if err != nil {
		return nil, err
	}
	doc, err := browserDocument(ctx, s, page, l.Spec.Wait)
	if err != nil {
		return nil, err
	}
	return l.parse(doc, page, s.Now), nil
}

func (l Listing) pageURL(d domain.PortalDescriptor) (string, error) {
	raw := l.Spec.URL
	if raw == "" {
		raw = pageURL(d.URLs, l.Spec.URLIndex)
	}
	if raw == "" {
		return "", eris.Errorf("portal %s has no url", d.ID)
	}
	if l.Spec.OrgOption == "" || d.Option(l.Spec.OrgOption) == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "portal %s url", d.ID)
	}
	q := u.Query()
	q.Set(l.Spec.OrgParam, d.Option(l.Spec.OrgOption))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l Listing) parse(doc *goquery.Document, page string, now time.Time) []domain.RawTender {
	var out []domain.RawTender
	doc.Find(l.Spec.Item).Each(func(i int, item *goquery.Selection) {
		if l.Spec.MustContain != "" && !strings.Contains(item.Text(), l.Spec.MustContain) {
			return
		}
		rec, ok := l.item(item, page)
		if !ok {
			return
		}
		if rec.ExternalID == "" && l.Spec.SyntheticPrefix != "" {
			rec.ExternalID = domain.SyntheticID(l.Spec.SyntheticPrefix, now, i)
		}
		if rec.Organization == "" {
			rec.Organization = l.Spec.DefaultOrganization
		}
		rec.Location = l.Spec.Location
		out = append(out, rec)
	})
	return out
}

func (l Listing) item(item *goquery.Selection, page string) (domain.RawTender, bool) {
	if c := l.Spec.Columns; c != nil {
		return l.row(item, page, *c)
	}

	title := item.Find(l.Spec.Title).First()
	if title.Length() == 0 {
		return domain.RawTender{}, false
	}
	rec := domain.RawTender{Title: clean(title.Text()), SourceURL: page, ExternalID: text(item, l.Spec.ID)}
	if l.Spec.IDAttr != "" {
		if id, ok := item.Attr(l.Spec.IDAttr); ok {
			rec.ExternalID = strings.TrimSpace(id)
		}
	}
	link := title
	if l.Spec.Link != "" {
		link = item.Find(l.Spec.Link).First()
	}
	if href, ok := link.Attr("href"); ok {
		rec.SourceURL = resolve(page, href)
	} else if href, ok := link.Find("a").Attr("href"); ok {
		rec.SourceURL = resolve(page, href)
	}
	rec.Organization = text(item, l.Spec.Organization)
	rec.Description = text(item, l.Spec.Description)
	rec.PostedAt = ParseDate(text(item, l.Spec.Posted))
	rec.ClosingAt = ParseDate(text(item, l.Spec.Closing))
	rec.Value = ParseValue(text(item, l.Spec.Value))

	if lb := l.Spec.Labels; lb != nil {
		item.Find(lb.Block).Each(func(_ int, block *goquery.Selection) {
			t := clean(block.Text())
			switch {
			case lb.ID != "" && strings.Contains(t, lb.ID):
				rec.ExternalID = labelValue(t)
			case lb.Posted != "" && strings.Contains(t, lb.Posted):
				rec.PostedAt = ParseDate(labelValue(t))
			case lb.Closing != "" && strings.Contains(t, lb.Closing):
				rec.ClosingAt = ParseDate(labelValue(t))
			case lb.Organization != "" && strings.Contains(t, lb.Organization):
				rec.Organization = labelValue(t)
			case lb.Value != "" && strings.Contains(t, lb.Value):
				rec.Value = ParseValue(labelValue(t))
			}
		})
	}
	return rec, true
}

func (l Listing) row(item *goquery.Selection, page string, c Columns) (domain.RawTender, bool) {
	cells := item.Find("td")
	need := max(c.ID, c.Title, c.Organization, c.Posted, c.Closing, c.Value) + 1
	if cells.Length() < need {
		return domain.RawTender{}, false
	}
	cell := func(i int) string {
		if i < 0 {
			return ""
		}
		return clean(cells.Eq(i).Text())
	}
	rec := domain.RawTender{
		ExternalID:   cell(c.ID),
		Title:        cell(c.Title),
		Organization: cell(c.Organization),
		PostedAt:     ParseDate(cell(c.Posted)),
		ClosingAt:    ParseDate(cell(c.Closing)),
		Value:        ParseValue(cell(c.Value)),
		SourceURL:    page,
	}
	if c.Title >= 0 {
		if href, ok := cells.Eq(c.Title).Find("a").Attr("href"); ok {
			rec.SourceURL = resolve(page, href)
		}
	}
	return rec, true
}

func text(sel *goquery.Selection, css string) string {
	if css == "" {
		return ""
	}
	return clean(sel.Find(css).First().Text())
}
