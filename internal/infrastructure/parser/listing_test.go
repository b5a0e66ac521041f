package parser

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/scanner"
)

type fakeBrowser struct {
	source  string
	visited []string
	waited  []string
}

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.visited = append(b.visited, url)
	return nil
}

func (b *fakeBrowser) WaitFor(_ context.Context, css string, _ time.Duration) error {
	b.waited = append(b.waited, css)
	return nil
}

func (b *fakeBrowser) PageSource(context.Context) (string, error) {
	return b.source, nil
}

func browserSession(b scanner.Browser, d domain.PortalDescriptor) scanner.Session {
	return scanner.Session{Portal: d, Browser: b, Now: testNow, Logger: zap.NewNop()}
}

func TestListingLabelledCards(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{source: `
	<div class="results">
	  <div class="row">
	    <a class="search-result-title" href="/open-solicitation/abc">Leadership coaching program</a>
	    <div class="col-sm-12">Reference Number: MX-100</div>
	    <div class="col-sm-12">Published: 2026-01-05</div>
	    <div class="col-sm-12">Closing Date: 2026-02-10</div>
	    <div class="col-sm-12">Solicitation by: Public Services</div>
	  </div>
	  <div class="row">
	    <a class="search-result-title" href="/open-solicitation/def">Training without reference</a>
	  </div>
	</div>`}

	d := domain.PortalDescriptor{ID: "merx", Name: "MERX", URLs: []string{"https://www.merx.com/", "https://www.merx.com/search"}}
	out, err := Listing{Spec: merxSpec}.Extract(context.Background(), browserSession(b, d))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if b.visited[0] != "https://www.merx.com/search" {
		t.Fatalf("unexpected page: %v", b.visited)
	}
	rec := out[0]
	if rec.ExternalID != "MX-100" || rec.Organization != "Public Services" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SourceURL != "https://www.merx.com/open-solicitation/abc" {
		t.Fatalf("unexpected url: %s", rec.SourceURL)
	}
	if rec.ClosingAt == nil || rec.ClosingAt.Month() != time.February {
		t.Fatalf("unexpected closing: %v", rec.ClosingAt)
	}
	if len(out[1].ExternalID) < len("MERX_") || out[1].ExternalID[:5] != "MERX_" {
		t.Fatalf("expected synthetic id, got %q", out[1].ExternalID)
	}
}

func TestListingTableRowsWithOrgOption(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{source: `
	<table>
	  <tr class="resultat">
	    <td class="numero">S-2026-7</td>
	    <td class="description"><a href="/avis/7">Formation en gestion de projet</a></td>
	    <td class="organisme">Ville de Montréal</td>
	    <td class="dateOuverture">2026-01-20</td>
	    <td class="dateFermeture">2026-02-28</td>
	  </tr>
	</table>`}

	d := portal.Default()
	montreal, ok := d.Lookup("montreal")
	if !ok {
		t.Fatal("montreal not registered")
	}
	out, err := Listing{Spec: listings["seao"]}.Extract(context.Background(), browserSession(b, montreal))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := b.visited[0]; got != "https://www.seao.ca/OpportunityPublication/rechercheAvancee.aspx?org=montreal" {
		t.Fatalf("unexpected page: %s", got)
	}
	if len(out) != 1 || out[0].ExternalID != "S-2026-7" || out[0].Organization != "Ville de Montréal" {
		t.Fatalf("unexpected records: %+v", out)
	}
	if out[0].SourceURL != "https://www.seao.ca/avis/7" {
		t.Fatalf("unexpected url: %s", out[0].SourceURL)
	}
}

func TestListingColumns(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{source: `
	<table>
	  <tr class="tender-row"><td>OT-1</td><td><a href="/Module/Tenders/en/Tender/Detail/1">Coaching services</a></td><td>2026-01-02</td><td>2026-01-30</td></tr>
	  <tr class="tender-row"><td>short</td></tr>
	</table>`}
	ottawa, _ := portal.Default().Lookup("ottawa")

	out, err := Listing{Spec: listings["ottawa"]}.Extract(context.Background(), browserSession(b, ottawa))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Organization != "City of Ottawa" || out[0].Location != "Ottawa" {
		t.Fatalf("unexpected record: %+v", out[0])
	}
	if out[0].SourceURL != "https://ottawa.bidsandtenders.ca/Module/Tenders/en/Tender/Detail/1" {
		t.Fatalf("unexpected url: %s", out[0].SourceURL)
	}
	if len(b.waited) != 1 || b.waited[0] != "tr.tender-row" {
		t.Fatalf("expected wait on item selector, got %v", b.waited)
	}
}

func TestListingMustContain(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{source: `
	<div class="row"><a class="search-result-title" href="/a">Ontario Health education</a></div>
	<div class="row"><a class="search-result-title" href="/b">Other buyer training</a></div>`}
	mohltc, _ := portal.Default().Lookup("mohltc")

	out, err := Listing{Spec: listings["mohltc"]}.Extract(context.Background(), browserSession(b, mohltc))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out) != 1 || out[0].Organization != "Ontario Health" {
		t.Fatalf("unexpected records: %+v", out)
	}
}

func TestListingNeedsBrowser(t *testing.T) {
	t.Parallel()

	d := domain.PortalDescriptor{ID: "merx", URLs: []string{"https://www.merx.com/"}}
	_, err := Listing{Spec: merxSpec}.Extract(context.Background(), scanner.Session{Portal: d})
	if err == nil {
		t.Fatal("expected error without a browser")
	}
}

func TestDefaultTableCoversRegistry(t *testing.T) {
	t.Parallel()

	reg := portal.Default()
	table := DefaultTable()
	if missing := Missing(reg, table); len(missing) != 0 {
		t.Fatalf("portals without extractor: %+v", missing)
	}
	resolved, err := table.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, id := range reg.IDs() {
		if _, err := resolved.Resolve(id); err != nil {
			t.Fatalf("resolve %s: %v", id, err)
		}
	}
}
