package parser

import (
	"TenderScanner/internal/domain"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/scanner"
)

func table(cols Columns) *Columns { return &cols }

var merxSpec = ListingSpec{
	URLIndex: 1,
	Wait:     "a.search-result-title",
	Item:     "div.row",
	Title:    "a.search-result-title",
	Labels: &Labels{
		Block:        "div.col-sm-12",
		ID:           "Reference",
		Posted:       "Published",
		Closing:      "Closing",
		Organization: "Solicitation",
	},
	Location:        "Canada",
	SyntheticPrefix: "MERX",
}

// bidsAndTenders covers municipalities hosted on bidsandtenders.ca.
func bidsAndTenders(org, location string) ListingSpec {
	return ListingSpec{
		URLIndex:            1,
		Wait:                "tr.tender-row",
		Item:                "tr.tender-row",
		Columns:             table(Columns{ID: 0, Title: 1, Organization: -1, Posted: 2, Closing: 3, Value: -1}),
		DefaultOrganization: org,
		Location:            location,
	}
}

var listings = map[string]ListingSpec{
	"merx":     merxSpec,
	"biddingo": {
		URL:             "https://www.biddingo.com/search",
		OrgOption:       "biddingo_org",
		OrgParam:        "org",
		Wait:            "div.opportunity-card",
		Item:            "div.opportunity-card",
		IDAttr:          "data-id",
		Title:           "h3.opportunity-title",
		Link:            "a",
		Organization:    "span.organization",
		Closing:         "span.closing-date",
		Posted:          "span.posted-date",
		Description:     "p.opportunity-description",
		Location:        "Ontario",
		SyntheticPrefix: "BIDDINGO",
	},
	"bcbid": {
		URLIndex: 1,
		Wait:     "table#tblOpportunities",
		Item:     "table#tblOpportunities tr",
		Columns:  table(Columns{ID: 0, Title: 1, Organization: 2, Posted: -1, Closing: 3, Value: -1}),
		Location: "British Columbia",
	},
	"albertapurchasing": {
		URLIndex: 1,
		Wait:     "table#ContentPlaceHolder1_GridView1",
		Item:     "table#ContentPlaceHolder1_GridView1 tr",
		Columns:  table(Columns{ID: 0, Title: 1, Organization: 2, Posted: 3, Closing: 4, Value: -1}),
		Location: "Alberta",
	},
	"sasktenders": {
		URLIndex:  1,
		OrgOption: "sasktenders_org",
		OrgParam:  "org",
		Wait:      "table.search-results",
		Item:      "table.search-results tr",
		Columns:   table(Columns{ID: 0, Title: 1, Organization: 2, Posted: -1, Closing: 3, Value: -1}),
		Location:  "Saskatchewan",
	},
	"ontario": {
		URLIndex:     1,
		Wait:         "div.opportunity",
		Item:         "div.opportunity",
		IDAttr:       "data-reference",
		Title:        "a.opportunity-title",
		Organization: "span.buyer",
		Closing:      "span.closing-date",
		Posted:       "span.issue-date",
		Location:     "Ontario",
	},
	"seao": {
		URL:          "https://www.seao.ca/OpportunityPublication/rechercheAvancee.aspx",
		OrgOption:    "seao_org_id",
		OrgParam:     "org",
		Wait:         "tr.resultat",
		Item:         "tr.resultat",
		ID:           "td.numero",
		Title:        "td.description",
		Link:         "td.description a",
		Organization: "td.organisme",
		Posted:       "td.dateOuverture",
		Closing:      "td.dateFermeture",
		Location:     "Quebec",
	},
	"nbon": {
		URLIndex:            1,
		Wait:                "table.opportunities",
		Item:                "table.opportunities tr",
		Columns:             table(Columns{ID: 0, Title: 1, Organization: 2, Posted: 3, Closing: 4, Value: -1}),
		DefaultOrganization: "Government of New Brunswick",
		Location:            "New Brunswick",
	},
	"ns": {
		URLIndex:            1,
		Wait:                "table#tenderResults",
		Item:                "table#tenderResults tr",
		Columns:             table(Columns{ID: 0, Title: 1, Organization: 2, Posted: -1, Closing: 3, Value: -1}),
		DefaultOrganization: "Province of Nova Scotia",
		Location:            "Nova Scotia",
	},
	"toronto": {
		URLIndex:            1,
		Wait:                "div.posting",
		Item:                "div.posting",
		IDAttr:              "data-posting-id",
		Title:               "a.posting-title",
		Closing:             "span.response-deadline",
		Posted:              "span.posted-on",
		Description:         "div.posting-summary",
		DefaultOrganization: "City of Toronto",
		Location:            "Toronto",
		SyntheticPrefix:     "ARIBA",
	},
	"vancouver": {
		URLIndex:            1,
		Wait:                "table.PSLEVEL1GRID",
		Item:                "table.PSLEVEL1GRID tr",
		Columns:             table(Columns{ID: 0, Title: 1, Organization: -1, Posted: 2, Closing: 3, Value: -1}),
		DefaultOrganization: "City of Vancouver",
		Location:            "Vancouver",
	},
	"calgary": {
		URLIndex:            1,
		Wait:                "div.opportunity-item",
		Item:                "div.opportunity-item",
		IDAttr:              "data-id",
		Title:               "h3",
		Link:                "a",
		Closing:             "span.closing",
		Description:         "p",
		DefaultOrganization: "City of Calgary",
		Location:            "Calgary",
	},
	"edmonton": bidsAndTenders("City of Edmonton", "Edmonton"),
	"ottawa":   bidsAndTenders("City of Ottawa", "Ottawa"),
	"halifax": {
		URLIndex:            1,
		Wait:                "table.tenders",
		Item:                "table.tenders tr",
		Columns:             table(Columns{ID: 0, Title: 1, Organization: -1, Posted: 2, Closing: 3, Value: -1}),
		DefaultOrganization: "Halifax Regional Municipality",
		Location:            "Halifax",
	},
	"regina": {
		URLIndex:            1,
		Wait:                "div.bid-item",
		Item:                "div.bid-item",
		IDAttr:              "data-bid-number",
		Title:               "a.bid-title",
		Closing:             "span.bid-closing",
		DefaultOrganization: "City of Regina",
		Location:            "Regina",
	},
	"buybc": {
		URLIndex:            1,
		Wait:                "div.tender",
		Item:                "div.tender",
		IDAttr:              "data-id",
		Title:               "h3",
		Link:                "a",
		Closing:             "span.closing-date",
		Description:         "div.summary",
		DefaultOrganization: "BC Health",
		Location:            "British Columbia",
	},
	"mohltc": func() ListingSpec {
		spec := merxSpec
		spec.URL = "https://www.merx.com/search?keywords=ontario+health"
		spec.MustContain = "Ontario Health"
		spec.DefaultOrganization = "Ontario Health"
		spec.Location = "Ontario"
		return spec
	}(),
}

// DefaultTable is the dispatch table for the built-in portal registry.
func DefaultTable() scanner.Table {
	t := scanner.Table{
		"canadabuys": scanner.Direct(CanadaBuys{}),
		"manitoba":   scanner.Direct(Manitoba{}),
		"winnipeg":   scanner.Direct(Winnipeg{}),
		"pei":        scanner.Direct(PEI{}),
		"nl":         scanner.Direct(Newfoundland{}),

		"montreal":    scanner.AliasOf("seao"),
		"quebec_city": scanner.AliasOf("seao"),
		"saskatoon":   scanner.AliasOf("sasktenders"),
		"london":      scanner.AliasOf("biddingo"),
		"hamilton":    scanner.AliasOf("biddingo"),
		"kitchener":   scanner.AliasOf("biddingo"),
	}
	for id, spec := range listings {
		t[id] = scanner.Direct(Listing{Spec: spec})
	}
	return t
}

// Missing reports registry portals absent from the table.
func Missing(reg *portal.Registry, t scanner.Table) []domain.PortalDescriptor {
	var missing []domain.PortalDescriptor
	for _, d := range reg.All() {
		if _, ok := t[d.ID]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
