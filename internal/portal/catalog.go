package portal

import "TenderScanner/internal/domain"

func browser(id, name string, kind domain.PortalKind, platform string, urls ...string) domain.PortalDescriptor {
	return domain.PortalDescriptor{ID: id, Name: name, Kind: kind, Platform: platform, URLs: urls, NeedsBrowser: true}
}

func plain(id, name string, kind domain.PortalKind, platform string, urls ...string) domain.PortalDescriptor {
	return domain.PortalDescriptor{ID: id, Name: name, Kind: kind, Platform: platform, URLs: urls}
}

func withOption(d domain.PortalDescriptor, key, value string) domain.PortalDescriptor {
	opts := make(map[string]string, len(d.Options)+1)
	for k, v := range d.Options {
		opts[k] = v
	}
	opts[key] = value
	d.Options = opts
	return d
}

func defaultPortals() []domain.PortalDescriptor {
	return []domain.PortalDescriptor{
		// Federal
		plain("canadabuys", "CanadaBuys", domain.KindFederal, PlatformCSV,
			"https://canadabuys.canada.ca/en/tender-opportunities/csv",
			"https://canadabuys.canada.ca/en/contract-awards/csv"),
		browser("merx", "MERX", domain.KindFederal, PlatformScrape,
			"https://www.merx.com/", "https://www.merx.com/search"),
		browser("biddingo", "Biddingo", domain.KindFederal, PlatformScrape,
			"https://www.biddingo.com/", "https://www.biddingo.com/search"),

		// Provincial
		browser("bcbid", "BC Bid", domain.KindProvincial, PlatformScrape,
			"https://www.bcbid.gov.bc.ca/", "https://www.bcbid.gov.bc.ca/open.dll/welcome"),
		browser("albertapurchasing", "Alberta Purchasing Connection", domain.KindProvincial, PlatformScrape,
			"https://vendor.purchasingconnection.ca/", "https://vendor.purchasingconnection.ca/Opportunity.aspx?Language=English"),
		browser("sasktenders", "SaskTenders", domain.KindProvincial, PlatformScrape,
			"https://sasktenders.ca/", "https://sasktenders.ca/content/public/Search.aspx"),
		plain("manitoba", "Manitoba Tenders", domain.KindProvincial, PlatformScrape,
			"https://www.gov.mb.ca/tenders/", "https://www.gov.mb.ca/tenders/dept_listing.aspx"),
		browser("ontario", "Ontario Tenders Portal", domain.KindProvincial, PlatformScrape,
			"https://ontariotenders.ca/", "https://ontariotenders.ca/page/public/buyer"),
		browser("seao", "SEAO Quebec", domain.KindProvincial, PlatformScrape,
			"https://www.seao.ca/", "https://www.seao.ca/OpportunityPublication/rechercheAvancee.aspx"),
		browser("nbon", "New Brunswick Opportunities Network", domain.KindProvincial, PlatformScrape,
			"https://nbon.gnb.ca/", "https://nbon.gnb.ca/content/nbon/en/opportunities.html"),
		browser("ns", "Nova Scotia Tenders", domain.KindProvincial, PlatformScrape,
			"https://novascotia.ca/tenders/", "https://novascotia.ca/tenders/tenders/tender-search.aspx"),
		plain("pei", "PEI Tenders", domain.KindProvincial, PlatformScrape,
			"https://www.princeedwardisland.ca/en/topic/tenders",
			"https://www.princeedwardisland.ca/en/search/site?f%5B0%5D=type%3Atender"),
		plain("nl", "Newfoundland Procurement", domain.KindProvincial, PlatformScrape,
			"https://www.gov.nl.ca/tenders/", "https://www.gov.nl.ca/tenders/commodity-search/?commodity=training"),

		// Municipal
		withOption(browser("toronto", "City of Toronto", domain.KindMunicipal, PlatformAriba,
			"https://toronto.ca/business-economy/doing-business-with-the-city/",
			"https://service.ariba.com/Discovery.aw/ad/profile?key=AN01050912625"),
			"ariba_key", "AN01050912625"),
		browser("vancouver", "City of Vancouver", domain.KindMunicipal, PlatformScrape,
			"https://vancouver.ca/doing-business/selling-to-and-buying-from-the-city.aspx",
			"https://procure.vancouver.ca/psp/VFCPROD/SUPPLIER/ERP/h/?tab=DEFAULT"),
		withOption(browser("montreal", "City of Montreal", domain.KindMunicipal, PlatformSEAO,
			"https://montreal.ca/sujets/appels-doffres-et-soumissions"),
			"seao_org_id", "montreal"),
		browser("calgary", "City of Calgary", domain.KindMunicipal, PlatformScrape,
			"https://www.calgary.ca/ca/city-clerks/procurement-and-tenders.html", "https://procurement.calgary.ca/"),
		browser("edmonton", "City of Edmonton", domain.KindMunicipal, PlatformScrape,
			"https://www.edmonton.ca/business_economy/selling-to-the-city",
			"https://edmonton.bidsandtenders.ca/Module/Tenders/en"),
		browser("ottawa", "City of Ottawa", domain.KindMunicipal, PlatformScrape,
			"https://ottawa.ca/en/business/doing-business-city/procurement",
			"https://ottawa.bidsandtenders.ca/Module/Tenders/en"),
		plain("winnipeg", "City of Winnipeg", domain.KindMunicipal, PlatformScrape,
			"https://winnipeg.ca/matmgt/bidopp.asp"),
		withOption(browser("quebec_city", "Quebec City", domain.KindMunicipal, PlatformSEAO,
			"https://www.ville.quebec.qc.ca/apropos/affaires/appels_offres/index.aspx"),
			"seao_org_id", "ville-quebec"),
		browser("halifax", "Halifax Regional Municipality", domain.KindMunicipal, PlatformScrape,
			"https://www.halifax.ca/business/selling-to-halifax", "https://procurement.novascotia.ca/ns-tenders.aspx"),
		withOption(browser("london", "City of London", domain.KindMunicipal, PlatformBiddingo,
			"https://london.ca/business-development/procurement-purchasing"),
			"biddingo_org", "london"),
		withOption(browser("hamilton", "City of Hamilton", domain.KindMunicipal, PlatformBiddingo,
			"https://www.hamilton.ca/spend-invest/business-hamilton/tenders"),
			"biddingo_org", "hamilton"),
		withOption(browser("kitchener", "City of Kitchener", domain.KindMunicipal, PlatformBiddingo,
			"https://www.kitchener.ca/en/city-services/tenders-and-proposals.aspx"),
			"biddingo_org", "kitchener"),
		browser("regina", "City of Regina", domain.KindMunicipal, PlatformScrape,
			"https://www.regina.ca/business-development/bidding-purchasing-city/", "https://procurement.regina.ca/"),
		withOption(browser("saskatoon", "City of Saskatoon", domain.KindMunicipal, PlatformSaskTenders,
			"https://www.saskatoon.ca/business-development/purchasing/bid-opportunities"),
			"sasktenders_org", "saskatoon"),

		// Other public sector
		browser("buybc", "Buy BC Health", domain.KindPublicSector, PlatformScrape,
			"https://www.bchealth.ca/", "https://www.bchealth.ca/tenders"),
		withOption(browser("mohltc", "Ontario Health", domain.KindPublicSector, PlatformMERX,
			"https://www.ontariohealth.ca/"),
			"merx_org", "ontario-health"),
	}
}
