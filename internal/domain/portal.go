package domain

// PortalKind groups portals by level of government.
type PortalKind string

const (
	KindFederal      PortalKind = "federal"
	KindProvincial   PortalKind = "provincial"
	KindMunicipal    PortalKind = "municipal"
	KindPublicSector PortalKind = "public_sector"
)

// PortalDescriptor is the static registry entry for one source.
type PortalDescriptor struct {
	ID           string
	Name         string
	Kind         PortalKind
	Platform     string
	URLs         []string
	NeedsBrowser bool
	Options      map[string]string
}

// BaseURL returns the first configured URL, or "" when none is set.
func (p PortalDescriptor) BaseURL() string {
	if len(p.URLs) == 0 {
		return ""
	}
	return p.URLs[0]
}

// Option returns a platform-specific option value.
func (p PortalDescriptor) Option(key string) string {
	if p.Options == nil {
		return ""
	}
	return p.Options[key]
}
