// Package portal is the static registry of procurement sources.
package portal

import (
	"strings"

	"github.com/rotisserie/eris"

	"TenderScanner/internal/domain"
)

// Platform identifiers shared by several portals.
const (
	PlatformCSV         = "csv"
	PlatformScrape      = "scrape"
	PlatformAriba       = "ariba"
	PlatformSEAO        = "seao"
	PlatformBiddingo    = "biddingo"
	PlatformSaskTenders = "sasktenders"
	PlatformMERX        = "merx"
)

// Set names a predefined selection of portals.
type Set string

const (
	SetAll          Set = "all"
	SetHighPriority Set = "high_priority"
	SetMunicipal    Set = "municipal"
	SetProvincial   Set = "provincial"
)

// ErrUnknownSet is returned for unrecognised set names.
var ErrUnknownSet = eris.New("unknown portal set")

var highPriority = []string{"canadabuys", "merx", "toronto", "ontario", "bcbid", "seao"}

var provincial = []string{"bcbid", "albertapurchasing", "sasktenders", "manitoba", "ontario", "seao", "nbon", "ns", "pei", "nl"}

// Registry keeps descriptors in declaration order.
type Registry struct {
	order  []string
	byID   map[string]domain.PortalDescriptor
	byName map[string]string
}

// NewRegistry indexes descriptors. IDs and names must be unique.
func NewRegistry(descriptors ...domain.PortalDescriptor) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]domain.PortalDescriptor, len(descriptors)),
		byName: make(map[string]string, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.ID == "" || d.Name == "" {
			return nil, eris.New("portal descriptor needs id and name")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, eris.Errorf("duplicate portal id %q", d.ID)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, eris.Errorf("duplicate portal name %q", d.Name)
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
		r.byName[d.Name] = d.ID
	}
	return r, nil
}

// Default returns the built-in Canadian portal registry.
func Default() *Registry {
	r, err := NewRegistry(defaultPortals()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds a descriptor by id.
func (r *Registry) Lookup(id string) (domain.PortalDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// ByName finds a descriptor by display name.
func (r *Registry) ByName(name string) (domain.PortalDescriptor, bool) {
	id, ok := r.byName[name]
	if !ok {
		return domain.PortalDescriptor{}, false
	}
	return r.byID[id], true
}

// KnownName reports whether name is a registered portal display name.
func (r *Registry) KnownName(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// IDs lists every portal id in registry order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// All lists every descriptor in registry order.
func (r *Registry) All() []domain.PortalDescriptor {
	out := make([]domain.PortalDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Select resolves a predefined set to portal ids in registry order.
func (r *Registry) Select(set Set) ([]string, error) {
	switch set {
	case SetAll:
		return r.IDs(), nil
	case SetHighPriority:
		return r.filter(inList(highPriority)), nil
	case SetProvincial:
		return r.filter(inList(provincial)), nil
	case SetMunicipal:
		return r.filter(func(d domain.PortalDescriptor) bool {
			return strings.Contains(d.Name, "City of") || strings.Contains(d.Name, "Municipality")
		}), nil
	default:
		return nil, eris.Wrapf(ErrUnknownSet, "set %q", set)
	}
}

// ParseSet validates a set name taken from user input.
func ParseSet(name string) (Set, error) {
	set := Set(strings.ToLower(strings.TrimSpace(name)))
	switch set {
	case SetAll, SetHighPriority, SetMunicipal, SetProvincial:
		return set, nil
	}
	return "", eris.Wrapf(ErrUnknownSet, "set %q", name)
}

func (r *Registry) filter(keep func(domain.PortalDescriptor) bool) []string {
	var out []string
	for _, id := range r.order {
		if keep(r.byID[id]) {
			out = append(out, id)
		}
	}
	return out
}

func inList(ids []string) func(domain.PortalDescriptor) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(d domain.PortalDescriptor) bool {
		_, ok := set[d.ID]
		return ok
	}
}
