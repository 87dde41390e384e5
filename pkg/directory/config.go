// Package directory supplies the provider list for each configured
// facility, fronted by a fixed-TTL cache. Facility and visit-type
// definitions are immutable configuration passed in at construction,
// never process-wide state.
package directory

import (
	"fmt"
	"sort"
)

// Facility is one physical clinic location. The query parameters are
// part of the remote API contract for the provider list call.
type Facility struct {
	ID       string
	Name     string
	Zip      string
	Location string
}

// VisitType pairs the remote API's visit reason identifier with its
// short code.
type VisitType struct {
	// Code is the uppercase short code sent as visit_code (e.g. "SICK").
	Code string

	// ReasonID is sent as practice_visit_reason_id.
	ReasonID string
}

// Registry is the immutable facility and visit-type configuration for
// one practice. Construct it once and share it read-only.
type Registry struct {
	// PracticeID is the practice identifier sent as apu_id.
	PracticeID string

	facilities map[string]Facility
	order      []string
	visitTypes map[string]VisitType
}

// NewRegistry builds a registry from the given definitions. Facility
// order is preserved for iteration. Duplicate facility IDs or visit
// type names are rejected.
func NewRegistry(practiceID string, facilities []Facility, visitTypes map[string]VisitType) (*Registry, error) {
	if practiceID == "" {
		return nil, fmt.Errorf("practice ID is required")
	}
	if len(facilities) == 0 {
		return nil, fmt.Errorf("at least one facility is required")
	}

	r := &Registry{
		PracticeID: practiceID,
		facilities: make(map[string]Facility, len(facilities)),
		order:      make([]string, 0, len(facilities)),
		visitTypes: make(map[string]VisitType, len(visitTypes)),
	}
	for _, f := range facilities {
		if f.ID == "" {
			return nil, fmt.Errorf("facility %q has no ID", f.Name)
		}
		if _, ok := r.facilities[f.ID]; ok {
			return nil, fmt.Errorf("duplicate facility ID %q", f.ID)
		}
		r.facilities[f.ID] = f
		r.order = append(r.order, f.ID)
	}
	for name, vt := range visitTypes {
		if vt.ReasonID == "" {
			return nil, fmt.Errorf("visit type %q has no reason ID", name)
		}
		r.visitTypes[name] = vt
	}
	return r, nil
}

// Facility looks up one facility by ID.
func (r *Registry) Facility(id string) (Facility, bool) {
	f, ok := r.facilities[id]
	return f, ok
}

// Facilities returns the facilities in configuration order.
func (r *Registry) Facilities() []Facility {
	out := make([]Facility, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.facilities[id])
	}
	return out
}

// FacilityName returns the display name for a facility ID, falling
// back to the ID itself for unknown facilities.
func (r *Registry) FacilityName(id string) string {
	if f, ok := r.facilities[id]; ok && f.Name != "" {
		return f.Name
	}
	return id
}

// VisitType looks up a visit type by name (e.g. "sick").
func (r *Registry) VisitType(name string) (VisitType, bool) {
	vt, ok := r.visitTypes[name]
	return vt, ok
}

// VisitTypeNames returns the configured visit type names, sorted.
func (r *Registry) VisitTypeNames() []string {
	names := make([]string, 0, len(r.visitTypes))
	for name := range r.visitTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
