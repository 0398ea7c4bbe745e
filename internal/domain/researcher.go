package domain

import (
	"sort"
	"time"
)

// InternalResearcher is a known researcher on the roster.
type InternalResearcher struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	Institution string `json:"institution,omitempty"`
	// UniqueIDs holds identifiers on file, currently bare ORCIDs.
	UniqueIDs []string `json:"unique_ids,omitempty"`
	// PriorCoauthors aggregates author names from publications already attributed to the researcher.
	PriorCoauthors []string  `json:"prior_coauthors,omitempty"`
	NameVariations []string  `json:"name_variations,omitempty"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Roster is an immutable snapshot of researchers used for one run.
type Roster []InternalResearcher

// Snapshot returns a deep copy of the roster sorted by researcher id.
func (r Roster) Snapshot() Roster {
	out := make(Roster, len(r))
	for i, res := range r {
		cp := res
		cp.UniqueIDs = append([]string(nil), res.UniqueIDs...)
		cp.PriorCoauthors = append([]string(nil), res.PriorCoauthors...)
		cp.NameVariations = append([]string(nil), res.NameVariations...)
		out[i] = cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
