// Package feed turns raw nearby profiles into the swipe feed a session sees:
// exclusion filtering, sponsored interleaving and the client-held feed state.
package feed

import "roomie_server/models"

// Exclusions is everything a viewer must not be shown.
type Exclusions struct {
	ViewerID   string
	ViewerRole models.Role
	Blocked    []string
	// History holds ids the viewer liked or passed inside the history window.
	History map[string]struct{}
	// Seen is the session seen-cache. May be nil.
	Seen *SeenCache
}

// Filter drops excluded candidates and keeps the order of the rest.
// Candidates with a missing or unknown role, or of the viewer's own role,
// are dropped too.
func Filter(candidates []*models.UserProfile, ex Exclusions) []*models.UserProfile {
	want := ex.ViewerRole.Counterpart()
	blocked := make(map[string]struct{}, len(ex.Blocked))
	for _, id := range ex.Blocked {
		blocked[id] = struct{}{}
	}

	out := make([]*models.UserProfile, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.UserID == "" || c.UserID == ex.ViewerID {
			continue
		}
		if !c.Role.Valid() || c.Role != want {
			continue
		}
		if _, ok := blocked[c.UserID]; ok {
			continue
		}
		if _, ok := ex.History[c.UserID]; ok {
			continue
		}
		if ex.Seen != nil && ex.Seen.Has(c.UserID) {
			continue
		}
		out = append(out, c)
	}
	return out
}
