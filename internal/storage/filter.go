package storage

import (
	"sort"
	"strings"

	"freshshare/internal/domain"
)

// eligible applies the radius contract to a candidate list. Drivers that
// prefilter (bounding box, GEO index) still pass results through here so every
// driver agrees on haversine distance.
func eligible(cands []domain.Recipient, origin domain.Point, radiusKm float64, excludeID string) []domain.Recipient {
	type hit struct {
		r domain.Recipient
		d float64
	}
	hits := make([]hit, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, r := range cands {
		if !r.Verified || r.Location == nil || !r.Location.Valid() {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		d := domain.DistanceKm(origin, *r.Location)
		if d > radiusKm {
			continue
		}
		seen[r.ID] = struct{}{}
		hits = append(hits, hit{r: r, d: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].d != hits[j].d {
			return hits[i].d < hits[j].d
		}
		return hits[i].r.ID < hits[j].r.ID
	})
	out := make([]domain.Recipient, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.r)
	}
	return out
}

func validateRecipient(r domain.Recipient) error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrInvalidRecipient
	}
	if r.Location != nil && !r.Location.Valid() {
		return ErrInvalidRecipient
	}
	return nil
}

func cloneRecipient(r domain.Recipient) domain.Recipient {
	if r.Location != nil {
		p := *r.Location
		r.Location = &p
	}
	return r
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
