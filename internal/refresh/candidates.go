// Package refresh implements the silent auto-refresh policy: selecting
// connected entities stale enough to refetch and running one unattended
// pass per application session.
package refresh

import (
	"time"

	"github.com/finanze/finanze-sub000/internal/model"
)

// Candidate pairs an entity with the feature set to refresh.
type Candidate struct {
	Entity   *model.Entity
	Features []model.Feature
}

// Policy configures candidate selection. An empty Allow list admits every
// entity; Deny always wins over Allow.
type Policy struct {
	Threshold time.Duration
	Allow     []string
	Deny      []string
}

// SelectCandidates returns the connected entities whose most recent
// relevant-feature fetch is older than the policy threshold (or absent),
// excluding denied entities and any entity the busy predicate reports as
// mid-interaction. Never-fetched entities default to refreshing POSITION.
func SelectCandidates(entities []*model.Entity, policy Policy, busy func(entityID string) bool, now time.Time) []Candidate {
	allow := toSet(policy.Allow)
	deny := toSet(policy.Deny)

	var candidates []Candidate
	for _, entity := range entities {
		if entity.Status != model.StatusConnected {
			continue
		}
		if _, denied := deny[entity.ID]; denied {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[entity.ID]; !ok {
				continue
			}
		}
		if busy != nil && busy(entity.ID) {
			continue
		}

		features := entity.FetchedFeatures()
		if len(features) == 0 {
			features = []model.Feature{model.FeaturePosition}
		}

		newest := entity.NewestFetch(features)
		if !newest.IsZero() && now.Sub(newest) < policy.Threshold {
			continue
		}

		candidates = append(candidates, Candidate{Entity: entity, Features: features})
	}
	return candidates
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
