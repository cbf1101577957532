package importer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
	"github.com/Linh3694/frappe-erp-sub001/internal/repository"
	"github.com/Linh3694/frappe-erp-sub001/internal/textnorm"
)

// Resolve matches free text against a candidate set, tier by tier:
//
//  1. byte-exact display name,
//  2. normalized equality (diacritics, whitespace and case absorbed),
//  3. normalized containment in either direction, only when the normalized
//     search text is longer than minLen.
//
// The first candidate matching a tier wins; candidate order is stable for a
// run, so resolution is deterministic.
func Resolve(freeText string, candidates []domain.Candidate, minLen int) (uuid.UUID, bool) {
	for _, c := range candidates {
		if c.Name == freeText {
			return c.ID, true
		}
	}

	search := textnorm.Normalize(freeText)
	if search == "" {
		return uuid.Nil, false
	}
	for _, c := range candidates {
		if textnorm.Normalize(c.Name) == search {
			return c.ID, true
		}
	}

	if len([]rune(search)) > minLen {
		for _, c := range candidates {
			name := textnorm.Normalize(c.Name)
			if name == "" {
				continue
			}
			if strings.Contains(search, name) || strings.Contains(name, search) {
				return c.ID, true
			}
		}
	}

	return uuid.Nil, false
}

// SuggestClosest picks the candidate name nearest to the unresolved text, so
// validation errors can tell the user what they probably meant. Returns ""
// when nothing ranks close enough.
func SuggestClosest(freeText string, candidates []domain.Candidate) string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	ranks := fuzzy.RankFindNormalizedFold(freeText, names)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, rank := range ranks[1:] {
		if rank.Distance < best.Distance {
			best = rank
		}
	}
	return best.Target
}

// CandidateCache fetches each reference candidate set once per import run
// and serves it read-only for the rest of the run, so every row of one
// import resolves against the same snapshot.
type CandidateCache struct {
	store    repository.RecordStore
	campusID uuid.UUID
	sets     map[string][]domain.Candidate
}

// NewCandidateCache scopes a cache to one campus for one run.
func NewCandidateCache(store repository.RecordStore, campusID uuid.UUID) *CandidateCache {
	return &CandidateCache{
		store:    store,
		campusID: campusID,
		sets:     make(map[string][]domain.Candidate),
	}
}

// Candidates returns the candidate set for a reference field, loading it on
// first use. Candidates are ordered by display name so tie-breaking in the
// substring tier is deterministic.
func (c *CandidateCache) Candidates(ctx context.Context, ref domain.ReferenceField) ([]domain.Candidate, error) {
	if cached, ok := c.sets[ref.CandidateSchema]; ok {
		return cached, nil
	}

	records, err := c.store.QueryAll(ctx, ref.CandidateSchema, c.campusID, nil, ref.DisplayField)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s candidates: %w", ref.CandidateSchema, err)
	}

	candidates := make([]domain.Candidate, 0, len(records))
	for _, record := range records {
		name, _ := record.Fields[ref.DisplayField].(string)
		if name == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{ID: record.ID, Name: name})
	}
	c.sets[ref.CandidateSchema] = candidates
	log.Printf("[import] cached %d %s candidates for campus %s", len(candidates), ref.CandidateSchema, c.campusID)
	return candidates, nil
}
