package patterns

import (
	"sort"
	"sync"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// MemoryStore is an in-memory Store, used in tests and for dry runs where
// learned patterns should not persist.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]*models.Pattern
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]*models.Pattern)}
}

// All returns every stored pattern sorted by id.
func (s *MemoryStore) All() ([]*models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one pattern by id.
func (s *MemoryStore) Get(id string) (*models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return nil, apperrors.New(apperrors.CategoryPattern, apperrors.CodePatternLoad, "pattern not found: "+id)
	}
	clone := *p
	return &clone, nil
}

// Save inserts or replaces a pattern.
func (s *MemoryStore) Save(p *models.Pattern) error {
	if p == nil || p.ID == "" {
		return apperrors.New(apperrors.CategoryPattern, apperrors.CodePatternSave, "pattern must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *p
	s.patterns[p.ID] = &clone
	return nil
}

// Delete removes a pattern; deleting an absent id is a no-op.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.patterns, id)
	return nil
}
