package coverage

import (
	"context"
	"sort"
	"sync"

	"github.com/hexfog/hexfog/internal/grid"
)

// InMemoryRepository is an in-memory implementation of Store.
// This is intended for testing and local runs. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	inventory map[string]grid.CellSet
	cleared   map[string]grid.CellSet
}

// NewInMemoryRepository creates a new in-memory coverage repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		inventory: make(map[string]grid.CellSet),
		cleared:   make(map[string]grid.CellSet),
	}
}

// Summary returns cell counts for a user in a region.
func (r *InMemoryRepository) Summary(_ context.Context, userID, regionID string) (*Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	region := r.inventory[regionID]
	cleared := r.cleared[userID]

	n := 0
	for c := range region {
		if cleared.Contains(c) {
			n++
		}
	}
	return NewSummary(regionID, region.Len(), n), nil
}

// UnclearedCells returns the region's inventory minus the user's cleared cells.
func (r *InMemoryRepository) UnclearedCells(_ context.Context, userID, regionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cleared := r.cleared[userID]
	out := make([]string, 0, len(r.inventory[regionID]))
	for c := range r.inventory[regionID] {
		if !cleared.Contains(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FilterUncleared returns the cells that belong to the region and are not cleared by the user.
func (r *InMemoryRepository) FilterUncleared(_ context.Context, userID, regionID string, cells []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	region := r.inventory[regionID]
	cleared := r.cleared[userID]
	out := make(grid.CellSet)
	for _, c := range cells {
		if region.Contains(c) && !cleared.Contains(c) {
			out.Add(c)
		}
	}
	return out.Slice(), nil
}

// MarkCleared records cells as cleared for the user.
func (r *InMemoryRepository) MarkCleared(_ context.Context, userID string, cells []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.cleared[userID]
	if !ok {
		set = make(grid.CellSet)
		r.cleared[userID] = set
	}
	return addAll(set, cells), nil
}

// UpsertInventory adds cells to a region's inventory.
func (r *InMemoryRepository) UpsertInventory(_ context.Context, regionID string, cells []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.inventory[regionID]
	if !ok {
		set = make(grid.CellSet)
		r.inventory[regionID] = set
	}
	return addAll(set, cells), nil
}

func addAll(set grid.CellSet, cells []string) int {
	added := 0
	for _, c := range cells {
		if !set.Contains(c) {
			set.Add(c)
			added++
		}
	}
	return added
}

var _ Store = (*InMemoryRepository)(nil)
