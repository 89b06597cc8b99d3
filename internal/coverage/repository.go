package coverage

import "context"

// GapProvider supplies the cells of a region a user has not cleared yet.
type GapProvider interface {
	// Summary returns cell counts for a user in a region.
	Summary(ctx context.Context, userID, regionID string) (*Summary, error)

	// UnclearedCells returns the region's inventory minus the user's cleared
	// cells, ordered by cell identifier.
	UnclearedCells(ctx context.Context, userID, regionID string) ([]string, error)
}

// Store persists cell inventories and cleared cells.
type Store interface {
	GapProvider

	// MarkCleared records cells as cleared for the user and returns how many
	// were not cleared before.
	MarkCleared(ctx context.Context, userID string, cells []string) (int, error)

	// UpsertInventory adds cells to a region's inventory and returns how many
	// were new.
	UpsertInventory(ctx context.Context, regionID string, cells []string) (int, error)

	// FilterUncleared returns the subset of cells that belong to the region
	// and are not cleared by the user.
	FilterUncleared(ctx context.Context, userID, regionID string, cells []string) ([]string, error)
}
