package coverage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// inventoryBatchSize bounds the number of cells sent in one statement.
const inventoryBatchSize = 5000

// DBTX is the subset of pgxpool.Pool used by PostgresRepository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a PostgreSQL implementation of Store.
// The set difference between inventory and cleared cells is computed in the
// database so large regions never have to be loaded into memory to count them.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new PostgreSQL coverage repository.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Summary returns cell counts for a user in a region.
func (r *PostgresRepository) Summary(ctx context.Context, userID, regionID string) (*Summary, error) {
	query := `
		SELECT
			COUNT(*) AS total_cells,
			COUNT(u.h3_index) AS cleared_cells
		FROM grid_cells g
		LEFT JOIN user_cleared_cells u
			ON u.h3_index = g.h3_index AND u.user_id = $2
		WHERE g.region_id = $1
	`

	var total, cleared int64
	if err := r.db.QueryRow(ctx, query, regionID, userID).Scan(&total, &cleared); err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	return NewSummary(regionID, int(total), int(cleared)), nil
}

// UnclearedCells returns the region's inventory minus the user's cleared cells.
func (r *PostgresRepository) UnclearedCells(ctx context.Context, userID, regionID string) ([]string, error) {
	query := `
		SELECT g.h3_index
		FROM grid_cells g
		WHERE g.region_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM user_cleared_cells u
			WHERE u.user_id = $2 AND u.h3_index = g.h3_index
		  )
		ORDER BY g.h3_index
	`

	rows, err := r.db.Query(ctx, query, regionID, userID)
	if err != nil {
		return nil, fmt.Errorf("query uncleared cells: %w", err)
	}

	cells, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan uncleared cells: %w", err)
	}
	return cells, nil
}

// FilterUncleared returns the cells that belong to the region and are not cleared by the user.
func (r *PostgresRepository) FilterUncleared(ctx context.Context, userID, regionID string, cells []string) ([]string, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	query := `
		SELECT g.h3_index
		FROM grid_cells g
		WHERE g.region_id = $1
		  AND g.h3_index = ANY($3::text[])
		  AND NOT EXISTS (
			SELECT 1 FROM user_cleared_cells u
			WHERE u.user_id = $2 AND u.h3_index = g.h3_index
		  )
		ORDER BY g.h3_index
	`

	rows, err := r.db.Query(ctx, query, regionID, userID, cells)
	if err != nil {
		return nil, fmt.Errorf("query path cells: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan path cells: %w", err)
	}
	return out, nil
}

// MarkCleared records cells as cleared for the user.
func (r *PostgresRepository) MarkCleared(ctx context.Context, userID string, cells []string) (int, error) {
	if len(cells) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO user_cleared_cells (user_id, h3_index)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, userID, cells)
	if err != nil {
		return 0, fmt.Errorf("insert cleared cells: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UpsertInventory adds cells to a region's inventory in batches.
func (r *PostgresRepository) UpsertInventory(ctx context.Context, regionID string, cells []string) (int, error) {
	query := `
		INSERT INTO grid_cells (region_id, h3_index)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`

	inserted := 0
	for start := 0; start < len(cells); start += inventoryBatchSize {
		end := min(start+inventoryBatchSize, len(cells))

		tag, err := r.db.Exec(ctx, query, regionID, cells[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert inventory batch %d: %w", start/inventoryBatchSize, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

var _ Store = (*PostgresRepository)(nil)
