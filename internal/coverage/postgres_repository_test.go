package coverage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexfog/hexfog/internal/coverage"
)

func newMockRepo(t *testing.T) (*coverage.PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return coverage.NewPostgresRepository(mock), mock
}

func TestPostgresRepository_Summary(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grid_cells g")).
		WithArgs("amsterdam", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"total_cells", "cleared_cells"}).AddRow(int64(200), int64(50)))

	summary, err := repo.Summary(context.Background(), "user-1", "amsterdam")
	require.NoError(t, err)

	assert.Equal(t, "amsterdam", summary.RegionID)
	assert.Equal(t, 200, summary.TotalCells)
	assert.Equal(t, 50, summary.ClearedCells)
	assert.Equal(t, 150, summary.UnclearedCells)
	assert.InDelta(t, 25.0, summary.CoveragePercent, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UnclearedCells(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS")).
		WithArgs("amsterdam", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"h3_index"}).
			AddRow("8a1969053247fff").
			AddRow("8a196905324ffff"))

	cells, err := repo.UnclearedCells(context.Background(), "user-1", "amsterdam")
	require.NoError(t, err)
	assert.Equal(t, []string{"8a1969053247fff", "8a196905324ffff"}, cells)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UnclearedCells_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS")).
		WithArgs("amsterdam", "user-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.UnclearedCells(context.Background(), "user-1", "amsterdam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresRepository_FilterUncleared(t *testing.T) {
	repo, mock := newMockRepo(t)
	cells := []string{"a", "b", "c"}

	mock.ExpectQuery(regexp.QuoteMeta("ANY($3::text[])")).
		WithArgs("amsterdam", "user-1", cells).
		WillReturnRows(pgxmock.NewRows([]string{"h3_index"}).AddRow("b"))

	out, err := repo.FilterUncleared(context.Background(), "user-1", "amsterdam", cells)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_MarkCleared(t *testing.T) {
	repo, mock := newMockRepo(t)
	cells := []string{"a", "b", "c"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_cleared_cells")).
		WithArgs("user-1", cells).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	added, err := repo.MarkCleared(context.Background(), "user-1", cells)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_MarkCleared_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	added, err := repo.MarkCleared(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertInventory(t *testing.T) {
	repo, mock := newMockRepo(t)
	cells := []string{"a", "b"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grid_cells")).
		WithArgs("amsterdam", cells).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	inserted, err := repo.UpsertInventory(context.Background(), "amsterdam", cells)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertInventory_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grid_cells")).
		WithArgs("amsterdam", []string{"a"}).
		WillReturnError(errors.New("disk full"))

	_, err := repo.UpsertInventory(context.Background(), "amsterdam", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
