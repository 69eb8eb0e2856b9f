package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbound/enrich-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresWithPool(pool), pool
}

func TestPostgres_CreateRun(t *testing.T) {
	st, pool := newMockPostgres(t)
	run := newTestRun()

	pool.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, "Acme", "https://acme.com", "pending", run.CreatedAt, run.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.CreateRun(context.Background(), run))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatusNotFound(t *testing.T) {
	st, pool := newMockPostgres(t)

	pool.ExpectExec("UPDATE runs SET status").
		WithArgs("collecting", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusCollecting)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_CompleteRunWritesStageRows(t *testing.T) {
	st, pool := newMockPostgres(t)
	run := newTestRun()
	run.Status = model.RunStatusDone
	run.Profile = model.NewCompanyProfile()
	run.Stages = []model.StageResult{
		{Name: "collect", Status: model.StageStatusComplete, DurationMS: 100},
		{Name: "extract", Status: model.StageStatusComplete, DurationMS: 200},
	}

	pool.ExpectExec("UPDATE runs SET status").
		WithArgs("done", pgxmock.AnyArg(), pgxmock.AnyArg(), run.UpdatedAt, run.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCopyFrom(pgx.Identifier{"run_stages"}, []string{"run_id", "name", "status", "duration_ms", "error"}).
		WillReturnResult(2)

	require.NoError(t, st.CompleteRun(context.Background(), run))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	st, pool := newMockPostgres(t)
	now := time.Now().UTC()

	pool.ExpectQuery("SELECT id, name, website, status, profile, stages, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "name", "website", "status", "profile", "stages", "created_at", "updated_at"},
		).AddRow(
			"run-1", "Acme", "https://acme.com", "done",
			[]byte(`{"fields":{},"confidence":{},"competitors":[]}`),
			[]byte(`[{"name":"collect","status":"complete","duration_ms":10}]`),
			now, now,
		))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, run.Status)
	require.NotNil(t, run.Profile)
	require.Len(t, run.Stages, 1)
	assert.Equal(t, "collect", run.Stages[0].Name)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	st, pool := newMockPostgres(t)

	pool.ExpectQuery("SELECT id, name, website, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ListRuns(t *testing.T) {
	st, pool := newMockPostgres(t)
	now := time.Now().UTC()

	pool.ExpectQuery("SELECT id, name, website, status, created_at, updated_at FROM runs").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "name", "website", "status", "created_at", "updated_at"},
		).AddRow("b", "Beta", "", "done", now, now).
			AddRow("a", "Alpha", "", "done", now.Add(-time.Hour), now.Add(-time.Hour)))

	out, err := st.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.NoError(t, pool.ExpectationsWereMet())
}
