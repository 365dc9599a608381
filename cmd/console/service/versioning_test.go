package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleSchema() models.Schema {
	return models.Schema{
		Columns: []models.Column{
			{Name: "id", Type: models.ColumnString, Required: true},
			{Name: "value", Type: models.ColumnFloat},
		},
		KeyColumn: "id",
	}
}

func mustCreateDataset(t *testing.T, env *testEnv, rows []models.Row) *models.Dataset {
	t.Helper()
	payload := &models.TablePayload{Columns: []string{"id", "value"}, Rows: rows}
	ds, err := env.versioning.CreateDataset(
		context.Background(), env.projectID, "readings", simpleSchema(), nil, payload, "alice",
	)
	require.NoError(t, err)
	return ds
}

func TestCreateDataset_CommitsVersionZero(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, []models.Row{{"id": "a", "value": 1.0}})

	assert.Equal(t, int64(0), ds.CurrentVersion)

	v, err := env.versions.GetByNumber(context.Background(), ds.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreateTable, v.Kind)
	assert.Equal(t, 1, v.RowCount)
	assert.Equal(t, "alice", v.Actor)
}

func TestCreateDataset_RejectsInvalidSchema(t *testing.T) {
	env := newTestEnv(time.Second)

	_, err := env.versioning.CreateDataset(
		context.Background(), env.projectID, "bad", models.Schema{}, nil, nil, "alice",
	)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateDataset_NotVisibleWhenInitialVersionFails(t *testing.T) {
	env := newTestEnv(time.Second)
	env.versions.failNext = errors.New("storage offline")

	_, err := env.versioning.CreateDataset(
		context.Background(), env.projectID, "readings", simpleSchema(), nil, nil, "alice",
	)
	require.Error(t, err)

	// The half-created dataset is rolled back, not left at version -1
	datasets, err := env.versioning.ListDatasets(context.Background(), env.projectID)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestMaterialize_SequentialNumbers(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, nil)

	for i := 1; i <= 5; i++ {
		v, err := env.versioning.Materialize(context.Background(), &MaterializeRequest{
			DatasetID: ds.ID,
			Kind:      models.OpWrite,
			Payload:   &models.TablePayload{Columns: []string{"id"}, Rows: []models.Row{{"id": "a", "value": float64(i)}}},
			Actor:     "alice",
			Title:     "write",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), v.Number)
	}
}

func TestMaterialize_GapFreeUnderConcurrency(t *testing.T) {
	env := newTestEnv(5 * time.Second)
	ds := mustCreateDataset(t, env, nil)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := env.versioning.Materialize(context.Background(), &MaterializeRequest{
				DatasetID: ds.ID,
				Kind:      models.OpWrite,
				Payload:   &models.TablePayload{Columns: []string{"id"}, Rows: []models.Row{{"id": "a", "value": float64(n)}}},
				Actor:     "alice",
				Title:     "concurrent write",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions, err := env.versioning.ListVersions(context.Background(), ds.ID)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)

	// Dense sequence, no gaps or duplicates
	seen := make(map[int64]bool)
	for _, v := range versions {
		seen[v.Number] = true
	}
	for n := int64(0); n <= int64(writers); n++ {
		assert.True(t, seen[n], "missing version %d", n)
	}
}

func TestMaterialize_BusyWhenLockHeld(t *testing.T) {
	env := newTestEnv(30 * time.Millisecond)
	ds := mustCreateDataset(t, env, nil)

	release, err := env.locks.Acquire(context.Background(), ds.ID.String(), time.Second)
	require.NoError(t, err)
	defer release()

	_, err = env.versioning.Materialize(context.Background(), &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Rows: []models.Row{}},
		Actor:     "alice",
		Title:     "blocked",
	})
	assert.ErrorIs(t, err, apperrors.ErrBusy)
}

func TestMaterialize_InconsistencyFencesDataset(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, nil)

	// Move the pointer behind the version store's back
	env.datasets.mu.Lock()
	env.datasets.rows[ds.ID].CurrentVersion = 5
	env.datasets.mu.Unlock()

	_, err := env.versioning.Materialize(context.Background(), &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Rows: []models.Row{}},
		Actor:     "alice",
		Title:     "diverged",
	})
	require.ErrorIs(t, err, apperrors.ErrInconsistent)
	assert.True(t, env.locks.Fenced(ds.ID.String()))

	// Subsequent writes fail fast until the fence is lifted
	_, err = env.versioning.Materialize(context.Background(), &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Rows: []models.Row{}},
		Actor:     "alice",
		Title:     "after fence",
	})
	assert.ErrorIs(t, err, apperrors.ErrInconsistent)
}

func TestGetVersionData_PaginationAndBounds(t *testing.T) {
	env := newTestEnv(time.Second)

	rows := make([]models.Row, 10)
	for i := range rows {
		rows[i] = models.Row{"id": string(rune('a' + i)), "value": float64(i)}
	}
	ds := mustCreateDataset(t, env, rows)

	ctx := context.Background()

	page, err := env.versioning.GetVersionData(ctx, ds.ID, 0, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	assert.Len(t, page.Rows, 4)

	page, err = env.versioning.GetVersionData(ctx, ds.ID, 0, 4, 8)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 2)

	page, err = env.versioning.GetVersionData(ctx, ds.ID, 0, 4, 100)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 10, page.Total)

	_, err = env.versioning.GetVersionData(ctx, ds.ID, -1, 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrVersionNotFound)

	_, err = env.versioning.GetVersionData(ctx, ds.ID, 99, 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrVersionNotFound)
}

func TestRestore_RoundTripAndNewHead(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, []models.Row{{"id": "a", "value": 1.0}})
	ctx := context.Background()

	_, err := env.versioning.Materialize(ctx, &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Columns: []string{"id", "value"}, Rows: []models.Row{{"id": "a", "value": 2.0}}},
		Actor:     "alice",
		Title:     "edit",
	})
	require.NoError(t, err)

	restored, err := env.versioning.Restore(ctx, ds.ID, 0, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), restored.Number)
	assert.Equal(t, models.OpRestore, restored.Kind)
	require.NotNil(t, restored.RestoredFrom)
	assert.Equal(t, int64(0), *restored.RestoredFrom)

	// Restored version shares the target's snapshot blob
	target, err := env.versions.GetByNumber(ctx, ds.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, target.BlobID, restored.BlobID)

	// Reading the restored head matches the target byte for byte
	targetPage, err := env.versioning.GetVersionData(ctx, ds.ID, 0, 10, 0)
	require.NoError(t, err)
	restoredPage, err := env.versioning.GetVersionData(ctx, ds.ID, 2, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, targetPage.Rows, restoredPage.Rows)

	// History is untouched
	middle, err := env.versioning.GetVersionData(ctx, ds.ID, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, middle.Rows[0]["value"])
}

func TestRestore_RecordsAuditEventWithDiff(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, []models.Row{{"id": "a", "value": 1.0}})
	ctx := context.Background()

	_, err := env.versioning.Materialize(ctx, &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Columns: []string{"id", "value"}, Rows: []models.Row{{"id": "a", "value": 2.0}}},
		Actor:     "alice",
		Title:     "edit",
	})
	require.NoError(t, err)

	_, err = env.versioning.Restore(ctx, ds.ID, 0, "bob")
	require.NoError(t, err)

	events := env.audit.byType(models.AuditRestore)
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, "bob", event.Actor)
	assert.Equal(t, 1, event.Summary.RowsUpdated)
	require.NotNil(t, event.DiffBlobID)

	detail, err := env.auditSvc.GetDetail(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Diff)
	require.Len(t, detail.Diff.Updated, 1)
	change := detail.Diff.Updated[0].Changes["value"]
	assert.Equal(t, 2.0, change.Old)
	assert.Equal(t, 1.0, change.New)
}

func TestGetCalendar_BucketsByDay(t *testing.T) {
	env := newTestEnv(time.Second)
	ds := mustCreateDataset(t, env, nil)
	ctx := context.Background()

	_, err := env.versioning.Materialize(ctx, &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpWrite,
		Payload:   &models.TablePayload{Rows: []models.Row{{"id": "a"}}},
		Actor:     "alice",
		Title:     "write",
	})
	require.NoError(t, err)

	// Backdate version 0 to yesterday
	env.versions.mu.Lock()
	env.versions.rows[ds.ID][0].CreatedAt = time.Now().Add(-24 * time.Hour)
	env.versions.mu.Unlock()

	calendar, err := env.versioning.GetCalendar(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, calendar, 2)

	today := time.Now().In(time.Local).Format("2006-01-02")
	yesterday := time.Now().Add(-24 * time.Hour).In(time.Local).Format("2006-01-02")

	require.Len(t, calendar[today], 1)
	assert.Equal(t, int64(1), calendar[today][0].Number)
	require.Len(t, calendar[yesterday], 1)
	assert.Equal(t, int64(0), calendar[yesterday][0].Number)
}

func TestBlobDeduplication(t *testing.T) {
	env := newTestEnv(time.Second)
	ctx := context.Background()

	payload := &models.TablePayload{Columns: []string{"id"}, Rows: []models.Row{{"id": "a"}}}

	id1, err := env.blobSvc.StorePayload(ctx, payload)
	require.NoError(t, err)
	id2, err := env.blobSvc.StorePayload(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	env.blobs.mu.Lock()
	assert.Len(t, env.blobs.rows, 1)
	env.blobs.mu.Unlock()
}
