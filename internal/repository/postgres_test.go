package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"floorflow/backend/internal/actor"
	"floorflow/backend/pkg/models"
)

func newTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("floorflow"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	tenant := &models.Tenant{Name: "Acme Garments", Domain: "acme.com"}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	return store, actor.WithTenant(ctx, tenant.ID)
}

func seedWorkflow(t *testing.T, ctx context.Context, store *PostgresStore) *models.Workflow {
	t.Helper()
	wf := &models.Workflow{
		Name:      "Tee shirt",
		CreatedBy: "planner@acme.com",
		Stages: []models.Stage{
			{ID: "cut", Name: "Cutting", Order: 0, EstimatedDuration: 20, Actions: []models.ActionDefinition{
				{ID: "cut-scan", Type: models.ActionScan, Label: "Scan bundle", Required: true},
			}},
			{ID: "pack", Name: "Packing", Order: 1, EstimatedDuration: 5},
		},
	}
	require.NoError(t, store.CreateWorkflow(ctx, wf))
	return wf
}

func seedItem(t *testing.T, ctx context.Context, store *PostgresStore, wf *models.Workflow, id string) *models.Item {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	it := &models.Item{
		ItemID:         id,
		WorkflowID:     wf.ID,
		CurrentStageID: "cut",
		Status:         models.ItemStatusActive,
		Metadata:       models.Metadata{"sku": models.TextValue("TS-001"), "size": models.NumberValue(40)},
		StartedAt:      now,
		StageEnteredAt: now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateItem(ctx, it))
	return it
}

func TestPostgresStore(t *testing.T) {
	store, ctx := newTestStore(t)
	wf := seedWorkflow(t, ctx, store)

	t.Run("tenant lookup", func(t *testing.T) {
		tenant, err := store.GetTenantByDomain(ctx, "acme.com")
		require.NoError(t, err)
		assert.Equal(t, actor.TenantID(ctx), tenant.ID)

		_, err = store.GetTenantByDomain(ctx, "nowhere.io")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("workflow round trip", func(t *testing.T) {
		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf.Stages, got.Stages)
		assert.Equal(t, "planner@acme.com", got.CreatedBy)

		_, err = store.GetWorkflow(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("workflow without tenant", func(t *testing.T) {
		_, err := store.ListWorkflows(context.Background())
		assert.ErrorIs(t, err, ErrNoTenant)
	})

	t.Run("item and advancement", func(t *testing.T) {
		it := seedItem(t, ctx, store, wf, "ITM-100")

		err := store.CreateItem(ctx, it)
		assert.ErrorIs(t, err, ErrConflict)

		got, err := store.GetItem(ctx, "ITM-100")
		require.NoError(t, err)
		assert.Equal(t, it.Metadata, got.Metadata)

		active, err := store.FetchActiveItemsForStage(ctx, StageFilter{WorkflowID: wf.ID, StageIDs: []string{"cut"}})
		require.NoError(t, err)
		require.Len(t, active, 1)

		moved := it.Clone()
		moved.CurrentStageID = "pack"
		moved.StageEnteredAt = time.Now().UTC()
		adv := Advancement{Item: moved, FromStageID: "cut", Audit: &models.AuditEntry{
			ID:          "6f1f9a36-5a53-4a51-9f0e-9df0a2f2b1a1",
			ItemID:      it.ItemID,
			WorkflowID:  wf.ID,
			FromStageID: "cut",
			ToStageID:   "pack",
			OperatorID:  "cutter@acme.com",
			Completions: []models.ActionCompletion{{ID: "cut-scan", Type: models.ActionScan, Label: "Scan bundle", Data: json.RawMessage(`{"scanned_value":"OK"}`)}},
			CreatedAt:   time.Now().UTC(),
		}}
		require.NoError(t, store.PersistAdvancement(ctx, adv))
		// repeating the same write is a no-op
		require.NoError(t, store.PersistAdvancement(ctx, adv))

		history, err := store.ListItemHistory(ctx, it.ItemID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "pack", history[0].ToStageID)
		assert.Equal(t, "cut-scan", history[0].Completions[0].ID)

		got, err = store.GetItem(ctx, it.ItemID)
		require.NoError(t, err)
		assert.Equal(t, "pack", got.CurrentStageID)

		// a second operator leaving the same stage for the same target is
		// not a repeat: its audit entry was never stored
		rival := adv
		rival.Audit = &models.AuditEntry{
			ID:          "3c2e8d4b-1f7a-4e0b-9c55-7d21a6b4e0f2",
			ItemID:      it.ItemID,
			WorkflowID:  wf.ID,
			FromStageID: "cut",
			ToStageID:   "pack",
			OperatorID:  "second@acme.com",
			Notes:       "re-cut",
			CreatedAt:   time.Now().UTC(),
		}
		assert.ErrorIs(t, store.PersistAdvancement(ctx, rival), ErrConflict)
		history, err = store.ListItemHistory(ctx, it.ItemID)
		require.NoError(t, err)
		assert.Len(t, history, 1)

		// a stale snapshot targeting a different state conflicts
		stale := adv
		stale.Item = it.Clone()
		stale.Item.Status = models.ItemStatusCompleted
		stale.Audit = &models.AuditEntry{ID: "0b0c7f0e-8a0b-4c36-a4a4-4a5f2b0d9c11", ItemID: it.ItemID, WorkflowID: wf.ID, FromStageID: "cut", Completed: true, CreatedAt: time.Now().UTC()}
		assert.ErrorIs(t, store.PersistAdvancement(ctx, stale), ErrConflict)
	})

	t.Run("referenced workflow is immutable", func(t *testing.T) {
		wf.Description = "changed"
		assert.ErrorIs(t, store.UpdateWorkflow(ctx, wf), ErrConflict)

		fresh := seedWorkflow(t, ctx, store)
		fresh.Description = "draft"
		require.NoError(t, store.UpdateWorkflow(ctx, fresh))
	})

	t.Run("update item fields", func(t *testing.T) {
		it := seedItem(t, ctx, store, wf, "ITM-200")
		who := "sewer@acme.com"
		it.AssignedTo = &who
		it.Status = models.ItemStatusFlagged
		it.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.UpdateItem(ctx, it))

		got, err := store.GetItem(ctx, "ITM-200")
		require.NoError(t, err)
		assert.Equal(t, models.ItemStatusFlagged, got.Status)
		require.NotNil(t, got.AssignedTo)
		assert.Equal(t, who, *got.AssignedTo)

		active, err := store.FetchActiveItemsForStage(ctx, StageFilter{AssignedTo: who})
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
	assert.Equal(t, "pgx5://h/db?sslmode=require", migrateURL("postgres://h/db?pool_max_conns=8&sslmode=require"))
}
