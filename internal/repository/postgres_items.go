package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"floorflow/backend/pkg/models"
)

const itemColumns = "item_id, tenant_id, workflow_id, current_stage_id, status, metadata, assigned_to, description, started_at, stage_entered_at, completed_at, updated_at"

func scanItem(row pgx.Row) (*models.Item, error) {
	var (
		it       models.Item
		metadata []byte
	)
	err := row.Scan(&it.ItemID, &it.TenantID, &it.WorkflowID, &it.CurrentStageID, &it.Status, &metadata,
		&it.AssignedTo, &it.Description, &it.StartedAt, &it.StageEnteredAt, &it.CompletedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of item %s: %w", it.ItemID, err)
		}
	}
	return &it, nil
}

func encodeMetadata(md models.Metadata) (string, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// CreateItem inserts a new item for the context's tenant.
func (s *PostgresStore) CreateItem(ctx context.Context, item *models.Item) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(item.Metadata)
	if err != nil {
		return err
	}
	item.TenantID = tenantID

	tag, err := s.db.Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, item_id) DO NOTHING`,
		item.ItemID, tenantID, item.WorkflowID, item.CurrentStageID, item.Status, metadata,
		item.AssignedTo, item.Description, item.StartedAt, item.StageEnteredAt, item.CompletedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s already exists: %w", item.ItemID, ErrConflict)
	}
	return nil
}

// GetItem returns an item of the context's tenant.
func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	it, err := scanItem(s.db.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM items WHERE tenant_id = $1 AND item_id = $2", tenantID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// UpdateItem writes the editable fields of an item. Stage position is
// owned by PersistAdvancement and is not touched here.
func (s *PostgresStore) UpdateItem(ctx context.Context, item *models.Item) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(item.Metadata)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE items SET status = $3, metadata = $4, assigned_to = $5, description = $6, updated_at = $7
		WHERE tenant_id = $1 AND item_id = $2 AND status NOT IN ('completed', 'cancelled')`,
		tenantID, item.ItemID, item.Status, metadata, item.AssignedTo, item.Description, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetItem(ctx, item.ItemID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// FetchActiveItemsForStage lists active items matching the filter, oldest
// stage entry first.
func (s *PostgresStore) FetchActiveItemsForStage(ctx context.Context, filter StageFilter) ([]*models.Item, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + itemColumns + " FROM items WHERE tenant_id = $1 AND status = 'active'"
	args := []any{tenantID}
	if filter.WorkflowID != "" {
		if !validID(filter.WorkflowID) {
			return nil, nil
		}
		args = append(args, filter.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if len(filter.StageIDs) > 0 {
		args = append(args, filter.StageIDs)
		query += fmt.Sprintf(" AND current_stage_id = ANY($%d)", len(args))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		query += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	query += " ORDER BY stage_entered_at, item_id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// PersistAdvancement moves the stored item from adv.FromStageID to the
// state in adv.Item and appends the audit entry, in one transaction. The
// update only applies while the stored item is still active at the stage
// it left; when it does not apply but the stored item already shows the
// target state, the call is treated as a repeat and succeeds.
func (s *PostgresStore) PersistAdvancement(ctx context.Context, adv Advancement) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	completions, err := json.Marshal(adv.Audit.Completions)
	if err != nil {
		return fmt.Errorf("failed to encode completions: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	it := adv.Item
	tag, err := tx.Exec(ctx, `
		UPDATE items
		SET current_stage_id = $3, status = $4, stage_entered_at = $5, completed_at = $6, updated_at = $7
		WHERE tenant_id = $1 AND item_id = $2 AND current_stage_id = $8 AND status = 'active'`,
		tenantID, it.ItemID, it.CurrentStageID, it.Status, it.StageEnteredAt, it.CompletedAt, it.UpdatedAt,
		adv.FromStageID)
	if err != nil {
		return fmt.Errorf("failed to update item stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := tx.Rollback(ctx); err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		return s.alreadyApplied(ctx, adv)
	}

	var toStage *string
	if adv.Audit.ToStageID != "" {
		toStage = &adv.Audit.ToStageID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO item_history (id, tenant_id, item_id, workflow_id, from_stage_id, to_stage_id, completed, operator_id, completions, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		adv.Audit.ID, tenantID, it.ItemID, adv.Audit.WorkflowID, adv.FromStageID, toStage,
		adv.Audit.Completed, adv.Audit.OperatorID, string(completions), adv.Audit.Notes, adv.Audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append item history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit advancement: %w", err)
	}
	return nil
}

// alreadyApplied reports a repeat of a stored advancement as success. The
// stored item must show the target state and the history must hold this
// advancement's audit entry; anything else lost a race.
func (s *PostgresStore) alreadyApplied(ctx context.Context, adv Advancement) error {
	stored, err := s.GetItem(ctx, adv.Item.ItemID)
	if err != nil {
		return err
	}
	conflict := fmt.Errorf("item %s is %s at stage %s: %w", stored.ItemID, stored.Status, stored.CurrentStageID, ErrConflict)

	atTarget := false
	switch {
	case adv.Audit.Completed:
		atTarget = stored.Status == models.ItemStatusCompleted
	default:
		atTarget = stored.Status == models.ItemStatusActive && stored.CurrentStageID == adv.Item.CurrentStageID
	}
	if !atTarget {
		return conflict
	}

	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	var found int
	err = s.db.QueryRow(ctx, `SELECT 1 FROM item_history WHERE tenant_id = $1 AND id = $2`,
		tenantID, adv.Audit.ID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to look up audit entry: %w", err)
	}
	return nil
}

// ListItemHistory returns the audit trail of an item, oldest first.
func (s *PostgresStore) ListItemHistory(ctx context.Context, itemID string) ([]*models.AuditEntry, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, item_id, workflow_id, from_stage_id, COALESCE(to_stage_id, ''), completed, operator_id, completions, notes, created_at
		FROM item_history WHERE tenant_id = $1 AND item_id = $2 ORDER BY created_at, id`, tenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e           models.AuditEntry
			completions []byte
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &e.WorkflowID, &e.FromStageID, &e.ToStageID, &e.Completed,
			&e.OperatorID, &completions, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(completions, &e.Completions); err != nil {
			return nil, fmt.Errorf("failed to decode completions of %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
