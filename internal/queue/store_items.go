package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Enqueue appends p to the queue.
func (s *Store) Enqueue(ctx context.Context, p Payload) (*Item, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := encodePayload(p)
	if err != nil {
		return nil, err
	}
	created := s.now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO export_items (directory, entity_type, uuid, payload_json, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		p.Directory,
		p.EntityType,
		p.UUID,
		raw,
		created.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an item by identifier. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM export_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Claim leases the oldest available item.
func (s *Store) Claim(ctx context.Context) (*Item, error) {
	ctx = ensureContext(ctx)
	token := uuid.NewString()
	claimed := s.now().UTC().UnixMilli()

	var item *Item
	err := withBusyRetry(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE export_items
             SET claimed_at = ?, claim_token = ?
             WHERE id = (SELECT id FROM export_items WHERE claimed_at IS NULL ORDER BY id LIMIT 1)
             RETURNING `+itemColumns,
			claimed,
			token,
		)
		var scanErr error
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim item: %w", err)
	}
	return item, nil
}

// Delete removes a claimed item.
func (s *Store) Delete(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM export_items WHERE id = ? AND claim_token = ?`, item.ID, item.token)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return requireAffected(res, item)
}

// Release returns a claimed item to availability.
func (s *Store) Release(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_items SET claimed_at = NULL, claim_token = NULL WHERE id = ? AND claim_token = ?`,
		item.ID,
		item.token,
	)
	if err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	if err := requireAffected(res, item); err != nil {
		return err
	}
	item.ClaimedAt = nil
	item.token = ""
	return nil
}

// Heartbeat restarts the lease of a claimed item.
func (s *Store) Heartbeat(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	now := s.now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_items SET claimed_at = ? WHERE id = ? AND claim_token = ?`,
		now.UnixMilli(),
		item.ID,
		item.token,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if err := requireAffected(res, item); err != nil {
		return err
	}
	item.ClaimedAt = &now
	return nil
}

// List returns every item in queue order.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM export_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func requireAffected(res sql.Result, item *Item) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", item.ID, ErrLeaseLost)
	}
	return nil
}
