package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

func (t *tx) AppendOutbox(ctx context.Context, e assets.OutboxEntry) error {
	env, err := json.Marshal(e.Envelope)
	if err != nil {
		return err
	}
	var note []byte
	if e.Notification != nil {
		if note, err = json.Marshal(e.Notification); err != nil {
			return err
		}
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO outbox (id, envelope, notification, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, env, note, e.Status, e.Attempts, e.CreatedAt)
	return mapErr(err, "outbox "+e.ID)
}

// Pending returns committed rows still waiting for delivery, oldest first.
// Two relays reading the same rows deliver twice; consumers dedup on event id.
func (s *Store) Pending(ctx context.Context, limit int) ([]assets.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, envelope, notification, status, attempts, COALESCE(last_error, ''), created_at
		FROM outbox
		WHERE status = 'PENDING'
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapErr(err, "outbox")
	}
	return collect(rows, scanOutbox)
}

func scanOutbox(row pgx.Row) (assets.OutboxEntry, error) {
	var e assets.OutboxEntry
	var env, note []byte
	if err := row.Scan(&e.ID, &env, &note, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
		return e, err
	}
	if err := json.Unmarshal(env, &e.Envelope); err != nil {
		return e, err
	}
	if len(note) > 0 {
		e.Notification = &assets.Notification{}
		if err := json.Unmarshal(note, e.Notification); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (s *Store) MarkDispatched(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE outbox SET status = 'DISPATCHED', last_error = NULL, dispatched_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return mapErr(err, "outbox "+id)
	}
	return affected(ct, "outbox "+id)
}

// MarkFailed records a failed delivery; the row is dead once attempts reaches
// maxAttempts.
func (s *Store) MarkFailed(ctx context.Context, id, cause string, maxAttempts int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_error = $2,
			status = CASE WHEN $3 > 0 AND attempts + 1 >= $3 THEN 'DEAD' ELSE status END
		WHERE id = $1
	`, id, cause, maxAttempts)
	if err != nil {
		return mapErr(err, "outbox "+id)
	}
	return affected(ct, "outbox "+id)
}
