package memstore

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// Pending returns committed outbox rows still waiting for delivery, oldest
// first.
func (s *Store) Pending(_ context.Context, limit int) ([]assets.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []assets.OutboxEntry
	for _, e := range s.state.outbox {
		if e.Status == assets.OutboxPending {
			out = append(out, e)
		}
	}
	bySeq(s.state.seq, out, func(e assets.OutboxEntry) string { return e.ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkDispatched(ctx context.Context, id string) error {
	return s.updateOutbox(ctx, id, func(e *assets.OutboxEntry) {
		e.Status = assets.OutboxDispatched
		e.LastError = ""
	})
}

// MarkFailed records a failed delivery. The row is dead once attempts reaches
// maxAttempts.
func (s *Store) MarkFailed(ctx context.Context, id, cause string, maxAttempts int) error {
	return s.updateOutbox(ctx, id, func(e *assets.OutboxEntry) {
		e.Attempts++
		e.LastError = cause
		if maxAttempts > 0 && e.Attempts >= maxAttempts {
			e.Status = assets.OutboxDead
		}
	})
}

// updateOutbox takes the writer slot so an open transaction cannot commit a
// stale copy of the row over this update.
func (s *Store) updateOutbox(ctx context.Context, id string, fn func(*assets.OutboxEntry)) error {
	if err := s.acquire(ctx, 0); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.outbox[id]
	if !ok {
		return fmt.Errorf("%w: outbox entry %s", assets.ErrNotFound, id)
	}
	fn(&e)
	s.state.outbox[id] = e
	return nil
}

// Outbox returns every outbox row in insertion order, whatever its status.
func (s *Store) Outbox() []assets.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]assets.OutboxEntry, 0, len(s.state.outbox))
	for _, e := range s.state.outbox {
		out = append(out, e)
	}
	bySeq(s.state.seq, out, func(e assets.OutboxEntry) string { return e.ID })
	return out
}

// Assignments returns the committed assignments of an asset in insertion
// order.
func (s *Store) Assignments(assetID string) []assets.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []assets.Assignment
	for _, a := range s.state.assignments {
		if a.AssetID == assetID {
			out = append(out, a)
		}
	}
	bySeq(s.state.seq, out, func(a assets.Assignment) string { return a.ID })
	return out
}

// Rows counts committed rows per table. Tests use it to prove a failed unit
// left no trace.
func (s *Store) Rows() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"assets":      len(s.state.assets),
		"assignments": len(s.state.assignments),
		"transfers":   len(s.state.transfers),
		"maintenance": len(s.state.maintenance),
		"disposals":   len(s.state.disposals),
		"outbox":      len(s.state.outbox),
	}
}

// Versions maps asset id to its committed version.
func (s *Store) Versions() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.state.assets))
	for id, a := range s.state.assets {
		out[id] = a.Version
	}
	return out
}
