// Package memstore is an in-memory implementation of the lifecycle storage
// ports. Transactions are fully serialized: Begin takes the single writer slot
// and works on a clone of the state, Commit swaps the clone in.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
)

type state struct {
	users       map[string]bool
	assets      map[string]assets.Asset
	assignments map[string]assets.Assignment
	transfers   map[string]assets.Transfer
	maintenance map[string]assets.MaintenanceRecord
	disposals   map[string]assets.Disposal
	outbox      map[string]assets.OutboxEntry
	seq         map[string]int64 // insertion order of every row
	next        int64
}

func newState() state {
	return state{
		users:       map[string]bool{},
		assets:      map[string]assets.Asset{},
		assignments: map[string]assets.Assignment{},
		transfers:   map[string]assets.Transfer{},
		maintenance: map[string]assets.MaintenanceRecord{},
		disposals:   map[string]assets.Disposal{},
		outbox:      map[string]assets.OutboxEntry{},
		seq:         map[string]int64{},
	}
}

// clone copies every table. Rows are values and are replaced, never mutated
// through their pointer fields, so a shallow copy per map is enough.
func (s state) clone() state {
	return state{
		users:       cloneMap(s.users),
		assets:      cloneMap(s.assets),
		assignments: cloneMap(s.assignments),
		transfers:   cloneMap(s.transfers),
		maintenance: cloneMap(s.maintenance),
		disposals:   cloneMap(s.disposals),
		outbox:      cloneMap(s.outbox),
		seq:         cloneMap(s.seq),
		next:        s.next,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) stamp(id string) {
	s.next++
	s.seq[id] = s.next
}

type Store struct {
	mu    sync.Mutex // guards state swaps
	state state
	slot  chan struct{}
}

func New() *Store {
	return &Store{state: newState(), slot: make(chan struct{}, 1)}
}

// AddUser registers a user id that workflows may reference.
func (s *Store) AddUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = true
}

// UpsertUser matches postgres.Store; names are not kept.
func (s *Store) UpsertUser(_ context.Context, id, _ string) error {
	s.AddUser(id)
	return nil
}

func (s *Store) acquire(ctx context.Context, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: store busy for more than %s", assets.ErrConflict, maxWait)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", assets.ErrConflict, ctx.Err())
	}
}

func (s *Store) release() { <-s.slot }

func (s *Store) Begin(ctx context.Context, opts lifecycle.TxOptions) (lifecycle.Tx, error) {
	if err := s.acquire(ctx, opts.MaxWait); err != nil {
		return nil, err
	}
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()
	return &tx{store: s, state: st}, nil
}

type tx struct {
	store *Store
	state state
	done  bool
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("memstore: transaction already closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	t.store.release()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.release()
	return nil
}

func (t *tx) InsertAsset(_ context.Context, a assets.Asset) error {
	if _, ok := t.state.assets[a.ID]; ok {
		return fmt.Errorf("%w: asset %s already exists", assets.ErrConflict, a.ID)
	}
	t.state.assets[a.ID] = a
	t.state.stamp(a.ID)
	return nil
}

// LockAsset is a plain read: the whole transaction already holds the only
// writer slot.
func (t *tx) LockAsset(ctx context.Context, id string) (assets.Asset, error) {
	return t.GetAsset(ctx, id)
}

func (t *tx) GetAsset(_ context.Context, id string) (assets.Asset, error) {
	a, ok := t.state.assets[id]
	if !ok {
		return assets.Asset{}, fmt.Errorf("%w: asset %s", assets.ErrNotFound, id)
	}
	return a, nil
}

func (t *tx) UpdateAsset(_ context.Context, a assets.Asset) error {
	if _, ok := t.state.assets[a.ID]; !ok {
		return fmt.Errorf("%w: asset %s", assets.ErrNotFound, a.ID)
	}
	t.state.assets[a.ID] = a
	return nil
}

func (t *tx) UserExists(_ context.Context, id string) (bool, error) {
	return t.state.users[id], nil
}

func (t *tx) InsertAssignment(_ context.Context, a assets.Assignment) error {
	if err := t.checkOneActive(a); err != nil {
		return err
	}
	t.state.assignments[a.ID] = a
	t.state.stamp(a.ID)
	return nil
}

func (t *tx) GetAssignment(_ context.Context, id string) (assets.Assignment, error) {
	a, ok := t.state.assignments[id]
	if !ok {
		return assets.Assignment{}, fmt.Errorf("%w: assignment %s", assets.ErrNotFound, id)
	}
	return a, nil
}

func (t *tx) UpdateAssignment(_ context.Context, a assets.Assignment) error {
	if _, ok := t.state.assignments[a.ID]; !ok {
		return fmt.Errorf("%w: assignment %s", assets.ErrNotFound, a.ID)
	}
	if err := t.checkOneActive(a); err != nil {
		return err
	}
	t.state.assignments[a.ID] = a
	return nil
}

// checkOneActive mirrors the partial unique index on ACTIVE assignments.
func (t *tx) checkOneActive(a assets.Assignment) error {
	if a.Status != assets.AssignmentActive {
		return nil
	}
	for _, other := range t.state.assignments {
		if other.ID != a.ID && other.AssetID == a.AssetID && other.Status == assets.AssignmentActive {
			return fmt.Errorf("%w: asset %s already has active assignment %s", assets.ErrConflict, a.AssetID, other.ID)
		}
	}
	return nil
}

func (t *tx) ListAssignments(_ context.Context, assetID string, statuses ...assets.AssignmentStatus) ([]assets.Assignment, error) {
	var out []assets.Assignment
	for _, a := range t.state.assignments {
		if a.AssetID == assetID && matches(a.Status, statuses) {
			out = append(out, a)
		}
	}
	bySeq(t.state.seq, out, func(a assets.Assignment) string { return a.ID })
	return out, nil
}

func (t *tx) InsertTransfer(_ context.Context, tr assets.Transfer) error {
	t.state.transfers[tr.ID] = tr
	t.state.stamp(tr.ID)
	return nil
}

func (t *tx) GetTransfer(_ context.Context, id string) (assets.Transfer, error) {
	tr, ok := t.state.transfers[id]
	if !ok {
		return assets.Transfer{}, fmt.Errorf("%w: transfer %s", assets.ErrNotFound, id)
	}
	return tr, nil
}

func (t *tx) UpdateTransfer(_ context.Context, tr assets.Transfer) error {
	if _, ok := t.state.transfers[tr.ID]; !ok {
		return fmt.Errorf("%w: transfer %s", assets.ErrNotFound, tr.ID)
	}
	t.state.transfers[tr.ID] = tr
	return nil
}

func (t *tx) InsertMaintenance(_ context.Context, m assets.MaintenanceRecord) error {
	t.state.maintenance[m.ID] = m
	t.state.stamp(m.ID)
	return nil
}

func (t *tx) GetMaintenance(_ context.Context, id string) (assets.MaintenanceRecord, error) {
	m, ok := t.state.maintenance[id]
	if !ok {
		return assets.MaintenanceRecord{}, fmt.Errorf("%w: maintenance %s", assets.ErrNotFound, id)
	}
	return m, nil
}

func (t *tx) UpdateMaintenance(_ context.Context, m assets.MaintenanceRecord) error {
	if _, ok := t.state.maintenance[m.ID]; !ok {
		return fmt.Errorf("%w: maintenance %s", assets.ErrNotFound, m.ID)
	}
	t.state.maintenance[m.ID] = m
	return nil
}

func (t *tx) ListMaintenance(_ context.Context, assetID string, statuses ...assets.MaintenanceStatus) ([]assets.MaintenanceRecord, error) {
	var out []assets.MaintenanceRecord
	for _, m := range t.state.maintenance {
		if m.AssetID == assetID && matches(m.Status, statuses) {
			out = append(out, m)
		}
	}
	bySeq(t.state.seq, out, func(m assets.MaintenanceRecord) string { return m.ID })
	return out, nil
}

func (t *tx) InsertDisposal(_ context.Context, d assets.Disposal) error {
	t.state.disposals[d.ID] = d
	t.state.stamp(d.ID)
	return nil
}

func (t *tx) GetDisposal(_ context.Context, id string) (assets.Disposal, error) {
	d, ok := t.state.disposals[id]
	if !ok {
		return assets.Disposal{}, fmt.Errorf("%w: disposal %s", assets.ErrNotFound, id)
	}
	return d, nil
}

func (t *tx) UpdateDisposal(_ context.Context, d assets.Disposal) error {
	if _, ok := t.state.disposals[d.ID]; !ok {
		return fmt.Errorf("%w: disposal %s", assets.ErrNotFound, d.ID)
	}
	t.state.disposals[d.ID] = d
	return nil
}

func (t *tx) ListDisposals(_ context.Context, assetID string, statuses ...assets.DisposalStatus) ([]assets.Disposal, error) {
	var out []assets.Disposal
	for _, d := range t.state.disposals {
		if d.AssetID == assetID && matches(d.Status, statuses) {
			out = append(out, d)
		}
	}
	bySeq(t.state.seq, out, func(d assets.Disposal) string { return d.ID })
	return out, nil
}

func (t *tx) AppendOutbox(_ context.Context, e assets.OutboxEntry) error {
	t.state.outbox[e.ID] = e
	t.state.stamp(e.ID)
	return nil
}

func matches[S comparable](s S, want []S) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if s == w {
			return true
		}
	}
	return false
}

// bySeq orders rows by insertion.
func bySeq[T any](seq map[string]int64, rows []T, id func(T) string) {
	sort.Slice(rows, func(i, j int) bool { return seq[id(rows[i])] < seq[id(rows[j])] })
}
