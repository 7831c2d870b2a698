package projector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	kafkax "github.com/ariefcatur/go-asset-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
)

type memCache struct {
	mu   sync.Mutex
	snap map[string]assets.Asset
	err  error
}

func (c *memCache) Put(_ context.Context, a assets.Asset) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if cur, ok := c.snap[a.ID]; ok && cur.Version >= a.Version {
		return false, nil
	}
	c.snap[a.ID] = a
	return true, nil
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func event(id string, a assets.Asset) kafka.Message {
	env := assets.Envelope{
		EventID:       id,
		EventType:     assets.EventAssignmentActivated,
		EventVersion:  1,
		CorrelationID: a.ID,
		Payload:       kafkax.MustMarshal(assets.TransitionPayload{Entity: assets.EntityAssignment, AssetID: a.ID, Asset: a}),
	}
	return kafka.Message{Value: kafkax.MustMarshal(env)}
}

func newService() (*Service, *memCache, *memDedup) {
	c := &memCache{snap: map[string]assets.Asset{}}
	d := &memDedup{seen: map[string]bool{}}
	return &Service{Cache: c, Dedup: d, Log: logging.Discard()}, c, d
}

func TestProjectsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	s, cache, _ := newService()

	v3 := assets.Asset{ID: "a1", Status: assets.StatusInUse, Version: 3}
	v2 := assets.Asset{ID: "a1", Status: assets.StatusAvailable, Version: 2}

	require.NoError(t, s.HandleLifecycleEvent(ctx, event("e3", v3)))
	require.NoError(t, s.HandleLifecycleEvent(ctx, event("e2", v2)))
	require.NoError(t, s.HandleLifecycleEvent(ctx, event("e3", v3)))

	assert.Equal(t, int64(3), cache.snap["a1"].Version)
	assert.Equal(t, assets.StatusInUse, cache.snap["a1"].Status)
}

func TestCacheFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	s, cache, dedup := newService()
	cache.err = errors.New("redis down")

	err := s.HandleLifecycleEvent(ctx, event("e1", assets.Asset{ID: "a1", Version: 1}))
	require.Error(t, err)
	assert.False(t, dedup.seen["e1"])

	cache.err = nil
	require.NoError(t, s.HandleLifecycleEvent(ctx, event("e1", assets.Asset{ID: "a1", Version: 1})))
	assert.Equal(t, int64(1), cache.snap["a1"].Version)
}

func TestPoisonMessagesAreDropped(t *testing.T) {
	s, cache, _ := newService()
	require.NoError(t, s.HandleLifecycleEvent(context.Background(), kafka.Message{Value: []byte("not json")}))
	assert.Empty(t, cache.snap)
}
