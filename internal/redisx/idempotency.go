package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

const inFlight = "__pending__"

// Idempotency maps client request ids to the record they created. The
// database stays the source of truth; a lost key only means a replay is not
// recognized.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency { return &Idempotency{rdb: rdb} }

func (i *Idempotency) Reserve(ctx context.Context, scope, requestID string) (string, error) {
	key := fmt.Sprintf(KeyIdemCreate, scope, requestID)
	ok, err := i.rdb.SetNX(ctx, key, inFlight, TTLInFlight).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}

	v, err := i.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired di antara SETNX & GET, anggap masih diproses
		return "", fmt.Errorf("%w: request %s is being processed", assets.ErrConflict, requestID)
	case err != nil:
		return "", err
	case v == inFlight:
		return "", fmt.Errorf("%w: request %s is being processed", assets.ErrConflict, requestID)
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, scope, requestID, recordID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemCreate, scope, requestID), recordID, TTLIdempotency).Err()
}

func (i *Idempotency) Release(ctx context.Context, scope, requestID string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemCreate, scope, requestID)).Err()
}
