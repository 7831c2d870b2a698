package redisx

import "time"

const (
	// Idempotent create: idem:{scope}:create:{request_id} -> record id, or the
	// in-flight marker while the first request is still running.
	KeyIdemCreate = "idem:%s:create:%s"

	// Asset snapshot cache: hash asset_snapshot:{asset_id} {version, body}
	KeyAssetSnapshot = "asset_snapshot:%s"

	// Dedup event processing: dedup:{service}:{event_id} (per consumer group)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLInFlight    = 30 * time.Second
	TTLSnapshot    = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)
