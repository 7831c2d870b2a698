package lifecycle

import (
	"context"
	"time"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// TxOptions bounds a unit of work. MaxWait limits how long Begin (and row
// locks taken inside the tx) may wait; Timeout limits the whole unit.
type TxOptions struct {
	MaxWait time.Duration
	Timeout time.Duration
}

// Store is the storage collaborator. Implementations must map lock/acquire
// timeouts and serialization failures to assets.ErrConflict and missing rows
// to assets.ErrNotFound.
type Store interface {
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
}

// Tx is one atomic multi-statement transaction. Every writer locks the asset
// row with LockAsset before touching workflow rows of that asset.
type Tx interface {
	InsertAsset(ctx context.Context, a assets.Asset) error
	LockAsset(ctx context.Context, id string) (assets.Asset, error)
	GetAsset(ctx context.Context, id string) (assets.Asset, error)
	UpdateAsset(ctx context.Context, a assets.Asset) error
	UserExists(ctx context.Context, id string) (bool, error)

	InsertAssignment(ctx context.Context, a assets.Assignment) error
	GetAssignment(ctx context.Context, id string) (assets.Assignment, error)
	UpdateAssignment(ctx context.Context, a assets.Assignment) error
	ListAssignments(ctx context.Context, assetID string, statuses ...assets.AssignmentStatus) ([]assets.Assignment, error)

	InsertTransfer(ctx context.Context, t assets.Transfer) error
	GetTransfer(ctx context.Context, id string) (assets.Transfer, error)
	UpdateTransfer(ctx context.Context, t assets.Transfer) error

	InsertMaintenance(ctx context.Context, m assets.MaintenanceRecord) error
	GetMaintenance(ctx context.Context, id string) (assets.MaintenanceRecord, error)
	UpdateMaintenance(ctx context.Context, m assets.MaintenanceRecord) error
	ListMaintenance(ctx context.Context, assetID string, statuses ...assets.MaintenanceStatus) ([]assets.MaintenanceRecord, error)

	InsertDisposal(ctx context.Context, d assets.Disposal) error
	GetDisposal(ctx context.Context, id string) (assets.Disposal, error)
	UpdateDisposal(ctx context.Context, d assets.Disposal) error
	ListDisposals(ctx context.Context, assetID string, statuses ...assets.DisposalStatus) ([]assets.Disposal, error)

	AppendOutbox(ctx context.Context, e assets.OutboxEntry) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
