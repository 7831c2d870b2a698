package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// Idempotency remembers which record a client request id produced so a
// retried create returns the first result instead of a duplicate.
type Idempotency interface {
	// Reserve claims requestID within scope. It returns the record id of a
	// finished earlier request, or "" if the caller now owns the request.
	// A request still in flight yields assets.ErrConflict.
	Reserve(ctx context.Context, scope, requestID string) (string, error)
	Complete(ctx context.Context, scope, requestID, recordID string) error
	Release(ctx context.Context, scope, requestID string) error
}

type EngineOption func(*Engine)

func WithIdempotency(idem Idempotency) EngineOption {
	return func(e *Engine) { e.idem = idem }
}

// WithConflictRetries retries mutating operations that fail with
// assets.ErrConflict, up to attempts tries in total.
func WithConflictRetries(attempts int) EngineOption {
	return func(e *Engine) { e.attempts = attempts }
}

// Engine is the caller-facing surface. Every mutating operation is routed to
// exactly one manager and returns the workflow record with the asset
// snapshot it committed.
type Engine struct {
	coord       *Coordinator
	reg         registry
	assignments *AssignmentManager
	transfers   *TransferManager
	maintenance *MaintenanceManager
	disposals   *DisposalManager
	idem        Idempotency
	attempts    int
	log         logrus.FieldLogger
}

func NewEngine(coord *Coordinator, policy Policy, opts ...EngineOption) *Engine {
	e := &Engine{
		coord:       coord,
		assignments: &AssignmentManager{coord: coord, policy: policy},
		transfers:   &TransferManager{coord: coord, policy: policy},
		maintenance: &MaintenanceManager{coord: coord},
		disposals:   &DisposalManager{coord: coord},
		attempts:    1,
		log:         coord.log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Coordinator() *Coordinator { return e.coord }

func (e *Engine) retrying(ctx context.Context, fn func(ctx context.Context) error) error {
	return RetryOnConflict(ctx, e.attempts, fn)
}

// mutate runs one manager call under the engine's retry budget.
func mutate[T any](ctx context.Context, e *Engine, fn func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := e.retrying(ctx, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})
	return res, err
}

// idempotent wraps a create. Without a request id or a configured store it
// simply runs. When the idempotency store is unreachable the request
// proceeds without deduplication.
func idempotent[T any](ctx context.Context, e *Engine, scope, requestID string,
	run func(ctx context.Context) (T, error),
	load func(ctx context.Context, id string) (T, error),
	idOf func(T) string,
) (T, error) {
	if e.idem == nil || strings.TrimSpace(requestID) == "" {
		return mutate(ctx, e, run)
	}

	var zero T
	existing, err := e.idem.Reserve(ctx, scope, requestID)
	switch {
	case errors.Is(err, assets.ErrConflict):
		return zero, err
	case err != nil:
		e.log.WithFields(logrus.Fields{"scope": scope, "request_id": requestID, "error": err}).Warn("idempotency unavailable")
		return mutate(ctx, e, run)
	case existing != "":
		return load(ctx, existing)
	}

	res, err := mutate(ctx, e, run)
	if err != nil {
		if rerr := e.idem.Release(context.WithoutCancel(ctx), scope, requestID); rerr != nil {
			e.log.WithFields(logrus.Fields{"scope": scope, "request_id": requestID, "error": rerr}).Warn("idempotency release")
		}
		return zero, err
	}
	if cerr := e.idem.Complete(context.WithoutCancel(ctx), scope, requestID, idOf(res)); cerr != nil {
		e.log.WithFields(logrus.Fields{"scope": scope, "request_id": requestID, "error": cerr}).Warn("idempotency complete")
	}
	return res, nil
}

type RegisterAssetInput struct {
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	SerialNumber string           `json:"serial_number,omitempty"`
	StoreID      *string          `json:"store_id,omitempty"`
	ShelfID      *string          `json:"shelf_id,omitempty"`
	PurchaseDate *time.Time       `json:"purchase_date,omitempty"`
	PurchaseCost *decimal.Decimal `json:"purchase_cost,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
}

func (in RegisterAssetInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", assets.ErrValidation)
	}
	if in.ShelfID != nil && in.StoreID == nil {
		return fmt.Errorf("%w: shelf_id requires store_id", assets.ErrValidation)
	}
	return validMoney("purchase_cost", in.PurchaseCost)
}

// RegisterAsset adds a new asset. It always starts AVAILABLE with no holder.
func (e *Engine) RegisterAsset(ctx context.Context, in RegisterAssetInput) (assets.Asset, error) {
	if err := in.validate(); err != nil {
		return assets.Asset{}, err
	}
	return idempotent(ctx, e, "asset", in.RequestID,
		func(ctx context.Context) (assets.Asset, error) {
			a := assets.Asset{
				ID:           uuid.NewString(),
				Name:         in.Name,
				Category:     in.Category,
				SerialNumber: in.SerialNumber,
				StoreID:      in.StoreID,
				ShelfID:      in.ShelfID,
				PurchaseDate: in.PurchaseDate,
				PurchaseCost: in.PurchaseCost,
			}
			err := e.coord.Execute(ctx, "asset.register", func(ctx context.Context, uow *UnitOfWork) error {
				if err := e.reg.insert(ctx, uow, &a); err != nil {
					return err
				}
				return uow.Emit(ctx, Event{
					Type:     assets.EventAssetRegistered,
					Entity:   assets.EntityAsset,
					RecordID: a.ID,
					To:       string(a.Status),
					Asset:    a,
				})
			})
			return a, err
		},
		e.Asset,
		func(a assets.Asset) string { return a.ID },
	)
}

func (e *Engine) Asset(ctx context.Context, id string) (assets.Asset, error) {
	var a assets.Asset
	err := e.coord.View(ctx, "asset.get", func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		a, err = uow.Tx().GetAsset(ctx, id)
		return err
	})
	return a, err
}

func (e *Engine) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (AssignmentResult, error) {
	return idempotent(ctx, e, "assignment", in.RequestID,
		func(ctx context.Context) (AssignmentResult, error) { return e.assignments.Create(ctx, in) },
		e.Assignment,
		func(r AssignmentResult) string { return r.Assignment.ID },
	)
}

func (e *Engine) ActivateAssignment(ctx context.Context, id string) (AssignmentResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (AssignmentResult, error) { return e.assignments.Activate(ctx, id) })
}

func (e *Engine) CloseAssignment(ctx context.Context, id string, outcome CloseOutcome) (AssignmentResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (AssignmentResult, error) { return e.assignments.Close(ctx, id, outcome) })
}

func (e *Engine) RejectAssignment(ctx context.Context, id string) (AssignmentResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (AssignmentResult, error) { return e.assignments.Reject(ctx, id) })
}

func (e *Engine) Assignment(ctx context.Context, id string) (AssignmentResult, error) {
	var res AssignmentResult
	err := e.coord.View(ctx, "assignment.get", func(ctx context.Context, uow *UnitOfWork) error {
		a, err := uow.Tx().GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		asset, err := uow.Tx().GetAsset(ctx, a.AssetID)
		if err != nil {
			return err
		}
		res = AssignmentResult{Assignment: a, Asset: asset}
		return nil
	})
	return res, err
}

func (e *Engine) CreateTransfer(ctx context.Context, in CreateTransferInput) (TransferResult, error) {
	return idempotent(ctx, e, "transfer", in.RequestID,
		func(ctx context.Context) (TransferResult, error) { return e.transfers.Create(ctx, in) },
		e.Transfer,
		func(r TransferResult) string { return r.Transfer.ID },
	)
}

func (e *Engine) CompleteTransfer(ctx context.Context, id string) (TransferResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (TransferResult, error) { return e.transfers.Complete(ctx, id) })
}

func (e *Engine) RejectTransfer(ctx context.Context, id string) (TransferResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (TransferResult, error) { return e.transfers.Reject(ctx, id) })
}

func (e *Engine) Transfer(ctx context.Context, id string) (TransferResult, error) {
	var res TransferResult
	err := e.coord.View(ctx, "transfer.get", func(ctx context.Context, uow *UnitOfWork) error {
		t, err := uow.Tx().GetTransfer(ctx, id)
		if err != nil {
			return err
		}
		asset, err := uow.Tx().GetAsset(ctx, t.AssetID)
		if err != nil {
			return err
		}
		res = TransferResult{Transfer: t, Asset: asset}
		return nil
	})
	return res, err
}

func (e *Engine) CreateMaintenance(ctx context.Context, in CreateMaintenanceInput) (MaintenanceResult, error) {
	return idempotent(ctx, e, "maintenance", in.RequestID,
		func(ctx context.Context) (MaintenanceResult, error) { return e.maintenance.Create(ctx, in) },
		e.Maintenance,
		func(r MaintenanceResult) string { return r.Maintenance.ID },
	)
}

func (e *Engine) StartMaintenance(ctx context.Context, id string) (MaintenanceResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (MaintenanceResult, error) { return e.maintenance.Start(ctx, id) })
}

func (e *Engine) CloseMaintenance(ctx context.Context, id string, outcome assets.MaintenanceStatus, cost *decimal.Decimal) (MaintenanceResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (MaintenanceResult, error) {
		return e.maintenance.Close(ctx, id, outcome, cost)
	})
}

func (e *Engine) Maintenance(ctx context.Context, id string) (MaintenanceResult, error) {
	var res MaintenanceResult
	err := e.coord.View(ctx, "maintenance.get", func(ctx context.Context, uow *UnitOfWork) error {
		rec, err := uow.Tx().GetMaintenance(ctx, id)
		if err != nil {
			return err
		}
		asset, err := uow.Tx().GetAsset(ctx, rec.AssetID)
		if err != nil {
			return err
		}
		res = MaintenanceResult{Maintenance: rec, Asset: asset}
		return nil
	})
	return res, err
}

func (e *Engine) CreateDisposal(ctx context.Context, in CreateDisposalInput) (DisposalResult, error) {
	return idempotent(ctx, e, "disposal", in.RequestID,
		func(ctx context.Context) (DisposalResult, error) { return e.disposals.Create(ctx, in) },
		e.Disposal,
		func(r DisposalResult) string { return r.Disposal.ID },
	)
}

func (e *Engine) ApproveDisposal(ctx context.Context, id string) (DisposalResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (DisposalResult, error) { return e.disposals.Approve(ctx, id) })
}

func (e *Engine) RejectDisposal(ctx context.Context, id string) (DisposalResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (DisposalResult, error) { return e.disposals.Reject(ctx, id) })
}

func (e *Engine) CompleteDisposal(ctx context.Context, id string) (DisposalResult, error) {
	return mutate(ctx, e, func(ctx context.Context) (DisposalResult, error) { return e.disposals.Complete(ctx, id) })
}

func (e *Engine) Disposal(ctx context.Context, id string) (DisposalResult, error) {
	var res DisposalResult
	err := e.coord.View(ctx, "disposal.get", func(ctx context.Context, uow *UnitOfWork) error {
		d, err := uow.Tx().GetDisposal(ctx, id)
		if err != nil {
			return err
		}
		asset, err := uow.Tx().GetAsset(ctx, d.AssetID)
		if err != nil {
			return err
		}
		res = DisposalResult{Disposal: d, Asset: asset}
		return nil
	})
	return res, err
}
