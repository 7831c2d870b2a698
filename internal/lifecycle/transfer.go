package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

type CreateTransferInput struct {
	AssetID           string  `json:"asset_id"`
	ToStoreID         string  `json:"to_store_id"`
	ToShelfID         *string `json:"to_shelf_id,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	RequestedByUserID *string `json:"requested_by_user_id,omitempty"`
	RequestID         string  `json:"request_id,omitempty"`
}

func (in CreateTransferInput) validate() error {
	if strings.TrimSpace(in.AssetID) == "" {
		return fmt.Errorf("%w: asset_id is required", assets.ErrValidation)
	}
	if strings.TrimSpace(in.ToStoreID) == "" {
		return fmt.Errorf("%w: to_store_id is required", assets.ErrValidation)
	}
	if in.ToShelfID != nil && strings.TrimSpace(*in.ToShelfID) == "" {
		return fmt.Errorf("%w: to_shelf_id must not be blank", assets.ErrValidation)
	}
	return nil
}

type TransferResult struct {
	Transfer assets.Transfer `json:"transfer"`
	Asset    assets.Asset    `json:"asset"`
}

// TransferManager moves assets between stores and shelves. It never changes
// status or holder.
type TransferManager struct {
	coord  *Coordinator
	reg    registry
	policy Policy
}

func (m *TransferManager) Create(ctx context.Context, in CreateTransferInput) (TransferResult, error) {
	if err := in.validate(); err != nil {
		return TransferResult{}, err
	}

	var res TransferResult
	err := m.coord.Execute(ctx, "transfer.create", func(ctx context.Context, uow *UnitOfWork) error {
		asset, err := m.reg.get(ctx, uow, in.AssetID)
		if err != nil {
			return err
		}
		if err := claimable(asset); err != nil {
			return err
		}
		if sameLocation(asset, in.ToStoreID, in.ToShelfID) {
			return fmt.Errorf("%w: asset %s is already at the destination", assets.ErrValidation, asset.ID)
		}
		if in.RequestedByUserID != nil {
			if err := requireUser(ctx, uow, *in.RequestedByUserID); err != nil {
				return err
			}
		}

		now := uow.Now()
		t := assets.Transfer{
			ID:                uuid.NewString(),
			AssetID:           asset.ID,
			FromStoreID:       asset.StoreID,
			FromShelfID:       asset.ShelfID,
			ToStoreID:         in.ToStoreID,
			ToShelfID:         in.ToShelfID,
			Status:            assets.TransferPending,
			Reason:            in.Reason,
			RequestedByUserID: in.RequestedByUserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := uow.Tx().InsertTransfer(ctx, t); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventTransferCreated,
			Entity:   assets.EntityTransfer,
			RecordID: t.ID,
			To:       string(t.Status),
			Asset:    asset,
		})
		if err != nil {
			return err
		}

		if m.policy.AutoCompleteTransfers {
			if err := m.complete(ctx, uow, &asset, &t); err != nil {
				return err
			}
		}
		res = TransferResult{Transfer: t, Asset: asset}
		return nil
	})
	return res, err
}

// Complete moves the asset to the transfer's destination.
func (m *TransferManager) Complete(ctx context.Context, id string) (TransferResult, error) {
	if strings.TrimSpace(id) == "" {
		return TransferResult{}, fmt.Errorf("%w: transfer id is required", assets.ErrValidation)
	}

	var res TransferResult
	err := m.coord.Execute(ctx, "transfer.complete", func(ctx context.Context, uow *UnitOfWork) error {
		t, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := m.complete(ctx, uow, &asset, &t); err != nil {
			return err
		}
		res = TransferResult{Transfer: t, Asset: asset}
		return nil
	})
	return res, err
}

func (m *TransferManager) complete(ctx context.Context, uow *UnitOfWork, asset *assets.Asset, t *assets.Transfer) error {
	from := t.Status
	if err := uow.Transition(assets.EntityTransfer, t.ID, string(from), string(assets.TransferCompleted)); err != nil {
		return err
	}
	// The asset may have been disposed since the request was filed.
	if err := claimable(*asset); err != nil {
		return err
	}

	now := uow.Now()
	t.Status = assets.TransferCompleted
	t.TransferDate = &now
	t.UpdatedAt = now
	if err := uow.Tx().UpdateTransfer(ctx, *t); err != nil {
		return err
	}

	err := m.reg.put(ctx, uow, asset, assets.Mutation{
		Cause:    assets.CauseTransferCompleted,
		Location: &assets.Location{StoreID: t.ToStoreID, ShelfID: t.ToShelfID},
	})
	if err != nil {
		return err
	}

	return uow.Emit(ctx, Event{
		Type:     assets.EventTransferCompleted,
		Entity:   assets.EntityTransfer,
		RecordID: t.ID,
		From:     string(from),
		To:       string(t.Status),
		Asset:    *asset,
		Notify: transferNotice(*t, "Transfer completed",
			fmt.Sprintf("Asset %s was moved to store %s.", assetLabel(*asset), t.ToStoreID)),
	})
}

// Reject declines a PENDING transfer. The asset is not touched.
func (m *TransferManager) Reject(ctx context.Context, id string) (TransferResult, error) {
	if strings.TrimSpace(id) == "" {
		return TransferResult{}, fmt.Errorf("%w: transfer id is required", assets.ErrValidation)
	}

	var res TransferResult
	err := m.coord.Execute(ctx, "transfer.reject", func(ctx context.Context, uow *UnitOfWork) error {
		t, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := t.Status
		if err := uow.Transition(assets.EntityTransfer, t.ID, string(from), string(assets.TransferRejected)); err != nil {
			return err
		}
		t.Status = assets.TransferRejected
		t.UpdatedAt = uow.Now()
		if err := uow.Tx().UpdateTransfer(ctx, t); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventTransferRejected,
			Entity:   assets.EntityTransfer,
			RecordID: t.ID,
			From:     string(from),
			To:       string(t.Status),
			Asset:    asset,
			Notify: transferNotice(t, "Transfer rejected",
				fmt.Sprintf("The transfer of asset %s to store %s was rejected.", assetLabel(asset), t.ToStoreID)),
		})
		if err != nil {
			return err
		}
		res = TransferResult{Transfer: t, Asset: asset}
		return nil
	})
	return res, err
}

func (m *TransferManager) load(ctx context.Context, uow *UnitOfWork, id string) (assets.Transfer, assets.Asset, error) {
	t, err := uow.Tx().GetTransfer(ctx, id)
	if err != nil {
		return assets.Transfer{}, assets.Asset{}, err
	}
	asset, err := m.reg.get(ctx, uow, t.AssetID)
	if err != nil {
		return assets.Transfer{}, assets.Asset{}, err
	}
	t, err = uow.Tx().GetTransfer(ctx, id)
	if err != nil {
		return assets.Transfer{}, assets.Asset{}, err
	}
	return t, asset, nil
}

// sameLocation compares the destination with the asset's current location.
// Without a shelf the store alone decides.
func sameLocation(a assets.Asset, store string, shelf *string) bool {
	if a.StoreID == nil || *a.StoreID != store {
		return false
	}
	if shelf == nil {
		return true
	}
	return a.ShelfID != nil && *a.ShelfID == *shelf
}

func transferNotice(t assets.Transfer, title, msg string) *assets.Notification {
	if t.RequestedByUserID == nil {
		return nil
	}
	return &assets.Notification{
		UserID:  *t.RequestedByUserID,
		Title:   title,
		Message: msg,
		Kind:    assets.NotifyTransfer,
	}
}
