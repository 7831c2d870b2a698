package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

type CreateDisposalInput struct {
	AssetID           string                `json:"asset_id"`
	Method            assets.DisposalMethod `json:"method"`
	Reason            string                `json:"reason,omitempty"`
	Value             *decimal.Decimal      `json:"value,omitempty"`
	RequestedByUserID *string               `json:"requested_by_user_id,omitempty"`
	RequestID         string                `json:"request_id,omitempty"`
}

func (in CreateDisposalInput) validate() error {
	if strings.TrimSpace(in.AssetID) == "" {
		return fmt.Errorf("%w: asset_id is required", assets.ErrValidation)
	}
	if !in.Method.Valid() {
		return fmt.Errorf("%w: unknown disposal method %q", assets.ErrValidation, in.Method)
	}
	return validMoney("value", in.Value)
}

type DisposalResult struct {
	Disposal assets.Disposal `json:"disposal"`
	Asset    assets.Asset    `json:"asset"`
}

// DisposalManager retires assets for good. Approval is the terminal gate:
// from then on no workflow can claim the asset.
type DisposalManager struct {
	coord *Coordinator
	reg   registry
}

func (m *DisposalManager) Create(ctx context.Context, in CreateDisposalInput) (DisposalResult, error) {
	if err := in.validate(); err != nil {
		return DisposalResult{}, err
	}

	var res DisposalResult
	err := m.coord.Execute(ctx, "disposal.create", func(ctx context.Context, uow *UnitOfWork) error {
		asset, err := m.reg.get(ctx, uow, in.AssetID)
		if err != nil {
			return err
		}
		if err := claimable(asset); err != nil {
			return err
		}
		open, err := uow.Tx().ListDisposals(ctx, asset.ID, assets.DisposalPending, assets.DisposalApproved)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return fmt.Errorf("%w: asset %s already has open disposal %s", assets.ErrInvalidState, asset.ID, open[0].ID)
		}
		if in.RequestedByUserID != nil {
			if err := requireUser(ctx, uow, *in.RequestedByUserID); err != nil {
				return err
			}
		}

		now := uow.Now()
		d := assets.Disposal{
			ID:                uuid.NewString(),
			AssetID:           asset.ID,
			Method:            in.Method,
			Reason:            in.Reason,
			Value:             in.Value,
			Status:            assets.DisposalPending,
			RequestedByUserID: in.RequestedByUserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := uow.Tx().InsertDisposal(ctx, d); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventDisposalCreated,
			Entity:   assets.EntityDisposal,
			RecordID: d.ID,
			To:       string(d.Status),
			Asset:    asset,
		})
		if err != nil {
			return err
		}
		res = DisposalResult{Disposal: d, Asset: asset}
		return nil
	})
	return res, err
}

// Approve marks the asset DISPOSED. The current holder's assignment is
// closed as RETURNED and pending assignments are rejected, since they could
// never activate.
func (m *DisposalManager) Approve(ctx context.Context, id string) (DisposalResult, error) {
	if strings.TrimSpace(id) == "" {
		return DisposalResult{}, fmt.Errorf("%w: disposal id is required", assets.ErrValidation)
	}

	var res DisposalResult
	err := m.coord.Execute(ctx, "disposal.approve", func(ctx context.Context, uow *UnitOfWork) error {
		d, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := d.Status
		if err := uow.Transition(assets.EntityDisposal, d.ID, string(from), string(assets.DisposalApproved)); err != nil {
			return err
		}
		if err := claimable(asset); err != nil {
			return err
		}

		if _, err := demoteActive(ctx, uow, asset, "", "the asset is being disposed"); err != nil {
			return err
		}
		pending, err := uow.Tx().ListAssignments(ctx, asset.ID, assets.AssignmentPending)
		if err != nil {
			return err
		}
		for i := range pending {
			if err := rejectPending(ctx, uow, asset, &pending[i], "the asset is being disposed"); err != nil {
				return err
			}
		}

		now := uow.Now()
		d.Status = assets.DisposalApproved
		d.ApprovedAt = &now
		d.UpdatedAt = now
		if err := uow.Tx().UpdateDisposal(ctx, d); err != nil {
			return err
		}

		err = m.reg.put(ctx, uow, &asset, assets.Mutation{
			Cause:       assets.CauseDisposalApproved,
			Status:      assets.StatusDisposed,
			ClearHolder: true,
		})
		if err != nil {
			return err
		}

		err = uow.Emit(ctx, Event{
			Type:     assets.EventDisposalApproved,
			Entity:   assets.EntityDisposal,
			RecordID: d.ID,
			From:     string(from),
			To:       string(d.Status),
			Asset:    asset,
			Notify: disposalNotice(d, "Disposal approved",
				fmt.Sprintf("The disposal of asset %s was approved.", assetLabel(asset))),
		})
		if err != nil {
			return err
		}
		res = DisposalResult{Disposal: d, Asset: asset}
		return nil
	})
	return res, err
}

// Reject declines a PENDING disposal. The asset is not touched.
func (m *DisposalManager) Reject(ctx context.Context, id string) (DisposalResult, error) {
	if strings.TrimSpace(id) == "" {
		return DisposalResult{}, fmt.Errorf("%w: disposal id is required", assets.ErrValidation)
	}

	var res DisposalResult
	err := m.coord.Execute(ctx, "disposal.reject", func(ctx context.Context, uow *UnitOfWork) error {
		d, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := d.Status
		if err := uow.Transition(assets.EntityDisposal, d.ID, string(from), string(assets.DisposalRejected)); err != nil {
			return err
		}
		d.Status = assets.DisposalRejected
		d.UpdatedAt = uow.Now()
		if err := uow.Tx().UpdateDisposal(ctx, d); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventDisposalRejected,
			Entity:   assets.EntityDisposal,
			RecordID: d.ID,
			From:     string(from),
			To:       string(d.Status),
			Asset:    asset,
			Notify: disposalNotice(d, "Disposal rejected",
				fmt.Sprintf("The disposal of asset %s was rejected.", assetLabel(asset))),
		})
		if err != nil {
			return err
		}
		res = DisposalResult{Disposal: d, Asset: asset}
		return nil
	})
	return res, err
}

// Complete closes an APPROVED disposal. The final asset status follows the
// method: LOST and RETIRED have their own statuses, everything else is
// DISPOSED.
func (m *DisposalManager) Complete(ctx context.Context, id string) (DisposalResult, error) {
	if strings.TrimSpace(id) == "" {
		return DisposalResult{}, fmt.Errorf("%w: disposal id is required", assets.ErrValidation)
	}

	var res DisposalResult
	err := m.coord.Execute(ctx, "disposal.complete", func(ctx context.Context, uow *UnitOfWork) error {
		d, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := d.Status
		if err := uow.Transition(assets.EntityDisposal, d.ID, string(from), string(assets.DisposalCompleted)); err != nil {
			return err
		}

		now := uow.Now()
		d.Status = assets.DisposalCompleted
		d.CompletedAt = &now
		d.UpdatedAt = now
		if err := uow.Tx().UpdateDisposal(ctx, d); err != nil {
			return err
		}

		err = m.reg.put(ctx, uow, &asset, assets.Mutation{
			Cause:       assets.CauseDisposalCompleted,
			Status:      d.Method.FinalStatus(),
			ClearHolder: true,
		})
		if err != nil {
			return err
		}

		err = uow.Emit(ctx, Event{
			Type:     assets.EventDisposalCompleted,
			Entity:   assets.EntityDisposal,
			RecordID: d.ID,
			From:     string(from),
			To:       string(d.Status),
			Asset:    asset,
			Notify: disposalNotice(d, "Disposal completed",
				fmt.Sprintf("Asset %s is now %s.", assetLabel(asset), asset.Status)),
		})
		if err != nil {
			return err
		}
		res = DisposalResult{Disposal: d, Asset: asset}
		return nil
	})
	return res, err
}

func (m *DisposalManager) load(ctx context.Context, uow *UnitOfWork, id string) (assets.Disposal, assets.Asset, error) {
	d, err := uow.Tx().GetDisposal(ctx, id)
	if err != nil {
		return assets.Disposal{}, assets.Asset{}, err
	}
	asset, err := m.reg.get(ctx, uow, d.AssetID)
	if err != nil {
		return assets.Disposal{}, assets.Asset{}, err
	}
	d, err = uow.Tx().GetDisposal(ctx, id)
	if err != nil {
		return assets.Disposal{}, assets.Asset{}, err
	}
	return d, asset, nil
}

func disposalNotice(d assets.Disposal, title, msg string) *assets.Notification {
	if d.RequestedByUserID == nil {
		return nil
	}
	return &assets.Notification{
		UserID:  *d.RequestedByUserID,
		Title:   title,
		Message: msg,
		Kind:    assets.NotifyDisposal,
	}
}
