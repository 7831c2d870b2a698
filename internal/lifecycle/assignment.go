package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

type CreateAssignmentInput struct {
	AssetID   string     `json:"asset_id"`
	UserID    string     `json:"user_id"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Activate  bool       `json:"activate"`
	RequestID string     `json:"request_id,omitempty"`
}

func (in CreateAssignmentInput) validate(p Policy) error {
	if strings.TrimSpace(in.AssetID) == "" || strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: asset_id and user_id are required", assets.ErrValidation)
	}
	if in.Activate && !p.AllowDirectActivation {
		return fmt.Errorf("%w: assignments must be approved before activation", assets.ErrValidation)
	}
	return nil
}

type AssignmentResult struct {
	Assignment assets.Assignment `json:"assignment"`
	Asset      assets.Asset      `json:"asset"`
}

// CloseOutcome is the terminal status of an active assignment.
type CloseOutcome = assets.AssignmentStatus

// AssignmentManager owns checkout and return, and the one-active-holder invariant.
type AssignmentManager struct {
	coord  *Coordinator
	reg    registry
	policy Policy
}

func (m *AssignmentManager) Create(ctx context.Context, in CreateAssignmentInput) (AssignmentResult, error) {
	if err := in.validate(m.policy); err != nil {
		return AssignmentResult{}, err
	}

	var res AssignmentResult
	err := m.coord.Execute(ctx, "assignment.create", func(ctx context.Context, uow *UnitOfWork) error {
		asset, err := m.reg.get(ctx, uow, in.AssetID)
		if err != nil {
			return err
		}
		if err := claimable(asset); err != nil {
			return err
		}
		if err := requireUser(ctx, uow, in.UserID); err != nil {
			return err
		}

		now := uow.Now()
		a := assets.Assignment{
			ID:           uuid.NewString(),
			AssetID:      asset.ID,
			UserID:       in.UserID,
			Status:       assets.AssignmentPending,
			AssignedDate: now,
			DueDate:      in.DueDate,
			Notes:        in.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := uow.Tx().InsertAssignment(ctx, a); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventAssignmentCreated,
			Entity:   assets.EntityAssignment,
			RecordID: a.ID,
			To:       string(a.Status),
			Asset:    asset,
		})
		if err != nil {
			return err
		}

		// Direct activation goes through the same step as approval, so the
		// demotion of competing holders applies to both entry points.
		if in.Activate {
			if err := m.activate(ctx, uow, &asset, &a); err != nil {
				return err
			}
		}
		res = AssignmentResult{Assignment: a, Asset: asset}
		return nil
	})
	return res, err
}

// Activate promotes a PENDING assignment. Inside one unit it demotes every
// other ACTIVE assignment of the asset to RETURNED, marks the target ACTIVE,
// and sets the asset IN_USE with the target's user as holder.
func (m *AssignmentManager) Activate(ctx context.Context, id string) (AssignmentResult, error) {
	if strings.TrimSpace(id) == "" {
		return AssignmentResult{}, fmt.Errorf("%w: assignment id is required", assets.ErrValidation)
	}

	var res AssignmentResult
	err := m.coord.Execute(ctx, "assignment.activate", func(ctx context.Context, uow *UnitOfWork) error {
		a, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := m.activate(ctx, uow, &asset, &a); err != nil {
			return err
		}
		res = AssignmentResult{Assignment: a, Asset: asset}
		return nil
	})
	return res, err
}

func (m *AssignmentManager) activate(ctx context.Context, uow *UnitOfWork, asset *assets.Asset, a *assets.Assignment) error {
	from := a.Status
	if err := uow.Transition(assets.EntityAssignment, a.ID, string(from), string(assets.AssignmentActive)); err != nil {
		return err
	}
	if err := claimable(*asset); err != nil {
		return err
	}

	// Demote before promote: the asset row is locked, so no reader ever sees
	// two ACTIVE rows or none.
	if _, err := demoteActive(ctx, uow, *asset, a.ID, "the asset was assigned to another user"); err != nil {
		return err
	}

	a.Status = assets.AssignmentActive
	a.UpdatedAt = uow.Now()
	if err := uow.Tx().UpdateAssignment(ctx, *a); err != nil {
		return err
	}

	holder := a.UserID
	err := m.reg.put(ctx, uow, asset, assets.Mutation{
		Cause:  assets.CauseAssignmentActivated,
		Status: assets.StatusInUse,
		Holder: &holder,
	})
	if err != nil {
		return err
	}

	return uow.Emit(ctx, Event{
		Type:     assets.EventAssignmentActivated,
		Entity:   assets.EntityAssignment,
		RecordID: a.ID,
		From:     string(from),
		To:       string(a.Status),
		Asset:    *asset,
		Notify: &assets.Notification{
			UserID:  a.UserID,
			Title:   "Asset assigned",
			Message: fmt.Sprintf("Asset %s is now assigned to you.", assetLabel(*asset)),
			Kind:    assets.NotifyAssignment,
		},
	})
}

// Close ends an ACTIVE assignment as RETURNED or COMPLETED. The asset is
// released only if it is still IN_USE by this assignment's user; a newer
// claim by another manager is left untouched.
func (m *AssignmentManager) Close(ctx context.Context, id string, outcome CloseOutcome) (AssignmentResult, error) {
	if strings.TrimSpace(id) == "" {
		return AssignmentResult{}, fmt.Errorf("%w: assignment id is required", assets.ErrValidation)
	}
	if outcome != assets.AssignmentReturned && outcome != assets.AssignmentCompleted {
		return AssignmentResult{}, fmt.Errorf("%w: close outcome must be RETURNED or COMPLETED, got %q", assets.ErrValidation, outcome)
	}

	var res AssignmentResult
	err := m.coord.Execute(ctx, "assignment.close", func(ctx context.Context, uow *UnitOfWork) error {
		a, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := a.Status
		if err := uow.Transition(assets.EntityAssignment, a.ID, string(from), string(outcome)); err != nil {
			return err
		}

		now := uow.Now()
		a.Status = outcome
		a.ReturnedAt = &now
		a.UpdatedAt = now
		if err := uow.Tx().UpdateAssignment(ctx, a); err != nil {
			return err
		}

		heldByThis := asset.AssignedToUserID != nil && *asset.AssignedToUserID == a.UserID
		if asset.Status == assets.StatusInUse && heldByThis {
			err := m.reg.put(ctx, uow, &asset, assets.Mutation{
				Cause:       assets.CauseAssignmentClosed,
				Status:      assets.StatusAvailable,
				ClearHolder: true,
			})
			if err != nil {
				return err
			}
		}

		err = uow.Emit(ctx, Event{
			Type:     assets.EventAssignmentClosed,
			Entity:   assets.EntityAssignment,
			RecordID: a.ID,
			From:     string(from),
			To:       string(a.Status),
			Asset:    asset,
			Notify: &assets.Notification{
				UserID:  a.UserID,
				Title:   "Assignment closed",
				Message: fmt.Sprintf("Your assignment of asset %s is %s.", assetLabel(asset), strings.ToLower(string(a.Status))),
				Kind:    assets.NotifyAssignment,
			},
		})
		if err != nil {
			return err
		}
		res = AssignmentResult{Assignment: a, Asset: asset}
		return nil
	})
	return res, err
}

// Reject declines a PENDING assignment. The asset is not touched.
func (m *AssignmentManager) Reject(ctx context.Context, id string) (AssignmentResult, error) {
	if strings.TrimSpace(id) == "" {
		return AssignmentResult{}, fmt.Errorf("%w: assignment id is required", assets.ErrValidation)
	}

	var res AssignmentResult
	err := m.coord.Execute(ctx, "assignment.reject", func(ctx context.Context, uow *UnitOfWork) error {
		a, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := rejectPending(ctx, uow, asset, &a, "the request was declined"); err != nil {
			return err
		}
		res = AssignmentResult{Assignment: a, Asset: asset}
		return nil
	})
	return res, err
}

// load reads the assignment, locks its asset, then re-reads the assignment so
// the row cannot change under the lock.
func (m *AssignmentManager) load(ctx context.Context, uow *UnitOfWork, id string) (assets.Assignment, assets.Asset, error) {
	a, err := uow.Tx().GetAssignment(ctx, id)
	if err != nil {
		return assets.Assignment{}, assets.Asset{}, err
	}
	asset, err := m.reg.get(ctx, uow, a.AssetID)
	if err != nil {
		return assets.Assignment{}, assets.Asset{}, err
	}
	a, err = uow.Tx().GetAssignment(ctx, id)
	if err != nil {
		return assets.Assignment{}, assets.Asset{}, err
	}
	return a, asset, nil
}

func rejectPending(ctx context.Context, uow *UnitOfWork, asset assets.Asset, a *assets.Assignment, reason string) error {
	from := a.Status
	if err := uow.Transition(assets.EntityAssignment, a.ID, string(from), string(assets.AssignmentRejected)); err != nil {
		return err
	}
	a.Status = assets.AssignmentRejected
	a.UpdatedAt = uow.Now()
	if err := uow.Tx().UpdateAssignment(ctx, *a); err != nil {
		return err
	}
	return uow.Emit(ctx, Event{
		Type:     assets.EventAssignmentRejected,
		Entity:   assets.EntityAssignment,
		RecordID: a.ID,
		From:     string(from),
		To:       string(a.Status),
		Asset:    asset,
		Notify: &assets.Notification{
			UserID:  a.UserID,
			Title:   "Assignment rejected",
			Message: fmt.Sprintf("Your request for asset %s was rejected: %s.", assetLabel(asset), reason),
			Kind:    assets.NotifyAssignment,
		},
	})
}
