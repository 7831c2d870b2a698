package lifecycle

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// registry is the only writer of asset rows. It is reachable exclusively
// through a UnitOfWork, and every write carries the Cause that derived it.
type registry struct{}

// get locks the asset row for the rest of the unit.
func (registry) get(ctx context.Context, uow *UnitOfWork, id string) (assets.Asset, error) {
	return uow.tx.LockAsset(ctx, id)
}

func (registry) put(ctx context.Context, uow *UnitOfWork, a *assets.Asset, m assets.Mutation) error {
	if err := m.Apply(a); err != nil {
		return err
	}
	a.Version++
	a.UpdatedAt = uow.now
	if err := uow.tx.UpdateAsset(ctx, *a); err != nil {
		return err
	}
	uow.touch(*a)
	return nil
}

func (registry) insert(ctx context.Context, uow *UnitOfWork, a *assets.Asset) error {
	a.Status = assets.StatusAvailable
	a.AssignedToUserID = nil
	a.Version = 1
	a.CreatedAt = uow.now
	a.UpdatedAt = uow.now
	if err := uow.tx.InsertAsset(ctx, *a); err != nil {
		return err
	}
	uow.touch(*a)
	return nil
}

// claimable rejects any new claim on an asset in a terminal status.
func claimable(a assets.Asset) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: asset %s is %s", assets.ErrInvalidState, a.ID, a.Status)
	}
	return nil
}

func requireUser(ctx context.Context, uow *UnitOfWork, id string) error {
	ok, err := uow.tx.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %s", assets.ErrNotFound, id)
	}
	return nil
}

// demoteActive closes every ACTIVE assignment of the asset except keepID as
// RETURNED, stamps returnedAt and notifies each displaced holder. It does not
// touch the asset row; callers follow it with their own registry write.
func demoteActive(ctx context.Context, uow *UnitOfWork, asset assets.Asset, keepID, reason string) ([]assets.Assignment, error) {
	active, err := uow.tx.ListAssignments(ctx, asset.ID, assets.AssignmentActive)
	if err != nil {
		return nil, err
	}

	var demoted []assets.Assignment
	for _, a := range active {
		if a.ID == keepID {
			continue
		}
		if err := uow.Transition(assets.EntityAssignment, a.ID, string(a.Status), string(assets.AssignmentReturned)); err != nil {
			return nil, err
		}
		now := uow.now
		a.Status = assets.AssignmentReturned
		a.ReturnedAt = &now
		a.UpdatedAt = now
		if err := uow.tx.UpdateAssignment(ctx, a); err != nil {
			return nil, err
		}
		err := uow.Emit(ctx, Event{
			Type:     assets.EventAssignmentDemoted,
			Entity:   assets.EntityAssignment,
			RecordID: a.ID,
			From:     string(assets.AssignmentActive),
			To:       string(assets.AssignmentReturned),
			Asset:    asset,
			Notify: &assets.Notification{
				UserID:  a.UserID,
				Title:   "Asset returned",
				Message: fmt.Sprintf("Your assignment of asset %s was closed: %s.", assetLabel(asset), reason),
				Kind:    assets.NotifyAssignment,
			},
		})
		if err != nil {
			return nil, err
		}
		demoted = append(demoted, a)
	}
	return demoted, nil
}

func assetLabel(a assets.Asset) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
