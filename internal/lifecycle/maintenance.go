package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

type CreateMaintenanceInput struct {
	AssetID          string                 `json:"asset_id"`
	Type             assets.MaintenanceType `json:"type"`
	Description      string                 `json:"description,omitempty"`
	ReportedByUserID *string                `json:"reported_by_user_id,omitempty"`
	ScheduledDate    *time.Time             `json:"scheduled_date,omitempty"`
	Cost             *decimal.Decimal       `json:"cost,omitempty"`
	StartNow         bool                   `json:"start_now"`
	RequestID        string                 `json:"request_id,omitempty"`
}

func (in CreateMaintenanceInput) validate() error {
	if strings.TrimSpace(in.AssetID) == "" {
		return fmt.Errorf("%w: asset_id is required", assets.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown maintenance type %q", assets.ErrValidation, in.Type)
	}
	return validMoney("cost", in.Cost)
}

type MaintenanceResult struct {
	Maintenance assets.MaintenanceRecord `json:"maintenance"`
	Asset       assets.Asset             `json:"asset"`
}

// MaintenanceManager takes assets out of use for service and returns them.
type MaintenanceManager struct {
	coord *Coordinator
	reg   registry
}

func (m *MaintenanceManager) Create(ctx context.Context, in CreateMaintenanceInput) (MaintenanceResult, error) {
	if err := in.validate(); err != nil {
		return MaintenanceResult{}, err
	}

	var res MaintenanceResult
	err := m.coord.Execute(ctx, "maintenance.create", func(ctx context.Context, uow *UnitOfWork) error {
		asset, err := m.reg.get(ctx, uow, in.AssetID)
		if err != nil {
			return err
		}
		if err := claimable(asset); err != nil {
			return err
		}
		if in.ReportedByUserID != nil {
			if err := requireUser(ctx, uow, *in.ReportedByUserID); err != nil {
				return err
			}
		}

		now := uow.Now()
		rec := assets.MaintenanceRecord{
			ID:               uuid.NewString(),
			AssetID:          asset.ID,
			Type:             in.Type,
			Status:           assets.MaintenanceScheduled,
			Description:      in.Description,
			ReportedByUserID: in.ReportedByUserID,
			ScheduledDate:    in.ScheduledDate,
			Cost:             in.Cost,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := uow.Tx().InsertMaintenance(ctx, rec); err != nil {
			return err
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventMaintenanceCreated,
			Entity:   assets.EntityMaintenance,
			RecordID: rec.ID,
			To:       string(rec.Status),
			Asset:    asset,
		})
		if err != nil {
			return err
		}

		if in.StartNow {
			if err := m.start(ctx, uow, &asset, &rec); err != nil {
				return err
			}
		}
		res = MaintenanceResult{Maintenance: rec, Asset: asset}
		return nil
	})
	return res, err
}

// Start moves a SCHEDULED record IN_PROGRESS. Every ACTIVE assignment of the
// asset is closed as RETURNED and the asset goes to MAINTENANCE without a
// holder.
func (m *MaintenanceManager) Start(ctx context.Context, id string) (MaintenanceResult, error) {
	if strings.TrimSpace(id) == "" {
		return MaintenanceResult{}, fmt.Errorf("%w: maintenance id is required", assets.ErrValidation)
	}

	var res MaintenanceResult
	err := m.coord.Execute(ctx, "maintenance.start", func(ctx context.Context, uow *UnitOfWork) error {
		rec, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := m.start(ctx, uow, &asset, &rec); err != nil {
			return err
		}
		res = MaintenanceResult{Maintenance: rec, Asset: asset}
		return nil
	})
	return res, err
}

func (m *MaintenanceManager) start(ctx context.Context, uow *UnitOfWork, asset *assets.Asset, rec *assets.MaintenanceRecord) error {
	from := rec.Status
	if err := uow.Transition(assets.EntityMaintenance, rec.ID, string(from), string(assets.MaintenanceInProgress)); err != nil {
		return err
	}
	if err := claimable(*asset); err != nil {
		return err
	}

	if _, err := demoteActive(ctx, uow, *asset, "", "the asset was taken in for maintenance"); err != nil {
		return err
	}

	now := uow.Now()
	rec.Status = assets.MaintenanceInProgress
	rec.StartedAt = &now
	rec.UpdatedAt = now
	if err := uow.Tx().UpdateMaintenance(ctx, *rec); err != nil {
		return err
	}

	err := m.reg.put(ctx, uow, asset, assets.Mutation{
		Cause:       assets.CauseMaintenanceStarted,
		Status:      assets.StatusMaintenance,
		ClearHolder: true,
	})
	if err != nil {
		return err
	}

	return uow.Emit(ctx, Event{
		Type:     assets.EventMaintenanceStarted,
		Entity:   assets.EntityMaintenance,
		RecordID: rec.ID,
		From:     string(from),
		To:       string(rec.Status),
		Asset:    *asset,
	})
}

// Close finishes a record as COMPLETED or CANCELLED. Closing an IN_PROGRESS
// record returns the asset to AVAILABLE only while it is still in
// MAINTENANCE and no other record holds it there.
func (m *MaintenanceManager) Close(ctx context.Context, id string, outcome assets.MaintenanceStatus, cost *decimal.Decimal) (MaintenanceResult, error) {
	if strings.TrimSpace(id) == "" {
		return MaintenanceResult{}, fmt.Errorf("%w: maintenance id is required", assets.ErrValidation)
	}
	if outcome != assets.MaintenanceCompleted && outcome != assets.MaintenanceCancelled {
		return MaintenanceResult{}, fmt.Errorf("%w: close outcome must be COMPLETED or CANCELLED, got %q", assets.ErrValidation, outcome)
	}
	if err := validMoney("cost", cost); err != nil {
		return MaintenanceResult{}, err
	}

	var res MaintenanceResult
	err := m.coord.Execute(ctx, "maintenance.close", func(ctx context.Context, uow *UnitOfWork) error {
		rec, asset, err := m.load(ctx, uow, id)
		if err != nil {
			return err
		}
		from := rec.Status
		if err := uow.Transition(assets.EntityMaintenance, rec.ID, string(from), string(outcome)); err != nil {
			return err
		}

		now := uow.Now()
		rec.Status = outcome
		rec.UpdatedAt = now
		if outcome == assets.MaintenanceCompleted {
			rec.CompletedAt = &now
		}
		if cost != nil {
			rec.Cost = cost
		}
		if err := uow.Tx().UpdateMaintenance(ctx, rec); err != nil {
			return err
		}

		if from == assets.MaintenanceInProgress && asset.Status == assets.StatusMaintenance {
			others, err := uow.Tx().ListMaintenance(ctx, asset.ID, assets.MaintenanceInProgress)
			if err != nil {
				return err
			}
			if !hasOther(others, rec.ID) {
				err := m.reg.put(ctx, uow, &asset, assets.Mutation{
					Cause:  assets.CauseMaintenanceClosed,
					Status: assets.StatusAvailable,
				})
				if err != nil {
					return err
				}
			}
		}

		var notice *assets.Notification
		if outcome == assets.MaintenanceCompleted && rec.ReportedByUserID != nil {
			notice = &assets.Notification{
				UserID:  *rec.ReportedByUserID,
				Title:   "Maintenance resolved",
				Message: fmt.Sprintf("The %s reported for asset %s has been resolved.", strings.ToLower(strings.ReplaceAll(string(rec.Type), "_", " ")), assetLabel(asset)),
				Kind:    assets.NotifyMaintenance,
			}
		}
		err = uow.Emit(ctx, Event{
			Type:     assets.EventMaintenanceClosed,
			Entity:   assets.EntityMaintenance,
			RecordID: rec.ID,
			From:     string(from),
			To:       string(rec.Status),
			Asset:    asset,
			Notify:   notice,
		})
		if err != nil {
			return err
		}
		res = MaintenanceResult{Maintenance: rec, Asset: asset}
		return nil
	})
	return res, err
}

func (m *MaintenanceManager) load(ctx context.Context, uow *UnitOfWork, id string) (assets.MaintenanceRecord, assets.Asset, error) {
	rec, err := uow.Tx().GetMaintenance(ctx, id)
	if err != nil {
		return assets.MaintenanceRecord{}, assets.Asset{}, err
	}
	asset, err := m.reg.get(ctx, uow, rec.AssetID)
	if err != nil {
		return assets.MaintenanceRecord{}, assets.Asset{}, err
	}
	rec, err = uow.Tx().GetMaintenance(ctx, id)
	if err != nil {
		return assets.MaintenanceRecord{}, assets.Asset{}, err
	}
	return rec, asset, nil
}

func hasOther(recs []assets.MaintenanceRecord, id string) bool {
	for _, r := range recs {
		if r.ID != id {
			return true
		}
	}
	return false
}
