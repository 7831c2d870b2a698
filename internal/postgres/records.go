package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

const assetColumns = `id, name, category, serial_number, status, assigned_to_user_id,
	store_id, shelf_id, purchase_date, purchase_cost::text, version, created_at, updated_at`

func scanAsset(row pgx.Row) (assets.Asset, error) {
	var a assets.Asset
	var cost *string
	if err := row.Scan(&a.ID, &a.Name, &a.Category, &a.SerialNumber, &a.Status, &a.AssignedToUserID,
		&a.StoreID, &a.ShelfID, &a.PurchaseDate, &cost, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return a, err
	}
	var err error
	a.PurchaseCost, err = parseNumeric(cost)
	return a, err
}

func (t *tx) InsertAsset(ctx context.Context, a assets.Asset) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO assets (id, name, category, serial_number, status, assigned_to_user_id,
			store_id, shelf_id, purchase_date, purchase_cost, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::numeric,$11,$12,$13)
	`, a.ID, a.Name, a.Category, a.SerialNumber, a.Status, a.AssignedToUserID,
		a.StoreID, a.ShelfID, a.PurchaseDate, numeric(a.PurchaseCost), a.Version, a.CreatedAt, a.UpdatedAt)
	return mapErr(err, "asset "+a.ID)
}

func (t *tx) LockAsset(ctx context.Context, id string) (assets.Asset, error) {
	a, err := scanAsset(t.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1 FOR UPDATE`, id))
	return a, mapErr(err, "asset "+id)
}

func (t *tx) GetAsset(ctx context.Context, id string) (assets.Asset, error) {
	a, err := scanAsset(t.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	return a, mapErr(err, "asset "+id)
}

func (t *tx) UpdateAsset(ctx context.Context, a assets.Asset) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE assets SET name = $2, category = $3, serial_number = $4, status = $5,
			assigned_to_user_id = $6, store_id = $7, shelf_id = $8, purchase_date = $9,
			purchase_cost = $10::numeric, version = $11, updated_at = $12
		WHERE id = $1
	`, a.ID, a.Name, a.Category, a.SerialNumber, a.Status, a.AssignedToUserID,
		a.StoreID, a.ShelfID, a.PurchaseDate, numeric(a.PurchaseCost), a.Version, a.UpdatedAt)
	if err != nil {
		return mapErr(err, "asset "+a.ID)
	}
	return affected(ct, "asset "+a.ID)
}

const assignmentColumns = `id, asset_id, user_id, status, assigned_date, due_date, returned_at,
	notes, created_at, updated_at`

func scanAssignment(row pgx.Row) (assets.Assignment, error) {
	var a assets.Assignment
	err := row.Scan(&a.ID, &a.AssetID, &a.UserID, &a.Status, &a.AssignedDate, &a.DueDate, &a.ReturnedAt,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (t *tx) InsertAssignment(ctx context.Context, a assets.Assignment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.AssetID, a.UserID, a.Status, a.AssignedDate, a.DueDate, a.ReturnedAt,
		a.Notes, a.CreatedAt, a.UpdatedAt)
	return mapErr(err, "assignment "+a.ID)
}

func (t *tx) GetAssignment(ctx context.Context, id string) (assets.Assignment, error) {
	a, err := scanAssignment(t.tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	return a, mapErr(err, "assignment "+id)
}

func (t *tx) UpdateAssignment(ctx context.Context, a assets.Assignment) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE assignments SET status = $2, due_date = $3, returned_at = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`, a.ID, a.Status, a.DueDate, a.ReturnedAt, a.Notes, a.UpdatedAt)
	if err != nil {
		// assignments_one_active surfaces here as a unique violation
		return mapErr(err, "assignment "+a.ID)
	}
	return affected(ct, "assignment "+a.ID)
}

func (t *tx) ListAssignments(ctx context.Context, assetID string, statuses ...assets.AssignmentStatus) ([]assets.Assignment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE asset_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at, id
	`, assetID, statusArgs(statuses))
	if err != nil {
		return nil, mapErr(err, "assignments of "+assetID)
	}
	out, err := collect(rows, scanAssignment)
	return out, mapErr(err, "assignments of "+assetID)
}

const transferColumns = `id, asset_id, from_store_id, from_shelf_id, to_store_id, to_shelf_id, status,
	transfer_date, reason, requested_by_user_id, created_at, updated_at`

func scanTransfer(row pgx.Row) (assets.Transfer, error) {
	var tr assets.Transfer
	err := row.Scan(&tr.ID, &tr.AssetID, &tr.FromStoreID, &tr.FromShelfID, &tr.ToStoreID, &tr.ToShelfID, &tr.Status,
		&tr.TransferDate, &tr.Reason, &tr.RequestedByUserID, &tr.CreatedAt, &tr.UpdatedAt)
	return tr, err
}

func (t *tx) InsertTransfer(ctx context.Context, tr assets.Transfer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, tr.ID, tr.AssetID, tr.FromStoreID, tr.FromShelfID, tr.ToStoreID, tr.ToShelfID, tr.Status,
		tr.TransferDate, tr.Reason, tr.RequestedByUserID, tr.CreatedAt, tr.UpdatedAt)
	return mapErr(err, "transfer "+tr.ID)
}

func (t *tx) GetTransfer(ctx context.Context, id string) (assets.Transfer, error) {
	tr, err := scanTransfer(t.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	return tr, mapErr(err, "transfer "+id)
}

func (t *tx) UpdateTransfer(ctx context.Context, tr assets.Transfer) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE transfers SET status = $2, transfer_date = $3, from_store_id = $4, from_shelf_id = $5, updated_at = $6
		WHERE id = $1
	`, tr.ID, tr.Status, tr.TransferDate, tr.FromStoreID, tr.FromShelfID, tr.UpdatedAt)
	if err != nil {
		return mapErr(err, "transfer "+tr.ID)
	}
	return affected(ct, "transfer "+tr.ID)
}

const maintenanceColumns = `id, asset_id, type, status, description, reported_by_user_id, scheduled_date,
	started_at, completed_at, cost::text, created_at, updated_at`

func scanMaintenance(row pgx.Row) (assets.MaintenanceRecord, error) {
	var m assets.MaintenanceRecord
	var cost *string
	if err := row.Scan(&m.ID, &m.AssetID, &m.Type, &m.Status, &m.Description, &m.ReportedByUserID, &m.ScheduledDate,
		&m.StartedAt, &m.CompletedAt, &cost, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	var err error
	m.Cost, err = parseNumeric(cost)
	return m, err
}

func (t *tx) InsertMaintenance(ctx context.Context, m assets.MaintenanceRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO maintenance_records (id, asset_id, type, status, description, reported_by_user_id,
			scheduled_date, started_at, completed_at, cost, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::numeric,$11,$12)
	`, m.ID, m.AssetID, m.Type, m.Status, m.Description, m.ReportedByUserID, m.ScheduledDate,
		m.StartedAt, m.CompletedAt, numeric(m.Cost), m.CreatedAt, m.UpdatedAt)
	return mapErr(err, "maintenance "+m.ID)
}

func (t *tx) GetMaintenance(ctx context.Context, id string) (assets.MaintenanceRecord, error) {
	m, err := scanMaintenance(t.tx.QueryRow(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_records WHERE id = $1`, id))
	return m, mapErr(err, "maintenance "+id)
}

func (t *tx) UpdateMaintenance(ctx context.Context, m assets.MaintenanceRecord) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE maintenance_records SET status = $2, started_at = $3, completed_at = $4,
			cost = $5::numeric, updated_at = $6
		WHERE id = $1
	`, m.ID, m.Status, m.StartedAt, m.CompletedAt, numeric(m.Cost), m.UpdatedAt)
	if err != nil {
		return mapErr(err, "maintenance "+m.ID)
	}
	return affected(ct, "maintenance "+m.ID)
}

func (t *tx) ListMaintenance(ctx context.Context, assetID string, statuses ...assets.MaintenanceStatus) ([]assets.MaintenanceRecord, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+maintenanceColumns+` FROM maintenance_records
		WHERE asset_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at, id
	`, assetID, statusArgs(statuses))
	if err != nil {
		return nil, mapErr(err, "maintenance of "+assetID)
	}
	out, err := collect(rows, scanMaintenance)
	return out, mapErr(err, "maintenance of "+assetID)
}

const disposalColumns = `id, asset_id, method, reason, value::text, status, requested_by_user_id,
	approved_at, completed_at, created_at, updated_at`

func scanDisposal(row pgx.Row) (assets.Disposal, error) {
	var d assets.Disposal
	var value *string
	if err := row.Scan(&d.ID, &d.AssetID, &d.Method, &d.Reason, &value, &d.Status, &d.RequestedByUserID,
		&d.ApprovedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return d, err
	}
	var err error
	d.Value, err = parseNumeric(value)
	return d, err
}

func (t *tx) InsertDisposal(ctx context.Context, d assets.Disposal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO disposals (id, asset_id, method, reason, value, status, requested_by_user_id,
			approved_at, completed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11)
	`, d.ID, d.AssetID, d.Method, d.Reason, numeric(d.Value), d.Status, d.RequestedByUserID,
		d.ApprovedAt, d.CompletedAt, d.CreatedAt, d.UpdatedAt)
	return mapErr(err, "disposal "+d.ID)
}

func (t *tx) GetDisposal(ctx context.Context, id string) (assets.Disposal, error) {
	d, err := scanDisposal(t.tx.QueryRow(ctx, `SELECT `+disposalColumns+` FROM disposals WHERE id = $1`, id))
	return d, mapErr(err, "disposal "+id)
}

func (t *tx) UpdateDisposal(ctx context.Context, d assets.Disposal) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE disposals SET status = $2, approved_at = $3, completed_at = $4, updated_at = $5
		WHERE id = $1
	`, d.ID, d.Status, d.ApprovedAt, d.CompletedAt, d.UpdatedAt)
	if err != nil {
		return mapErr(err, "disposal "+d.ID)
	}
	return affected(ct, "disposal "+d.ID)
}

func (t *tx) ListDisposals(ctx context.Context, assetID string, statuses ...assets.DisposalStatus) ([]assets.Disposal, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+disposalColumns+` FROM disposals
		WHERE asset_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at, id
	`, assetID, statusArgs(statuses))
	if err != nil {
		return nil, mapErr(err, "disposals of "+assetID)
	}
	out, err := collect(rows, scanDisposal)
	return out, mapErr(err, "disposals of "+assetID)
}
