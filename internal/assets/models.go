package assets

import (
	"time"

	"github.com/shopspring/decimal"
)

type Asset struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	SerialNumber     string           `json:"serial_number,omitempty"`
	Status           Status           `json:"status"`
	AssignedToUserID *string          `json:"assigned_to_user_id,omitempty"`
	StoreID          *string          `json:"store_id,omitempty"`
	ShelfID          *string          `json:"shelf_id,omitempty"`
	PurchaseDate     *time.Time       `json:"purchase_date,omitempty"`
	PurchaseCost     *decimal.Decimal `json:"purchase_cost,omitempty"`
	Version          int64            `json:"version"` // bumped on every write
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type Assignment struct {
	ID           string           `json:"id"`
	AssetID      string           `json:"asset_id"`
	UserID       string           `json:"user_id"`
	Status       AssignmentStatus `json:"status"`
	AssignedDate time.Time        `json:"assigned_date"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	ReturnedAt   *time.Time       `json:"returned_at,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Transfer struct {
	ID                string         `json:"id"`
	AssetID           string         `json:"asset_id"`
	FromStoreID       *string        `json:"from_store_id,omitempty"`
	FromShelfID       *string        `json:"from_shelf_id,omitempty"`
	ToStoreID         string         `json:"to_store_id"`
	ToShelfID         *string        `json:"to_shelf_id,omitempty"`
	Status            TransferStatus `json:"status"`
	TransferDate      *time.Time     `json:"transfer_date,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	RequestedByUserID *string        `json:"requested_by_user_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type MaintenanceType string

const (
	MaintenancePreventive  MaintenanceType = "PREVENTIVE"
	MaintenanceCorrective  MaintenanceType = "CORRECTIVE"
	MaintenanceInspection  MaintenanceType = "INSPECTION"
	MaintenanceIssueReport MaintenanceType = "ISSUE_REPORT"
)

func (t MaintenanceType) Valid() bool {
	switch t {
	case MaintenancePreventive, MaintenanceCorrective, MaintenanceInspection, MaintenanceIssueReport:
		return true
	}
	return false
}

type MaintenanceRecord struct {
	ID               string            `json:"id"`
	AssetID          string            `json:"asset_id"`
	Type             MaintenanceType   `json:"type"`
	Status           MaintenanceStatus `json:"status"`
	Description      string            `json:"description,omitempty"`
	ReportedByUserID *string           `json:"reported_by_user_id,omitempty"`
	ScheduledDate    *time.Time        `json:"scheduled_date,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Cost             *decimal.Decimal  `json:"cost,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type DisposalMethod string

const (
	DisposalSale       DisposalMethod = "SALE"
	DisposalDonation   DisposalMethod = "DONATION"
	DisposalRecycle    DisposalMethod = "RECYCLE"
	DisposalScrap      DisposalMethod = "SCRAP"
	DisposalRetirement DisposalMethod = "RETIREMENT"
	DisposalLost       DisposalMethod = "LOST"
)

func (m DisposalMethod) Valid() bool {
	switch m {
	case DisposalSale, DisposalDonation, DisposalRecycle, DisposalScrap, DisposalRetirement, DisposalLost:
		return true
	}
	return false
}

// FinalStatus is the asset status once a disposal with this method completes.
func (m DisposalMethod) FinalStatus() Status {
	switch m {
	case DisposalLost:
		return StatusLost
	case DisposalRetirement:
		return StatusRetired
	default:
		return StatusDisposed
	}
}

type Disposal struct {
	ID                string           `json:"id"`
	AssetID           string           `json:"asset_id"`
	Method            DisposalMethod   `json:"method"`
	Reason            string           `json:"reason,omitempty"`
	Value             *decimal.Decimal `json:"value,omitempty"`
	Status            DisposalStatus   `json:"status"`
	RequestedByUserID *string          `json:"requested_by_user_id,omitempty"`
	ApprovedAt        *time.Time       `json:"approved_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
