package assets

import (
	"encoding/json"
	"time"
)

const (
	EventAssignmentCreated   = "AssignmentCreated"
	EventAssignmentActivated = "AssignmentActivated"
	EventAssignmentDemoted   = "AssignmentDemoted"
	EventAssignmentClosed    = "AssignmentClosed"
	EventAssignmentRejected  = "AssignmentRejected"
	EventTransferCreated     = "TransferCreated"
	EventTransferCompleted   = "TransferCompleted"
	EventTransferRejected    = "TransferRejected"
	EventMaintenanceCreated  = "MaintenanceCreated"
	EventMaintenanceStarted  = "MaintenanceStarted"
	EventMaintenanceClosed   = "MaintenanceClosed"
	EventDisposalCreated     = "DisposalCreated"
	EventDisposalApproved    = "DisposalApproved"
	EventDisposalRejected    = "DisposalRejected"
	EventDisposalCompleted   = "DisposalCompleted"
	EventAssetRegistered     = "AssetRegistered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // asset id
	Payload       json.RawMessage `json:"payload"`
}

// TransitionPayload is carried by every lifecycle event. Asset is the
// snapshot as of the committing transaction.
type TransitionPayload struct {
	Entity   Entity `json:"entity"`
	RecordID string `json:"record_id"`
	AssetID  string `json:"asset_id"`
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	Asset    Asset  `json:"asset"`
}

type NotificationKind string

const (
	NotifyAssignment  NotificationKind = "ASSIGNMENT"
	NotifyTransfer    NotificationKind = "TRANSFER"
	NotifyMaintenance NotificationKind = "MAINTENANCE"
	NotifyDisposal    NotificationKind = "DISPOSAL"
)

type Notification struct {
	UserID  string           `json:"user_id"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxDispatched OutboxStatus = "DISPATCHED"
	OutboxDead       OutboxStatus = "DEAD"
)

// OutboxEntry is written in the same transaction as the state change it
// describes and delivered after commit.
type OutboxEntry struct {
	ID           string        `json:"id"`
	Envelope     Envelope      `json:"envelope"`
	Notification *Notification `json:"notification,omitempty"`
	Status       OutboxStatus  `json:"status"`
	Attempts     int           `json:"attempts"`
	LastError    string        `json:"last_error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
