package assets

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusInUse       Status = "IN_USE"
	StatusMaintenance Status = "MAINTENANCE"
	StatusDisposed    Status = "DISPOSED"
	StatusRetired     Status = "RETIRED"
	StatusLost        Status = "LOST"
	StatusReserved    Status = "RESERVED"
)

// Terminal reports whether the asset can no longer be claimed by any workflow.
func (s Status) Terminal() bool {
	return s == StatusDisposed || s == StatusRetired || s == StatusLost
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusDisposed,
		StatusRetired, StatusLost, StatusReserved:
		return true
	}
	return false
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentReturned  AssignmentStatus = "RETURNED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentRejected  AssignmentStatus = "REJECTED"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferRejected  TransferStatus = "REJECTED"
)

type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "SCHEDULED"
	MaintenanceInProgress MaintenanceStatus = "IN_PROGRESS"
	MaintenanceCompleted  MaintenanceStatus = "COMPLETED"
	MaintenanceCancelled  MaintenanceStatus = "CANCELLED"
)

type DisposalStatus string

const (
	DisposalPending   DisposalStatus = "PENDING"
	DisposalApproved  DisposalStatus = "APPROVED"
	DisposalRejected  DisposalStatus = "REJECTED"
	DisposalCompleted DisposalStatus = "COMPLETED"
)

// Entity names a workflow type in the transition table.
type Entity string

const (
	EntityAssignment  Entity = "assignment"
	EntityTransfer    Entity = "transfer"
	EntityMaintenance Entity = "maintenance"
	EntityDisposal    Entity = "disposal"

	// EntityAsset labels registry events; it has no lattice.
	EntityAsset Entity = "asset"
)

// validNext is the single transition table for every workflow lattice.
// Statuses missing from a lattice have no outgoing edges.
var validNext = map[Entity]map[string]map[string]bool{
	EntityAssignment: {
		string(AssignmentPending): {string(AssignmentActive): true, string(AssignmentRejected): true},
		string(AssignmentActive):  {string(AssignmentReturned): true, string(AssignmentCompleted): true},
	},
	EntityTransfer: {
		string(TransferPending): {string(TransferCompleted): true, string(TransferRejected): true},
	},
	EntityMaintenance: {
		string(MaintenanceScheduled):  {string(MaintenanceInProgress): true, string(MaintenanceCancelled): true},
		string(MaintenanceInProgress): {string(MaintenanceCompleted): true, string(MaintenanceCancelled): true},
	},
	EntityDisposal: {
		string(DisposalPending):  {string(DisposalApproved): true, string(DisposalRejected): true},
		string(DisposalApproved): {string(DisposalCompleted): true},
	},
}

func CanTransition(entity Entity, from, to string) bool {
	return validNext[entity][from][to]
}
