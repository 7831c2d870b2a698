package assets

import "fmt"

// Cause names the manager transition that produced an asset write. Asset
// status is never written without one.
type Cause string

const (
	CauseAssignmentActivated Cause = "ASSIGNMENT_ACTIVATED"
	CauseAssignmentClosed    Cause = "ASSIGNMENT_CLOSED"
	CauseMaintenanceStarted  Cause = "MAINTENANCE_STARTED"
	CauseMaintenanceClosed   Cause = "MAINTENANCE_CLOSED"
	CauseDisposalApproved    Cause = "DISPOSAL_APPROVED"
	CauseDisposalCompleted   Cause = "DISPOSAL_COMPLETED"
	CauseTransferCompleted   Cause = "TRANSFER_COMPLETED"
)

// derivedStatus lists the statuses each cause may derive. A cause absent
// from the map may not touch status at all.
var derivedStatus = map[Cause]map[Status]bool{
	CauseAssignmentActivated: {StatusInUse: true},
	CauseAssignmentClosed:    {StatusAvailable: true},
	CauseMaintenanceStarted:  {StatusMaintenance: true},
	CauseMaintenanceClosed:   {StatusAvailable: true},
	CauseDisposalApproved:    {StatusDisposed: true},
	CauseDisposalCompleted:   {StatusDisposed: true, StatusRetired: true, StatusLost: true},
}

var clearsHolder = map[Cause]bool{
	CauseAssignmentClosed:   true,
	CauseMaintenanceStarted: true,
	CauseMaintenanceClosed:  true,
	CauseDisposalApproved:   true,
	CauseDisposalCompleted:  true,
}

type Location struct {
	StoreID string
	ShelfID *string
}

// Mutation is the only way to change an asset's derived fields.
type Mutation struct {
	Cause       Cause
	Status      Status // empty keeps the current status
	Holder      *string
	ClearHolder bool
	Location    *Location
}

// Apply validates m against its cause and writes it into a.
func (m Mutation) Apply(a *Asset) error {
	if a.Status.Terminal() && m.Cause != CauseDisposalCompleted {
		return fmt.Errorf("%w: asset %s is %s", ErrInvalidState, a.ID, a.Status)
	}
	if m.Status != "" && !derivedStatus[m.Cause][m.Status] {
		return fmt.Errorf("%w: %s cannot derive status %s", ErrInvalidState, m.Cause, m.Status)
	}
	if m.Holder != nil && (m.Cause != CauseAssignmentActivated || m.Status != StatusInUse) {
		return fmt.Errorf("%w: %s cannot set a holder", ErrInvalidState, m.Cause)
	}
	if m.Cause == CauseAssignmentActivated && m.Holder == nil {
		return fmt.Errorf("%w: activation without holder", ErrInvalidState)
	}
	if m.ClearHolder && !clearsHolder[m.Cause] {
		return fmt.Errorf("%w: %s cannot clear the holder", ErrInvalidState, m.Cause)
	}
	if m.Location != nil && m.Cause != CauseTransferCompleted {
		return fmt.Errorf("%w: %s cannot relocate an asset", ErrInvalidState, m.Cause)
	}

	next := *a
	if m.Status != "" {
		next.Status = m.Status
	}
	if m.Holder != nil {
		h := *m.Holder
		next.AssignedToUserID = &h
	}
	if m.ClearHolder {
		next.AssignedToUserID = nil
	}
	if m.Location != nil {
		store := m.Location.StoreID
		next.StoreID = &store
		next.ShelfID = m.Location.ShelfID
	}
	if next.AssignedToUserID != nil && next.Status != StatusInUse {
		return fmt.Errorf("%w: asset %s would keep a holder while %s", ErrInvalidState, a.ID, next.Status)
	}

	*a = next
	return nil
}
