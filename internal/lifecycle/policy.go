package lifecycle

// Policy holds the business switches that change which transitions an entry
// point may combine into one unit of work.
type Policy struct {
	// AllowDirectActivation lets CreateAssignment activate in the same unit.
	AllowDirectActivation bool
	// AutoCompleteTransfers completes a transfer as soon as it is created.
	AutoCompleteTransfers bool
}

func DefaultPolicy() Policy {
	return Policy{AllowDirectActivation: true}
}
