package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		entity Entity
		from   string
		to     string
		want   bool
	}{
		{EntityAssignment, "PENDING", "ACTIVE", true},
		{EntityAssignment, "PENDING", "REJECTED", true},
		{EntityAssignment, "ACTIVE", "RETURNED", true},
		{EntityAssignment, "ACTIVE", "COMPLETED", true},
		{EntityAssignment, "PENDING", "RETURNED", false},
		{EntityAssignment, "RETURNED", "ACTIVE", false},
		{EntityAssignment, "REJECTED", "ACTIVE", false},
		{EntityTransfer, "PENDING", "COMPLETED", true},
		{EntityTransfer, "PENDING", "REJECTED", true},
		{EntityTransfer, "COMPLETED", "PENDING", false},
		{EntityMaintenance, "SCHEDULED", "IN_PROGRESS", true},
		{EntityMaintenance, "SCHEDULED", "CANCELLED", true},
		{EntityMaintenance, "IN_PROGRESS", "COMPLETED", true},
		{EntityMaintenance, "IN_PROGRESS", "CANCELLED", true},
		{EntityMaintenance, "SCHEDULED", "COMPLETED", false},
		{EntityMaintenance, "COMPLETED", "IN_PROGRESS", false},
		{EntityDisposal, "PENDING", "APPROVED", true},
		{EntityDisposal, "PENDING", "REJECTED", true},
		{EntityDisposal, "APPROVED", "COMPLETED", true},
		{EntityDisposal, "PENDING", "COMPLETED", false},
		{EntityDisposal, "APPROVED", "PENDING", false},
		// statuses of one lattice are not valid in another
		{EntityTransfer, "SCHEDULED", "IN_PROGRESS", false},
	}

	for _, tc := range cases {
		t.Run(string(tc.entity)+":"+tc.from+"->"+tc.to, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.entity, tc.from, tc.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDisposed.Terminal())
	assert.True(t, StatusRetired.Terminal())
	assert.True(t, StatusLost.Terminal())
	assert.False(t, StatusAvailable.Terminal())
	assert.False(t, StatusInUse.Terminal())
	assert.False(t, StatusMaintenance.Terminal())
	assert.False(t, StatusReserved.Terminal())
}

func TestDisposalMethodFinalStatus(t *testing.T) {
	assert.Equal(t, StatusLost, DisposalLost.FinalStatus())
	assert.Equal(t, StatusRetired, DisposalRetirement.FinalStatus())
	assert.Equal(t, StatusDisposed, DisposalSale.FinalStatus())
	assert.Equal(t, StatusDisposed, DisposalScrap.FinalStatus())
}
