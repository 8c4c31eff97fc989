package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procura-ims/procura/internal/shared"
)

func staffActor(role string) shared.Actor {
	return shared.Actor{Kind: shared.ActorStaff, UserID: 7, Role: role}
}

func supplierActor(id int64) shared.Actor {
	return shared.Actor{Kind: shared.ActorSupplier, SupplierID: id}
}

func TestRoleMatrixGrants(t *testing.T) {
	cases := []struct {
		role string
		cap  Capability
		want bool
	}{
		{RoleAdmin, CapManagePOStatusAll, true},
		{RoleAdmin, CapDeletePO, true},
		{RoleAdmin, CapManageUsers, true},
		{RoleAdmin, CapManageSettings, true},
		{RoleAdmin, CapManagePOStatusBasic, false},
		{RoleManager, CapManagePOStatusAll, true},
		{RoleManager, CapDeletePO, false},
		{RoleManager, CapManageUsers, false},
		{RoleManager, CapManageSettings, false},
		{RoleStaff, CapManagePOStatusBasic, true},
		{RoleStaff, CapManagePOStatusAll, false},
		{RoleStaff, CapCreatePO, true},
		{RoleStaff, CapExportPO, true},
		{RoleStaff, CapManageSuppliers, false},
		{RoleStaff, CapAdjustStock, true},
		{"Guest", CapViewDashboard, false},
		{"", CapViewDashboard, false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, RoleGrants(tc.role, tc.cap), "%s / %s", tc.role, tc.cap)
	}
}

func TestRoleCapabilitiesCopies(t *testing.T) {
	caps := RoleCapabilities(RoleStaff)
	require.NotEmpty(t, caps)
	caps[0] = Capability("mutated")
	require.NotContains(t, RoleCapabilities(RoleStaff), Capability("mutated"))

	require.Nil(t, RoleCapabilities("Unknown"))
}

func TestGateRequireStaff(t *testing.T) {
	gate := NewGate()

	require.NoError(t, gate.RequireStaff(staffActor(RoleAdmin), CapDeletePO))
	require.NoError(t, gate.RequireStaff(staffActor(RoleManager)))

	err := gate.RequireStaff(staffActor(RoleManager), CapDeletePO)
	require.ErrorIs(t, err, ErrForbidden)

	err = gate.RequireStaff(supplierActor(3), CapViewPOList)
	require.ErrorIs(t, err, ErrForbidden)

	err = gate.RequireStaff(shared.Actor{}, CapViewPOList)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGateRequireAnyStaff(t *testing.T) {
	gate := NewGate()

	require.NoError(t, gate.RequireAnyStaff(staffActor(RoleStaff), CapManagePOStatusAll, CapManagePOStatusBasic))

	err := gate.RequireAnyStaff(staffActor(RoleStaff), CapManagePOStatusAll, CapDeletePO)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGateSupplierOwnership(t *testing.T) {
	gate := NewGate()

	require.NoError(t, gate.RequireSupplierOwner(supplierActor(11), 11))

	err := gate.RequireSupplierOwner(supplierActor(11), 12)
	require.ErrorIs(t, err, ErrForbidden)

	err = gate.RequireSupplierOwner(staffActor(RoleAdmin), 11)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGateCan(t *testing.T) {
	gate := NewGate()

	require.True(t, gate.Can(staffActor(RoleAdmin), CapManageSettings))
	require.False(t, gate.Can(staffActor(RoleStaff), CapManageSettings))
	require.False(t, gate.Can(supplierActor(5), CapViewItems))
}
