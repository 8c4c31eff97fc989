// Package rbac resolves staff roles into capability sets and answers
// authorization questions for both staff and supplier identities.
package rbac

// Capability is a named permission granted through a staff role.
type Capability string

// Purchase order capabilities.
const (
	CapManagePO            Capability = "manage_po"
	CapViewPOList          Capability = "view_po_list"
	CapViewPODetails       Capability = "view_po_details"
	CapCreatePO            Capability = "create_po"
	CapManagePOStatusAll   Capability = "manage_po_status_all"
	CapManagePOStatusBasic Capability = "manage_po_status_basic"
	CapDeletePO            Capability = "delete_po"
	CapExportPO            Capability = "export_po"
)

// Item and supplier capabilities.
const (
	CapManageSuppliers Capability = "manage_suppliers"
	CapViewItems       Capability = "view_items"
	CapEditItems       Capability = "edit_items"
	CapAdjustStock     Capability = "adjust_stock"
	CapDeleteItems     Capability = "delete_items"
)

// Administrative and reporting capabilities.
const (
	CapManageUsers       Capability = "manage_users"
	CapViewLogs          Capability = "view_logs"
	CapViewUsersList     Capability = "view_users_list"
	CapViewUsersDetails  Capability = "view_users_details"
	CapViewNotifications Capability = "view_notifications"
	CapViewDashboard     Capability = "view_dashboard"
	CapManageSettings    Capability = "manage_settings"
	CapViewReports       Capability = "view_reports"
	CapViewArchives      Capability = "view_archives"
)

// Staff role names. Roles are fixed; there is no role administration UI.
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleStaff   = "Staff"
)

// roleMatrix is the fixed role to capability grant table. An unknown role
// grants nothing.
var roleMatrix = map[string][]Capability{
	RoleAdmin: {
		CapManageSuppliers,
		CapManagePO,
		CapViewPOList,
		CapViewPODetails,
		CapCreatePO,
		CapManagePOStatusAll,
		CapDeletePO,
		CapExportPO,
		CapManageUsers,
		CapViewLogs,
		CapViewUsersList,
		CapViewUsersDetails,
		CapViewNotifications,
		CapViewDashboard,
		CapManageSettings,
		CapViewReports,
		CapViewArchives,
		CapViewItems,
		CapEditItems,
		CapAdjustStock,
		CapDeleteItems,
	},
	RoleManager: {
		CapManageSuppliers,
		CapManagePO,
		CapViewPOList,
		CapViewPODetails,
		CapCreatePO,
		CapManagePOStatusAll,
		CapExportPO,
		CapViewLogs,
		CapViewUsersList,
		CapViewUsersDetails,
		CapViewNotifications,
		CapViewDashboard,
		CapViewReports,
		CapViewArchives,
		CapViewItems,
		CapEditItems,
		CapAdjustStock,
		CapDeleteItems,
	},
	RoleStaff: {
		CapViewUsersList,
		CapViewNotifications,
		CapViewDashboard,
		CapViewItems,
		CapEditItems,
		CapAdjustStock,
		CapDeleteItems,
		CapViewPOList,
		CapViewPODetails,
		CapCreatePO,
		CapManagePOStatusBasic,
		CapExportPO,
	},
}

// RoleCapabilities returns the capability set granted to a role. The result
// is a copy; callers may not mutate the matrix.
func RoleCapabilities(role string) []Capability {
	grants, ok := roleMatrix[role]
	if !ok {
		return nil
	}
	out := make([]Capability, len(grants))
	copy(out, grants)
	return out
}

// RoleGrants reports whether the role includes the capability.
func RoleGrants(role string, cap Capability) bool {
	for _, granted := range roleMatrix[role] {
		if granted == cap {
			return true
		}
	}
	return false
}
