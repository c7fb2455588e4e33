package user

type Permission string

const (
	// Payroll
	PermissionPayrollView     Permission = "payroll.view"
	PermissionPayrollGenerate Permission = "payroll.generate"
	PermissionPayrollClose    Permission = "payroll.close"
	PermissionPayrollExport   Permission = "payroll.export"
	PermissionPayrollSend     Permission = "payroll.send"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionPayrollView,
		PermissionPayrollGenerate,
		PermissionPayrollClose,
		PermissionPayrollExport,
		PermissionPayrollSend,
	},
	RoleManager: {
		PermissionPayrollView,
		PermissionPayrollGenerate,
		PermissionPayrollExport,
		PermissionPayrollSend,
	},
	RoleEmployee: {},
	RolePending:  {},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
