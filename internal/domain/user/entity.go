package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Runs payroll, cannot close periods
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleEmployee, RolePending:
		return true
	}
	return false
}
