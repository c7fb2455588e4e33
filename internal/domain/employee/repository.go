package employee

import "context"

// Directory is the read-only employee source the payroll engine depends on.
type Directory interface {
	GetByID(ctx context.Context, companyID string, id string) (Employee, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Employee, error)
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
	ListCompanyIDsWithActiveEmployees(ctx context.Context) ([]string, error)
}
