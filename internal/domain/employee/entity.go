package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the directory view the payroll engine reads; it never writes it back.
type Employee struct {
	ID                    string
	CompanyID             string
	BranchID              *string
	BranchName            *string
	EmployeeCode          string
	FullName              string
	Email                 *string
	RoleClassification    string
	HireDate              time.Time
	EmploymentStatus      EmploymentStatus
	BankName              string
	BankAccountHolderName *string
	BankAccountNumber     string
	BaseSalary            *decimal.Decimal
}

type EmploymentStatus string

const (
	EmploymentStatusActive    EmploymentStatus = "active"
	EmploymentStatusInactive  EmploymentStatus = "inactive"
	EmploymentStatusSuspended EmploymentStatus = "suspended"
)

func (e Employee) IsActive() bool {
	return e.EmploymentStatus == EmploymentStatusActive
}

// HasBankDetails reports whether a transfer line can be produced for the employee.
func (e Employee) HasBankDetails() bool {
	return e.BankName != "" && e.BankAccountNumber != ""
}

// AccountHolder falls back to the employee's own name.
func (e Employee) AccountHolder() string {
	if e.BankAccountHolderName != nil && *e.BankAccountHolderName != "" {
		return *e.BankAccountHolderName
	}
	return e.FullName
}
