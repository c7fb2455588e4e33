package payroll

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCompensation        = errors.New("invalid compensation data")
	ErrInvalidProductionData      = errors.New("invalid production data")
	ErrPeriodClosed               = errors.New("payroll period is closed")
	ErrIncompletePeriod           = errors.New("payroll period has employees without receipts")
	ErrPeriodGenerationInProgress = errors.New("payroll generation already in progress for this period")
	ErrReceiptNotFound            = errors.New("receipt not found")
	ErrReceiptChanged             = errors.New("receipt changed since it was read")
	ErrMissingBankDetails         = errors.New("employee has no bank account on file")
	ErrPeriodNotFound             = errors.New("payroll period not found")
	ErrInvalidPeriod              = errors.New("invalid payroll period")
	ErrInvalidReceiptKind         = errors.New("invalid receipt kind")
	ErrIllegalTransition          = errors.New("illegal payroll period transition")
	ErrNotCommissionEligible      = errors.New("employee role is not commission eligible")
	ErrNoRecipientEmail           = errors.New("employee has no registered email")
)

// IncompletePeriodError lists the employees that still lack a receipt.
type IncompletePeriodError struct {
	Period      Period
	Kind        ReceiptKind
	EmployeeIDs []string
}

func (e *IncompletePeriodError) Error() string {
	return fmt.Sprintf("%s: %s %s missing %d receipt(s): %s",
		ErrIncompletePeriod, e.Kind, e.Period, len(e.EmployeeIDs), strings.Join(e.EmployeeIDs, ", "))
}

func (e *IncompletePeriodError) Unwrap() error {
	return ErrIncompletePeriod
}
