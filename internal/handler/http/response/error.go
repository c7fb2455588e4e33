package response

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var incomplete *payroll.IncompletePeriodError
	if errors.As(err, &incomplete) {
		ConflictWithDetails(w, "Payroll period has employees without receipts", map[string]string{
			"period":       incomplete.Period.String(),
			"kind":         string(incomplete.Kind),
			"missing":      strconv.Itoa(len(incomplete.EmployeeIDs)),
			"employee_ids": strings.Join(incomplete.EmployeeIDs, ","),
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "No company associated with this user")
	case errors.Is(err, user.ErrUserIDRequired):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrReceiptNotFound):
		NotFound(w, "Receipt not found")
	case errors.Is(err, payroll.ErrPeriodNotFound):
		NotFound(w, "Payroll period not found")
	case errors.Is(err, payroll.ErrPeriodClosed):
		Conflict(w, "Payroll period is closed")
	case errors.Is(err, payroll.ErrPeriodGenerationInProgress):
		Conflict(w, "Payroll generation already in progress for this period")
	case errors.Is(err, payroll.ErrIncompletePeriod):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrIllegalTransition):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrInvalidReceiptKind):
		BadRequest(w, "Receipt kind must be 'salary' or 'commission'", nil)
	case errors.Is(err, payroll.ErrNotCommissionEligible):
		BadRequest(w, "Employee role is not commission eligible", nil)
	case errors.Is(err, payroll.ErrNoRecipientEmail):
		BadRequest(w, "Employee has no registered email", nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
