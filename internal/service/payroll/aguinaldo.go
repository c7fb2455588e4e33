package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// AguinaldoWindow returns the twelve periods ending at asOf, starting no
// earlier than the hire month.
func AguinaldoWindow(asOf time.Time, hireDate time.Time) (from, to payroll.Period) {
	to = payroll.PeriodOf(asOf)
	from = payroll.PeriodFromIndex(to.Index() - 11)
	if !hireDate.IsZero() {
		if hired := payroll.PeriodOf(hireDate); hired.Index() > from.Index() {
			from = hired
		}
	}
	return from, to
}

// ProjectAnnualBonus divides the earnings of the receipts inside [from, to]
// by divisor. It is zero when no receipt falls in the window.
func ProjectAnnualBonus(receipts []payroll.SalaryReceipt, from, to payroll.Period, divisor decimal.Decimal, policy money.Policy) (total decimal.Decimal, counted int, bonus decimal.Decimal) {
	earnings := make([]decimal.Decimal, 0, len(receipts))
	for _, r := range receipts {
		idx := r.Period.Index()
		if idx < from.Index() || idx > to.Index() {
			continue
		}
		earnings = append(earnings, r.TotalEarnings())
	}

	total = sumOrZero(earnings...)
	if len(earnings) == 0 || !divisor.IsPositive() {
		return total, len(earnings), decimal.Zero
	}
	return total, len(earnings), policy.Round(total.Div(divisor))
}

func (s *PayrollServiceImpl) ProjectAguinaldo(ctx context.Context, companyID string, employeeID string, asOf time.Time) (payroll.AguinaldoResponse, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}

	emp, err := s.directory.GetByID(ctx, companyID, employeeID)
	if err != nil {
		return payroll.AguinaldoResponse{}, err
	}

	from, to := AguinaldoWindow(asOf, emp.HireDate)
	resp := payroll.AguinaldoResponse{
		EmployeeID:     employeeID,
		AsOf:           asOf.Format("2006-01-02"),
		FromPeriod:     from.String(),
		ToPeriod:       to.String(),
		TotalGross:     decimal.Zero,
		Divisor:        s.rules.AguinaldoDivisor,
		ProjectedBonus: decimal.Zero,
	}
	if from.Index() > to.Index() {
		// hired after asOf
		return resp, nil
	}

	receipts, err := s.payrollRepo.ListSalaryReceiptsForEmployee(ctx, companyID, employeeID, from, to)
	if err != nil {
		return payroll.AguinaldoResponse{}, fmt.Errorf("failed to list salary receipts: %w", err)
	}

	resp.TotalGross, resp.ReceiptsCounted, resp.ProjectedBonus = ProjectAnnualBonus(receipts, from, to, s.rules.AguinaldoDivisor, s.rules.Rounding)
	return resp, nil
}
