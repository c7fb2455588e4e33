package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// CompensationCalculator turns an employee's base salary into a salary receipt.
// It holds no state besides the rules and is safe for concurrent use.
type CompensationCalculator struct {
	rules config.PayrollConfig
}

func NewCompensationCalculator(rules config.PayrollConfig) *CompensationCalculator {
	return &CompensationCalculator{rules: rules}
}

// Compute builds the receipt for emp in period. GrossSalary carries the base
// pay, so NetSalary = GrossSalary + Bonuses - Deductions holds exactly.
func (c *CompensationCalculator) Compute(emp employee.Employee, period payroll.Period) (payroll.SalaryReceipt, error) {
	if emp.BaseSalary == nil {
		return payroll.SalaryReceipt{}, fmt.Errorf("%w: employee %s has no base salary", payroll.ErrInvalidCompensation, emp.ID)
	}
	if !emp.BaseSalary.IsPositive() {
		return payroll.SalaryReceipt{}, fmt.Errorf("%w: employee %s base salary %s is not positive", payroll.ErrInvalidCompensation, emp.ID, emp.BaseSalary.String())
	}

	policy := c.rules.Rounding
	base := policy.Round(*emp.BaseSalary)

	bonuses := c.rules.FlatBonus
	if roleBonus, ok := c.rules.RoleBonuses[emp.RoleClassification]; ok {
		bonuses = bonuses.Add(roleBonus)
	}
	bonuses = policy.Round(bonuses)

	deductions := policy.MulRound(base, c.rules.StatutoryDeductionRate)
	net := base.Add(bonuses).Sub(deductions)

	return payroll.SalaryReceipt{
		CompanyID:   emp.CompanyID,
		EmployeeID:  emp.ID,
		Period:      period,
		GrossSalary: base,
		Bonuses:     bonuses,
		Deductions:  deductions,
		NetSalary:   net,
		PaymentDate: PaymentDate(period, c.rules.PaymentDay),
		Status:      payroll.ReceiptStatusGenerated,
	}, nil
}

// CommissionCalculator turns a production figure into a commission receipt.
type CommissionCalculator struct {
	rules config.PayrollConfig
}

func NewCommissionCalculator(rules config.PayrollConfig) *CommissionCalculator {
	return &CommissionCalculator{rules: rules}
}

// RateFor picks the highest tier whose threshold the achievement reaches,
// falling back to the default rate.
func (c *CommissionCalculator) RateFor(targetAchievedPct decimal.Decimal) decimal.Decimal {
	rate := c.rules.DefaultCommissionRate
	for _, tier := range c.rules.CommissionTiers {
		if targetAchievedPct.GreaterThanOrEqual(tier.MinAchievedPct) {
			rate = tier.Rate
		}
	}
	return rate
}

// Compute returns production x rate rounded to currency precision.
func (c *CommissionCalculator) Compute(emp employee.Employee, period payroll.Period, production, targetAchievedPct, rate decimal.Decimal) (payroll.CommissionReceipt, error) {
	if production.IsNegative() {
		return payroll.CommissionReceipt{}, fmt.Errorf("%w: employee %s production %s is negative", payroll.ErrInvalidProductionData, emp.ID, production.String())
	}
	if targetAchievedPct.IsNegative() {
		return payroll.CommissionReceipt{}, fmt.Errorf("%w: employee %s target achievement %s is negative", payroll.ErrInvalidProductionData, emp.ID, targetAchievedPct.String())
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return payroll.CommissionReceipt{}, fmt.Errorf("%w: commission rate %s outside [0, 1]", payroll.ErrInvalidProductionData, rate.String())
	}

	policy := c.rules.Rounding
	return payroll.CommissionReceipt{
		CompanyID:         emp.CompanyID,
		EmployeeID:        emp.ID,
		Period:            period,
		ProductionAmount:  policy.Round(production),
		CommissionRate:    rate,
		CommissionAmount:  policy.MulRound(production, rate),
		TargetAchievedPct: targetAchievedPct,
		PaymentDate:       PaymentDate(period, c.rules.PaymentDay),
		Status:            payroll.ReceiptStatusGenerated,
	}, nil
}

// PaymentDate is the configured day of the period's month, clamped to its last day.
func PaymentDate(period payroll.Period, day int) time.Time {
	end := period.End()
	if day < 1 {
		day = 1
	}
	if day > end.Day() {
		day = end.Day()
	}
	return time.Date(period.Year, time.Month(period.Month), day, 0, 0, 0, 0, time.UTC)
}
