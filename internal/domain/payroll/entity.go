package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period - a (year, month) unit of payroll processing
type Period struct {
	Year  int
	Month int
}

func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 2000 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, p.Year)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Start returns the first day of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period in UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Index orders periods chronologically.
func (p Period) Index() int {
	return p.Year*12 + (p.Month - 1)
}

func PeriodFromIndex(idx int) Period {
	return Period{Year: idx / 12, Month: idx%12 + 1}
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ReceiptKind enum
type ReceiptKind string

const (
	ReceiptKindSalary     ReceiptKind = "salary"
	ReceiptKindCommission ReceiptKind = "commission"
)

func ParseReceiptKind(s string) (ReceiptKind, error) {
	switch ReceiptKind(s) {
	case ReceiptKindSalary, ReceiptKindCommission:
		return ReceiptKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReceiptKind, s)
}

// PayrollPeriod - lifecycle row for one (company, period, kind)
type PayrollPeriod struct {
	ID        string
	CompanyID string
	Period    Period
	Kind      ReceiptKind
	Status    PeriodStatus
	OpenedAt  time.Time
	ClosedAt  *time.Time
	ClosedBy  *string
}

// ReceiptStatus enum
type ReceiptStatus string

const (
	ReceiptStatusGenerated ReceiptStatus = "generated"
	ReceiptStatusClosed    ReceiptStatus = "closed"
)

// SalaryReceipt - computed monthly pay for one employee
type SalaryReceipt struct {
	ID          string
	CompanyID   string
	EmployeeID  string
	Period      Period
	GrossSalary decimal.Decimal
	Bonuses     decimal.Decimal
	Deductions  decimal.Decimal
	NetSalary   decimal.Decimal
	PaymentDate time.Time
	Status      ReceiptStatus
	DocumentRef *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
	BranchID     *string
	BranchName   *string
}

// TotalEarnings is gross pay including bonuses, before deductions.
func (r SalaryReceipt) TotalEarnings() decimal.Decimal {
	return r.GrossSalary.Add(r.Bonuses)
}

// Reconciles reports whether net == gross + bonuses - deductions.
func (r SalaryReceipt) Reconciles() bool {
	return r.NetSalary.Equal(r.GrossSalary.Add(r.Bonuses).Sub(r.Deductions))
}

// SameAmounts compares the computed values of two receipts, ignoring identity and bookkeeping.
func (r SalaryReceipt) SameAmounts(o SalaryReceipt) bool {
	return r.GrossSalary.Equal(o.GrossSalary) &&
		r.Bonuses.Equal(o.Bonuses) &&
		r.Deductions.Equal(o.Deductions) &&
		r.NetSalary.Equal(o.NetSalary) &&
		r.PaymentDate.Equal(o.PaymentDate)
}

// CommissionReceipt - production-based commission for one employee
type CommissionReceipt struct {
	ID                string
	CompanyID         string
	EmployeeID        string
	Period            Period
	ProductionAmount  decimal.Decimal
	CommissionRate    decimal.Decimal
	CommissionAmount  decimal.Decimal
	TargetAchievedPct decimal.Decimal
	PaymentDate       time.Time
	Status            ReceiptStatus
	DocumentRef       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
	BranchID     *string
	BranchName   *string
}

func (r CommissionReceipt) SameAmounts(o CommissionReceipt) bool {
	return r.ProductionAmount.Equal(o.ProductionAmount) &&
		r.CommissionRate.Equal(o.CommissionRate) &&
		r.CommissionAmount.Equal(o.CommissionAmount) &&
		r.TargetAchievedPct.Equal(o.TargetAchievedPct) &&
		r.PaymentDate.Equal(o.PaymentDate)
}

// ProductionFigure - externally supplied monthly production for one employee
type ProductionFigure struct {
	EmployeeID        string
	Period            Period
	ProductionAmount  decimal.Decimal
	TargetAchievedPct decimal.Decimal
}

// UpsertOutcome tells what an upsert did to the stored receipt.
type UpsertOutcome string

const (
	UpsertCreated UpsertOutcome = "created"
	UpsertUpdated UpsertOutcome = "updated"
	// UpsertRejected means the row exists but is closed and was left untouched.
	UpsertRejected UpsertOutcome = "rejected"
)
