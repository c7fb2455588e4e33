package payroll

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== PERIOD DTOs ==========

type GeneratePeriodRequest struct {
	PeriodMonth int `json:"period_month"`
	PeriodYear  int `json:"period_year"`
}

func (r *GeneratePeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PeriodMonth < 1 || r.PeriodMonth > 12 {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if r.PeriodYear < 2000 {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be 2000 or later"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r GeneratePeriodRequest) Period() Period {
	return Period{Year: r.PeriodYear, Month: r.PeriodMonth}
}

type ClosePeriodRequest struct {
	PeriodMonth int         `json:"period_month"`
	PeriodYear  int         `json:"period_year"`
	Kind        ReceiptKind `json:"kind"`
	ClosedBy    string      `json:"-"`
}

func (r *ClosePeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PeriodMonth < 1 || r.PeriodMonth > 12 {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if r.PeriodYear < 2000 {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be 2000 or later"})
	}
	if r.Kind != ReceiptKindSalary && r.Kind != ReceiptKindCommission {
		errs = append(errs, validator.ValidationError{Field: "kind", Message: "must be 'salary' or 'commission'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r ClosePeriodRequest) Period() Period {
	return Period{Year: r.PeriodYear, Month: r.PeriodMonth}
}

type PeriodResponse struct {
	ID          string  `json:"id"`
	PeriodMonth int     `json:"period_month"`
	PeriodYear  int     `json:"period_year"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	OpenedAt    string  `json:"opened_at"`
	ClosedAt    *string `json:"closed_at,omitempty"`
	ClosedBy    *string `json:"closed_by,omitempty"`
}

type PeriodSummaryResponse struct {
	PeriodMonth     int             `json:"period_month"`
	PeriodYear      int             `json:"period_year"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	TotalReceipts   int             `json:"total_receipts"`
	GeneratedCount  int             `json:"generated_count"`
	ClosedCount     int             `json:"closed_count"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalBonuses    decimal.Decimal `json:"total_bonuses"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	TotalNet        decimal.Decimal `json:"total_net"`
	TotalProduction decimal.Decimal `json:"total_production"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// ========== RECEIPT DTOs ==========

type ReceiptFilter struct {
	PeriodMonth *int    `json:"period_month,omitempty"`
	PeriodYear  *int    `json:"period_year,omitempty"`
	Status      *string `json:"status,omitempty"`
	EmployeeID  *string `json:"employee_id,omitempty"`
	BranchID    *string `json:"branch_id,omitempty"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
	SortBy      string  `json:"sort_by"`
	SortOrder   string  `json:"sort_order"`
}

// Unpaged returns a copy of the filter without pagination, for exports.
func (f ReceiptFilter) Unpaged() ReceiptFilter {
	f.Page = 0
	f.Limit = 0
	return f
}

type SalaryReceiptResponse struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employee_id"`
	EmployeeName  string          `json:"employee_name"`
	EmployeeCode  string          `json:"employee_code"`
	BranchName    *string         `json:"branch_name,omitempty"`
	PeriodMonth   int             `json:"period_month"`
	PeriodYear    int             `json:"period_year"`
	GrossSalary   decimal.Decimal `json:"gross_salary"`
	Bonuses       decimal.Decimal `json:"bonuses"`
	Deductions    decimal.Decimal `json:"deductions"`
	NetSalary     decimal.Decimal `json:"net_salary"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	PaymentDate   string          `json:"payment_date"`
	Status        string          `json:"status"`
	DocumentRef   *string         `json:"document_ref,omitempty"`
}

type CommissionReceiptResponse struct {
	ID                string          `json:"id"`
	EmployeeID        string          `json:"employee_id"`
	EmployeeName      string          `json:"employee_name"`
	EmployeeCode      string          `json:"employee_code"`
	BranchName        *string         `json:"branch_name,omitempty"`
	PeriodMonth       int             `json:"period_month"`
	PeriodYear        int             `json:"period_year"`
	ProductionAmount  decimal.Decimal `json:"production_amount"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	TargetAchievedPct decimal.Decimal `json:"target_achieved_pct"`
	PaymentDate       string          `json:"payment_date"`
	Status            string          `json:"status"`
	DocumentRef       *string         `json:"document_ref,omitempty"`
}

type ListSalaryReceiptResponse struct {
	Data       []SalaryReceiptResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}

type ListCommissionReceiptResponse struct {
	Data       []CommissionReceiptResponse `json:"data"`
	TotalCount int64                       `json:"total_count"`
	Page       int                         `json:"page"`
	Limit      int                         `json:"limit"`
}

// ========== GENERATION RUN ==========

// EmployeeResult is the immutable outcome of processing one employee in a batch.
type EmployeeResult struct {
	EmployeeID   string
	EmployeeCode string
	Outcome      EmployeeOutcome
	Err          error
	// Amount is net salary for salary runs and commission for commission runs.
	Amount decimal.Decimal
}

type EmployeeOutcome string

const (
	OutcomeCreated   EmployeeOutcome = "created"
	OutcomeUpdated   EmployeeOutcome = "updated"
	OutcomeUnchanged EmployeeOutcome = "unchanged"
	OutcomeSkipped   EmployeeOutcome = "skipped"
	OutcomeFailed    EmployeeOutcome = "failed"
	OutcomeCancelled EmployeeOutcome = "cancelled"
)

type RunFailure struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeCode string `json:"employee_code,omitempty"`
	Reason       string `json:"reason"`
}

// RunSummary is returned once per generation call and never persisted.
type RunSummary struct {
	Kind           string          `json:"kind"`
	PeriodMonth    int             `json:"period_month"`
	PeriodYear     int             `json:"period_year"`
	TotalEmployees int             `json:"total_employees"`
	Created        int             `json:"created"`
	Updated        int             `json:"updated"`
	Unchanged      int             `json:"unchanged"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	NotProcessed   int             `json:"not_processed"`
	Failures       []RunFailure    `json:"failures"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Cancelled      bool            `json:"cancelled"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

func NewRunSummary(kind ReceiptKind, period Period, total int, startedAt time.Time) RunSummary {
	return RunSummary{
		Kind:           string(kind),
		PeriodMonth:    period.Month,
		PeriodYear:     period.Year,
		TotalEmployees: total,
		Failures:       []RunFailure{},
		TotalAmount:    decimal.Zero,
		StartedAt:      startedAt,
	}
}

// Succeeded counts employees that end the run with a current receipt.
func (s RunSummary) Succeeded() int {
	return s.Created + s.Updated + s.Unchanged
}

// Merge folds one employee result into the summary and returns the new value.
func (s RunSummary) Merge(r EmployeeResult) RunSummary {
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeCancelled:
		s.NotProcessed++
		s.Cancelled = true
		return s
	case OutcomeFailed:
		s.Failed++
		reason := "unknown error"
		if r.Err != nil {
			reason = r.Err.Error()
		}
		failures := make([]RunFailure, len(s.Failures), len(s.Failures)+1)
		copy(failures, s.Failures)
		s.Failures = append(failures, RunFailure{
			EmployeeID:   r.EmployeeID,
			EmployeeCode: r.EmployeeCode,
			Reason:       reason,
		})
		return s
	}
	s.TotalAmount = s.TotalAmount.Add(r.Amount)
	return s
}

// ========== AGUINALDO ==========

type AguinaldoResponse struct {
	EmployeeID      string          `json:"employee_id"`
	AsOf            string          `json:"as_of"`
	FromPeriod      string          `json:"from_period"`
	ToPeriod        string          `json:"to_period"`
	ReceiptsCounted int             `json:"receipts_counted"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	Divisor         decimal.Decimal `json:"divisor"`
	ProjectedBonus  decimal.Decimal `json:"projected_bonus"`
}

// ========== EXPORTS ==========

type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

type BankFileExclusion struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeCode string `json:"employee_code,omitempty"`
	ReceiptID    string `json:"receipt_id"`
	Reason       string `json:"reason"`
}

type BankFileResult struct {
	ExportFile
	Lines       int                 `json:"lines"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Excluded    []BankFileExclusion `json:"excluded"`
}

type SpreadsheetResult struct {
	ExportFile
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}
