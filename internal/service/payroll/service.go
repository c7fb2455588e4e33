package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type PayrollServiceImpl struct {
	payrollRepo  payroll.PayrollRepository
	directory    employee.Directory
	production   payroll.ProductionSource
	rules        config.PayrollConfig
	compensation *CompensationCalculator
	commission   *CommissionCalculator
	locks        *LockManager
	eligible     map[string]struct{}
	now          func() time.Time
}

func NewPayrollService(
	payrollRepo payroll.PayrollRepository,
	directory employee.Directory,
	production payroll.ProductionSource,
	rules config.PayrollConfig,
	locks *LockManager,
) *PayrollServiceImpl {
	eligible := make(map[string]struct{}, len(rules.CommissionRoles))
	for _, role := range rules.CommissionRoles {
		eligible[role] = struct{}{}
	}
	if rules.Workers < 1 {
		rules.Workers = 1
	}

	return &PayrollServiceImpl{
		payrollRepo:  payrollRepo,
		directory:    directory,
		production:   production,
		rules:        rules,
		compensation: NewCompensationCalculator(rules),
		commission:   NewCommissionCalculator(rules),
		locks:        locks,
		eligible:     eligible,
		now:          time.Now,
	}
}

var _ payroll.PayrollService = (*PayrollServiceImpl)(nil)

// ========== GENERATION ==========

func (s *PayrollServiceImpl) GenerateSalaryPeriod(ctx context.Context, companyID string, period payroll.Period) (payroll.RunSummary, error) {
	return s.generate(ctx, companyID, period, payroll.ReceiptKindSalary, s.salaryWorker)
}

func (s *PayrollServiceImpl) GenerateCommissionPeriod(ctx context.Context, companyID string, period payroll.Period) (payroll.RunSummary, error) {
	figures, err := s.production.GetProductionFigures(ctx, companyID, period)
	if err != nil {
		return payroll.RunSummary{}, fmt.Errorf("failed to get production figures: %w", err)
	}
	byEmployee := make(map[string]payroll.ProductionFigure, len(figures))
	for _, f := range figures {
		byEmployee[f.EmployeeID] = f
	}

	return s.generate(ctx, companyID, period, payroll.ReceiptKindCommission, func(ctx context.Context, companyID string, period payroll.Period, emp employee.Employee) payroll.EmployeeResult {
		return s.commissionWorker(ctx, companyID, period, emp, byEmployee)
	})
}

type employeeWorker func(ctx context.Context, companyID string, period payroll.Period, emp employee.Employee) payroll.EmployeeResult

// generate runs one batch while holding the period's generation slot. The
// summary is folded from per-employee results after every worker returns.
func (s *PayrollServiceImpl) generate(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind, work employeeWorker) (payroll.RunSummary, error) {
	if err := period.Validate(); err != nil {
		return payroll.RunSummary{}, err
	}

	release, err := s.locks.TryGeneration(companyID, period, kind)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	defer release()

	current, err := s.payrollRepo.EnsureOpenPeriod(ctx, companyID, period, kind)
	if err != nil {
		return payroll.RunSummary{}, fmt.Errorf("failed to open payroll period: %w", err)
	}
	if _, err := current.Status.Transition(payroll.PeriodEventGenerate); err != nil {
		return payroll.RunSummary{}, err
	}

	employees, err := s.eligibleEmployees(ctx, companyID, kind)
	if err != nil {
		return payroll.RunSummary{}, err
	}

	summary := payroll.NewRunSummary(kind, period, len(employees), s.now())
	slog.Info("Payroll generation started", "company_id", companyID, "period", period.String(), "kind", kind, "employees", len(employees))

	results := make([]payroll.EmployeeResult, len(employees))
	var g errgroup.Group
	g.SetLimit(s.rules.Workers)
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = payroll.EmployeeResult{EmployeeID: emp.ID, EmployeeCode: emp.EmployeeCode, Outcome: payroll.OutcomeCancelled}
				return nil
			}
			results[i] = work(ctx, companyID, period, emp)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Outcome == payroll.OutcomeFailed {
			slog.Warn("Payroll receipt failed", "company_id", companyID, "period", period.String(), "kind", kind, "employee_id", r.EmployeeID, "error", r.Err)
		}
		summary = summary.Merge(r)
	}
	summary.FinishedAt = s.now()

	slog.Info("Payroll generation finished",
		"company_id", companyID,
		"period", period.String(),
		"kind", kind,
		"created", summary.Created,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"not_processed", summary.NotProcessed,
	)

	if summary.Cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (s *PayrollServiceImpl) salaryWorker(ctx context.Context, companyID string, period payroll.Period, emp employee.Employee) payroll.EmployeeResult {
	result := payroll.EmployeeResult{EmployeeID: emp.ID, EmployeeCode: emp.EmployeeCode}

	receipt, err := s.compensation.Compute(emp, period)
	if err != nil {
		return failed(result, err)
	}
	receipt.CompanyID = companyID

	existing, err := s.payrollRepo.GetSalaryReceiptByEmployeePeriod(ctx, emp.ID, period, companyID)
	switch {
	case err == nil:
		if !existing.Status.CanReplace() {
			result.Outcome = payroll.OutcomeSkipped
			return result
		}
		if existing.SameAmounts(receipt) {
			result.Outcome = payroll.OutcomeUnchanged
			result.Amount = existing.NetSalary
			return result
		}
	case !errors.Is(err, payroll.ErrReceiptNotFound):
		return failed(result, err)
	}

	stored, outcome, err := s.payrollRepo.UpsertSalaryReceipt(ctx, receipt)
	if err != nil {
		return failed(result, err)
	}
	result.Outcome = outcomeOf(outcome)
	if result.Outcome != payroll.OutcomeSkipped {
		result.Amount = stored.NetSalary
	}
	return result
}

func (s *PayrollServiceImpl) commissionWorker(ctx context.Context, companyID string, period payroll.Period, emp employee.Employee, figures map[string]payroll.ProductionFigure) payroll.EmployeeResult {
	result := payroll.EmployeeResult{EmployeeID: emp.ID, EmployeeCode: emp.EmployeeCode}

	figure, ok := figures[emp.ID]
	if !ok {
		return failed(result, fmt.Errorf("%w: no production figure for %s", payroll.ErrInvalidProductionData, period))
	}

	rate := s.commission.RateFor(figure.TargetAchievedPct)
	receipt, err := s.commission.Compute(emp, period, figure.ProductionAmount, figure.TargetAchievedPct, rate)
	if err != nil {
		return failed(result, err)
	}
	receipt.CompanyID = companyID

	existing, err := s.payrollRepo.GetCommissionReceiptByEmployeePeriod(ctx, emp.ID, period, companyID)
	switch {
	case err == nil:
		if !existing.Status.CanReplace() {
			result.Outcome = payroll.OutcomeSkipped
			return result
		}
		if existing.SameAmounts(receipt) {
			result.Outcome = payroll.OutcomeUnchanged
			result.Amount = existing.CommissionAmount
			return result
		}
	case !errors.Is(err, payroll.ErrReceiptNotFound):
		return failed(result, err)
	}

	stored, outcome, err := s.payrollRepo.UpsertCommissionReceipt(ctx, receipt)
	if err != nil {
		return failed(result, err)
	}
	result.Outcome = outcomeOf(outcome)
	if result.Outcome != payroll.OutcomeSkipped {
		result.Amount = stored.CommissionAmount
	}
	return result
}

func failed(r payroll.EmployeeResult, err error) payroll.EmployeeResult {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.Outcome = payroll.OutcomeCancelled
		return r
	}
	r.Outcome = payroll.OutcomeFailed
	r.Err = err
	return r
}

func outcomeOf(o payroll.UpsertOutcome) payroll.EmployeeOutcome {
	switch o {
	case payroll.UpsertCreated:
		return payroll.OutcomeCreated
	case payroll.UpsertUpdated:
		return payroll.OutcomeUpdated
	default:
		return payroll.OutcomeSkipped
	}
}

// eligibleEmployees returns the active employees that must hold a receipt of
// the given kind, de-duplicated by ID and ordered by employee code.
func (s *PayrollServiceImpl) eligibleEmployees(ctx context.Context, companyID string, kind payroll.ReceiptKind) ([]employee.Employee, error) {
	all, err := s.directory.GetActiveByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees: %w", err)
	}

	seen := make(map[string]struct{}, len(all))
	employees := make([]employee.Employee, 0, len(all))
	for _, emp := range all {
		if !emp.IsActive() {
			continue
		}
		if _, dup := seen[emp.ID]; dup {
			continue
		}
		if kind == payroll.ReceiptKindCommission && !s.IsCommissionEligible(emp.RoleClassification) {
			continue
		}
		seen[emp.ID] = struct{}{}
		employees = append(employees, emp)
	}

	sort.SliceStable(employees, func(i, j int) bool {
		return employees[i].EmployeeCode < employees[j].EmployeeCode
	})
	return employees, nil
}

func (s *PayrollServiceImpl) IsCommissionEligible(role string) bool {
	_, ok := s.eligible[role]
	return ok
}

// ========== LIFECYCLE ==========

func (s *PayrollServiceImpl) ClosePeriod(ctx context.Context, companyID string, req payroll.ClosePeriodRequest) (payroll.PeriodResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PeriodResponse{}, err
	}
	period := req.Period()

	release, err := s.locks.LockForClose(ctx, companyID, period, req.Kind)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}
	defer release()

	status := payroll.PeriodStatusOpen
	exists := true
	current, err := s.payrollRepo.GetPeriod(ctx, companyID, period, req.Kind)
	switch {
	case err == nil:
		status = current.Status
	case errors.Is(err, payroll.ErrPeriodNotFound):
		exists = false
	default:
		return payroll.PeriodResponse{}, err
	}

	if _, err := status.Transition(payroll.PeriodEventClose); err != nil {
		return payroll.PeriodResponse{}, err
	}

	required, err := s.eligibleEmployees(ctx, companyID, req.Kind)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}
	present, err := s.payrollRepo.ListReceiptEmployeeIDs(ctx, companyID, period, req.Kind)
	if err != nil {
		return payroll.PeriodResponse{}, fmt.Errorf("failed to list receipts: %w", err)
	}
	have := make(map[string]struct{}, len(present))
	for _, id := range present {
		have[id] = struct{}{}
	}
	var missing []string
	for _, emp := range required {
		if _, ok := have[emp.ID]; !ok {
			missing = append(missing, emp.ID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return payroll.PeriodResponse{}, &payroll.IncompletePeriodError{Period: period, Kind: req.Kind, EmployeeIDs: missing}
	}

	if !exists {
		if _, err := s.payrollRepo.EnsureOpenPeriod(ctx, companyID, period, req.Kind); err != nil {
			return payroll.PeriodResponse{}, fmt.Errorf("failed to open payroll period: %w", err)
		}
	}

	closed, err := s.payrollRepo.ClosePeriod(ctx, companyID, period, req.Kind, req.ClosedBy)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}

	slog.Info("Payroll period closed", "company_id", companyID, "period", period.String(), "kind", req.Kind, "closed_by", req.ClosedBy, "receipts", len(present))
	return mapToPeriodResponse(closed), nil
}

// GetPeriod reports a period that was never generated as implicitly open.
func (s *PayrollServiceImpl) GetPeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PeriodResponse, error) {
	if err := period.Validate(); err != nil {
		return payroll.PeriodResponse{}, err
	}

	p, err := s.payrollRepo.GetPeriod(ctx, companyID, period, kind)
	if err != nil {
		if errors.Is(err, payroll.ErrPeriodNotFound) {
			return payroll.PeriodResponse{
				PeriodMonth: period.Month,
				PeriodYear:  period.Year,
				Kind:        string(kind),
				Status:      string(payroll.PeriodStatusOpen),
			}, nil
		}
		return payroll.PeriodResponse{}, err
	}
	return mapToPeriodResponse(p), nil
}

func (s *PayrollServiceImpl) GetPeriodSummary(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PeriodSummaryResponse, error) {
	p, err := s.GetPeriod(ctx, companyID, period, kind)
	if err != nil {
		return payroll.PeriodSummaryResponse{}, err
	}

	summary, err := s.payrollRepo.GetPeriodSummary(ctx, companyID, period, kind)
	if err != nil {
		return payroll.PeriodSummaryResponse{}, err
	}
	summary.PeriodMonth = period.Month
	summary.PeriodYear = period.Year
	summary.Kind = string(kind)
	summary.Status = p.Status
	return summary, nil
}

// ========== RECEIPTS ==========

func (s *PayrollServiceImpl) GetSalaryReceipt(ctx context.Context, companyID string, id string) (payroll.SalaryReceiptResponse, error) {
	r, err := s.payrollRepo.GetSalaryReceiptByID(ctx, id, companyID)
	if err != nil {
		return payroll.SalaryReceiptResponse{}, err
	}
	return mapToSalaryReceiptResponse(r), nil
}

func (s *PayrollServiceImpl) GetCommissionReceipt(ctx context.Context, companyID string, id string) (payroll.CommissionReceiptResponse, error) {
	r, err := s.payrollRepo.GetCommissionReceiptByID(ctx, id, companyID)
	if err != nil {
		return payroll.CommissionReceiptResponse{}, err
	}
	return mapToCommissionReceiptResponse(r), nil
}

func (s *PayrollServiceImpl) ListSalaryReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) (payroll.ListSalaryReceiptResponse, error) {
	receipts, total, err := s.payrollRepo.ListSalaryReceipts(ctx, companyID, filter)
	if err != nil {
		return payroll.ListSalaryReceiptResponse{}, err
	}

	data := make([]payroll.SalaryReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		data = append(data, mapToSalaryReceiptResponse(r))
	}
	return payroll.ListSalaryReceiptResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) ListCommissionReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) (payroll.ListCommissionReceiptResponse, error) {
	receipts, total, err := s.payrollRepo.ListCommissionReceipts(ctx, companyID, filter)
	if err != nil {
		return payroll.ListCommissionReceiptResponse{}, err
	}

	data := make([]payroll.CommissionReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		data = append(data, mapToCommissionReceiptResponse(r))
	}
	return payroll.ListCommissionReceiptResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// ========== HELPERS ==========

func mapToPeriodResponse(p payroll.PayrollPeriod) payroll.PeriodResponse {
	var closedAt *string
	if p.ClosedAt != nil {
		str := p.ClosedAt.Format(time.RFC3339)
		closedAt = &str
	}

	return payroll.PeriodResponse{
		ID:          p.ID,
		PeriodMonth: p.Period.Month,
		PeriodYear:  p.Period.Year,
		Kind:        string(p.Kind),
		Status:      string(p.Status),
		OpenedAt:    p.OpenedAt.Format(time.RFC3339),
		ClosedAt:    closedAt,
		ClosedBy:    p.ClosedBy,
	}
}

func mapToSalaryReceiptResponse(r payroll.SalaryReceipt) payroll.SalaryReceiptResponse {
	return payroll.SalaryReceiptResponse{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		EmployeeName:  deref(r.EmployeeName),
		EmployeeCode:  deref(r.EmployeeCode),
		BranchName:    r.BranchName,
		PeriodMonth:   r.Period.Month,
		PeriodYear:    r.Period.Year,
		GrossSalary:   r.GrossSalary,
		Bonuses:       r.Bonuses,
		Deductions:    r.Deductions,
		NetSalary:     r.NetSalary,
		TotalEarnings: r.TotalEarnings(),
		PaymentDate:   r.PaymentDate.Format("2006-01-02"),
		Status:        string(r.Status),
		DocumentRef:   r.DocumentRef,
	}
}

func mapToCommissionReceiptResponse(r payroll.CommissionReceipt) payroll.CommissionReceiptResponse {
	return payroll.CommissionReceiptResponse{
		ID:                r.ID,
		EmployeeID:        r.EmployeeID,
		EmployeeName:      deref(r.EmployeeName),
		EmployeeCode:      deref(r.EmployeeCode),
		BranchName:        r.BranchName,
		PeriodMonth:       r.Period.Month,
		PeriodYear:        r.Period.Year,
		ProductionAmount:  r.ProductionAmount,
		CommissionRate:    r.CommissionRate,
		CommissionAmount:  r.CommissionAmount,
		TargetAchievedPct: r.TargetAchievedPct,
		PaymentDate:       r.PaymentDate.Format("2006-01-02"),
		Status:            string(r.Status),
		DocumentRef:       r.DocumentRef,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sumOrZero(values ...decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...)
}
