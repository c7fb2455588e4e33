package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type periodKey struct {
	companyID string
	period    payroll.Period
	kind      payroll.ReceiptKind
}

type receiptKey struct {
	employeeID string
	period     payroll.Period
}

// PayrollStore keeps periods and receipts in process memory. Every method
// runs under one mutex, which makes each upsert and close atomic.
type PayrollStore struct {
	mu sync.RWMutex

	periods       map[periodKey]payroll.PayrollPeriod
	salary        map[string]payroll.SalaryReceipt
	salaryIdx     map[receiptKey]string
	commission    map[string]payroll.CommissionReceipt
	commissionIdx map[receiptKey]string

	directory *Directory
	now       func() time.Time
}

// NewPayrollStore creates an empty store. Receipts are joined with employee
// name, code and branch from directory when it is not nil.
func NewPayrollStore(directory *Directory) *PayrollStore {
	return &PayrollStore{
		periods:       make(map[periodKey]payroll.PayrollPeriod),
		salary:        make(map[string]payroll.SalaryReceipt),
		salaryIdx:     make(map[receiptKey]string),
		commission:    make(map[string]payroll.CommissionReceipt),
		commissionIdx: make(map[receiptKey]string),
		directory:     directory,
		now:           time.Now,
	}
}

var _ payroll.PayrollRepository = (*PayrollStore)(nil)

// ========== PERIODS ==========

func (s *PayrollStore) GetPeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[periodKey{companyID, period, kind}]
	if !ok {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (s *PayrollStore) EnsureOpenPeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PayrollPeriod, error) {
	if err := ctx.Err(); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey{companyID, period, kind}
	if p, ok := s.periods[key]; ok {
		return p, nil
	}
	p := payroll.PayrollPeriod{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Period:    period,
		Kind:      kind,
		Status:    payroll.PeriodStatusOpen,
		OpenedAt:  s.now(),
	}
	s.periods[key] = p
	return p, nil
}

func (s *PayrollStore) ClosePeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind, closedBy string) (payroll.PayrollPeriod, error) {
	if err := ctx.Err(); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey{companyID, period, kind}
	p, ok := s.periods[key]
	if !ok {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	next, err := p.Status.Transition(payroll.PeriodEventClose)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}

	now := s.now()
	p.Status = next
	p.ClosedAt = &now
	if closedBy != "" {
		p.ClosedBy = &closedBy
	}
	s.periods[key] = p

	switch kind {
	case payroll.ReceiptKindSalary:
		for id, r := range s.salary {
			if r.CompanyID == companyID && r.Period == period {
				r.Status = payroll.ReceiptStatusClosed
				r.DocumentRef = nil
				r.UpdatedAt = now
				s.salary[id] = r
			}
		}
	case payroll.ReceiptKindCommission:
		for id, r := range s.commission {
			if r.CompanyID == companyID && r.Period == period {
				r.Status = payroll.ReceiptStatusClosed
				r.DocumentRef = nil
				r.UpdatedAt = now
				s.commission[id] = r
			}
		}
	}
	return p, nil
}

// ========== SALARY RECEIPTS ==========

func (s *PayrollStore) UpsertSalaryReceipt(ctx context.Context, receipt payroll.SalaryReceipt) (payroll.SalaryReceipt, payroll.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return payroll.SalaryReceipt{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := receiptKey{receipt.EmployeeID, receipt.Period}
	if id, ok := s.salaryIdx[key]; ok {
		existing := s.salary[id]
		if !existing.Status.CanReplace() {
			return s.joinSalary(existing), payroll.UpsertRejected, nil
		}
		if !existing.SameAmounts(receipt) {
			existing.DocumentRef = nil
		}
		existing.GrossSalary = receipt.GrossSalary
		existing.Bonuses = receipt.Bonuses
		existing.Deductions = receipt.Deductions
		existing.NetSalary = receipt.NetSalary
		existing.PaymentDate = receipt.PaymentDate
		existing.UpdatedAt = now
		s.salary[id] = existing
		return s.joinSalary(existing), payroll.UpsertUpdated, nil
	}

	receipt.ID = uuid.NewString()
	receipt.Status = payroll.ReceiptStatusGenerated
	receipt.DocumentRef = nil
	receipt.CreatedAt = now
	receipt.UpdatedAt = now
	s.salary[receipt.ID] = receipt
	s.salaryIdx[key] = receipt.ID
	return s.joinSalary(receipt), payroll.UpsertCreated, nil
}

func (s *PayrollStore) GetSalaryReceiptByID(ctx context.Context, id string, companyID string) (payroll.SalaryReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.salary[id]
	if !ok || r.CompanyID != companyID {
		return payroll.SalaryReceipt{}, payroll.ErrReceiptNotFound
	}
	return s.joinSalary(r), nil
}

func (s *PayrollStore) GetSalaryReceiptByEmployeePeriod(ctx context.Context, employeeID string, period payroll.Period, companyID string) (payroll.SalaryReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salaryIdx[receiptKey{employeeID, period}]
	if !ok || s.salary[id].CompanyID != companyID {
		return payroll.SalaryReceipt{}, payroll.ErrReceiptNotFound
	}
	return s.joinSalary(s.salary[id]), nil
}

func (s *PayrollStore) ListSalaryReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) ([]payroll.SalaryReceipt, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payroll.SalaryReceipt
	for _, r := range s.salary {
		r = s.joinSalary(r)
		if r.CompanyID != companyID || !matches(filter, r.Period, r.Status, r.EmployeeID, r.BranchID) {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return lessReceipt(filter, out[i].Period, out[j].Period, out[i].EmployeeCode, out[j].EmployeeCode, out[i].NetSalary, out[j].NetSalary, out[i].ID, out[j].ID)
	})
	total := int64(len(out))
	return paginate(out, filter), total, nil
}

func (s *PayrollStore) ListSalaryReceiptsForEmployee(ctx context.Context, companyID string, employeeID string, from, to payroll.Period) ([]payroll.SalaryReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payroll.SalaryReceipt
	for _, r := range s.salary {
		if r.CompanyID != companyID || r.EmployeeID != employeeID {
			continue
		}
		if idx := r.Period.Index(); idx < from.Index() || idx > to.Index() {
			continue
		}
		out = append(out, s.joinSalary(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Index() < out[j].Period.Index() })
	return out, nil
}

func (s *PayrollStore) SetSalaryReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.salary[id]
	if !ok || r.CompanyID != companyID {
		return payroll.ErrReceiptNotFound
	}
	if !r.UpdatedAt.Equal(readAt) {
		return payroll.ErrReceiptChanged
	}
	r.DocumentRef = &documentRef
	s.salary[id] = r
	return nil
}

// ========== COMMISSION RECEIPTS ==========

func (s *PayrollStore) UpsertCommissionReceipt(ctx context.Context, receipt payroll.CommissionReceipt) (payroll.CommissionReceipt, payroll.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return payroll.CommissionReceipt{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := receiptKey{receipt.EmployeeID, receipt.Period}
	if id, ok := s.commissionIdx[key]; ok {
		existing := s.commission[id]
		if !existing.Status.CanReplace() {
			return s.joinCommission(existing), payroll.UpsertRejected, nil
		}
		if !existing.SameAmounts(receipt) {
			existing.DocumentRef = nil
		}
		existing.ProductionAmount = receipt.ProductionAmount
		existing.CommissionRate = receipt.CommissionRate
		existing.CommissionAmount = receipt.CommissionAmount
		existing.TargetAchievedPct = receipt.TargetAchievedPct
		existing.PaymentDate = receipt.PaymentDate
		existing.UpdatedAt = now
		s.commission[id] = existing
		return s.joinCommission(existing), payroll.UpsertUpdated, nil
	}

	receipt.ID = uuid.NewString()
	receipt.Status = payroll.ReceiptStatusGenerated
	receipt.DocumentRef = nil
	receipt.CreatedAt = now
	receipt.UpdatedAt = now
	s.commission[receipt.ID] = receipt
	s.commissionIdx[key] = receipt.ID
	return s.joinCommission(receipt), payroll.UpsertCreated, nil
}

func (s *PayrollStore) GetCommissionReceiptByID(ctx context.Context, id string, companyID string) (payroll.CommissionReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.commission[id]
	if !ok || r.CompanyID != companyID {
		return payroll.CommissionReceipt{}, payroll.ErrReceiptNotFound
	}
	return s.joinCommission(r), nil
}

func (s *PayrollStore) GetCommissionReceiptByEmployeePeriod(ctx context.Context, employeeID string, period payroll.Period, companyID string) (payroll.CommissionReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.commissionIdx[receiptKey{employeeID, period}]
	if !ok || s.commission[id].CompanyID != companyID {
		return payroll.CommissionReceipt{}, payroll.ErrReceiptNotFound
	}
	return s.joinCommission(s.commission[id]), nil
}

func (s *PayrollStore) ListCommissionReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) ([]payroll.CommissionReceipt, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payroll.CommissionReceipt
	for _, r := range s.commission {
		r = s.joinCommission(r)
		if r.CompanyID != companyID || !matches(filter, r.Period, r.Status, r.EmployeeID, r.BranchID) {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return lessReceipt(filter, out[i].Period, out[j].Period, out[i].EmployeeCode, out[j].EmployeeCode, out[i].CommissionAmount, out[j].CommissionAmount, out[i].ID, out[j].ID)
	})
	total := int64(len(out))
	return paginate(out, filter), total, nil
}

func (s *PayrollStore) SetCommissionReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.commission[id]
	if !ok || r.CompanyID != companyID {
		return payroll.ErrReceiptNotFound
	}
	if !r.UpdatedAt.Equal(readAt) {
		return payroll.ErrReceiptChanged
	}
	r.DocumentRef = &documentRef
	s.commission[id] = r
	return nil
}

// ========== AGGREGATIONS ==========

func (s *PayrollStore) ListReceiptEmployeeIDs(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	switch kind {
	case payroll.ReceiptKindSalary:
		for _, r := range s.salary {
			if r.CompanyID == companyID && r.Period == period {
				ids = append(ids, r.EmployeeID)
			}
		}
	case payroll.ReceiptKindCommission:
		for _, r := range s.commission {
			if r.CompanyID == companyID && r.Period == period {
				ids = append(ids, r.EmployeeID)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *PayrollStore) GetPeriodSummary(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PeriodSummaryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := payroll.PeriodSummaryResponse{
		PeriodMonth:     period.Month,
		PeriodYear:      period.Year,
		Kind:            string(kind),
		TotalGross:      decimal.Zero,
		TotalBonuses:    decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
		TotalProduction: decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	count := func(status payroll.ReceiptStatus) {
		summary.TotalReceipts++
		if status == payroll.ReceiptStatusClosed {
			summary.ClosedCount++
		} else {
			summary.GeneratedCount++
		}
	}

	switch kind {
	case payroll.ReceiptKindSalary:
		for _, r := range s.salary {
			if r.CompanyID != companyID || r.Period != period {
				continue
			}
			count(r.Status)
			summary.TotalGross = summary.TotalGross.Add(r.GrossSalary)
			summary.TotalBonuses = summary.TotalBonuses.Add(r.Bonuses)
			summary.TotalDeductions = summary.TotalDeductions.Add(r.Deductions)
			summary.TotalNet = summary.TotalNet.Add(r.NetSalary)
		}
	case payroll.ReceiptKindCommission:
		for _, r := range s.commission {
			if r.CompanyID != companyID || r.Period != period {
				continue
			}
			count(r.Status)
			summary.TotalProduction = summary.TotalProduction.Add(r.ProductionAmount)
			summary.TotalCommission = summary.TotalCommission.Add(r.CommissionAmount)
		}
	}
	return summary, nil
}

// ========== HELPERS ==========

func (s *PayrollStore) joinSalary(r payroll.SalaryReceipt) payroll.SalaryReceipt {
	if s.directory == nil {
		return r
	}
	if emp, ok := s.directory.lookup(r.EmployeeID); ok {
		r.EmployeeName = &emp.FullName
		r.EmployeeCode = &emp.EmployeeCode
		r.BranchID = emp.BranchID
		r.BranchName = emp.BranchName
	}
	return r
}

func (s *PayrollStore) joinCommission(r payroll.CommissionReceipt) payroll.CommissionReceipt {
	if s.directory == nil {
		return r
	}
	if emp, ok := s.directory.lookup(r.EmployeeID); ok {
		r.EmployeeName = &emp.FullName
		r.EmployeeCode = &emp.EmployeeCode
		r.BranchID = emp.BranchID
		r.BranchName = emp.BranchName
	}
	return r
}

func matches(f payroll.ReceiptFilter, period payroll.Period, status payroll.ReceiptStatus, employeeID string, branchID *string) bool {
	if f.PeriodMonth != nil && period.Month != *f.PeriodMonth {
		return false
	}
	if f.PeriodYear != nil && period.Year != *f.PeriodYear {
		return false
	}
	if f.Status != nil && string(status) != *f.Status {
		return false
	}
	if f.EmployeeID != nil && employeeID != *f.EmployeeID {
		return false
	}
	if f.BranchID != nil && (branchID == nil || *branchID != *f.BranchID) {
		return false
	}
	return true
}

// lessReceipt orders by period (newest first) then employee code unless
// the filter asks for another column.
func lessReceipt(f payroll.ReceiptFilter, pa, pb payroll.Period, ca, cb *string, aa, ab decimal.Decimal, ia, ib string) bool {
	asc := strings.EqualFold(f.SortOrder, "asc")
	switch f.SortBy {
	case "amount", "net_salary", "commission_amount":
		if !aa.Equal(ab) {
			if asc {
				return aa.LessThan(ab)
			}
			return aa.GreaterThan(ab)
		}
	case "employee_code":
		if deref(ca) != deref(cb) {
			if asc || f.SortOrder == "" {
				return deref(ca) < deref(cb)
			}
			return deref(ca) > deref(cb)
		}
	}
	if pa != pb {
		if asc {
			return pa.Index() < pb.Index()
		}
		return pa.Index() > pb.Index()
	}
	if deref(ca) != deref(cb) {
		return deref(ca) < deref(cb)
	}
	return ia < ib
}

func paginate[T any](items []T, f payroll.ReceiptFilter) []T {
	if f.Limit <= 0 {
		return items
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * f.Limit
	if start >= len(items) {
		return []T{}
	}
	end := start + f.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
