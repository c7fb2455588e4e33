package payroll

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
)

const testCompanyID = "company-1"

var march2025 = payroll.Period{Year: 2025, Month: 3}

func salary(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

func newEmployee(id, code string, base *decimal.Decimal) employee.Employee {
	return employee.Employee{
		ID:                 id,
		CompanyID:          testCompanyID,
		BranchID:           strPtr("branch-main"),
		BranchName:         strPtr("Main"),
		EmployeeCode:       code,
		FullName:           "Employee " + code,
		Email:              strPtr(code + "@example.com"),
		RoleClassification: "administrative",
		HireDate:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EmploymentStatus:   employee.EmploymentStatusActive,
		BankName:           "Banco Nacional",
		BankAccountNumber:  "0012345678",
		BaseSalary:         base,
	}
}

func testRules() config.PayrollConfig {
	rules := config.DefaultPayrollConfig()
	rules.Workers = 4
	return rules
}

type fixture struct {
	svc        *PayrollServiceImpl
	store      *memory.PayrollStore
	directory  *memory.Directory
	production *memory.ProductionStore
	locks      *LockManager
}

func newFixture(t *testing.T, employees ...employee.Employee) *fixture {
	t.Helper()
	return newFixtureWithRules(t, testRules(), employees...)
}

func newFixtureWithRules(t *testing.T, rules config.PayrollConfig, employees ...employee.Employee) *fixture {
	t.Helper()
	directory := memory.NewDirectory(employees...)
	store := memory.NewPayrollStore(directory)
	production := memory.NewProductionStore()
	locks := NewLockManager()

	return &fixture{
		svc:        NewPayrollService(store, directory, production, rules, locks),
		store:      store,
		directory:  directory,
		production: production,
		locks:      locks,
	}
}

func (f *fixture) salaryReceipts(t *testing.T, period payroll.Period) []payroll.SalaryReceipt {
	t.Helper()
	receipts, _, err := f.store.ListSalaryReceipts(context.Background(), testCompanyID, payroll.ReceiptFilter{
		PeriodYear:  &period.Year,
		PeriodMonth: &period.Month,
	})
	if err != nil {
		t.Fatalf("list salary receipts: %v", err)
	}
	return receipts
}

// blockingDirectory holds the first GetActiveByCompanyID call until release is closed.
type blockingDirectory struct {
	employee.Directory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingDirectory(inner employee.Directory) *blockingDirectory {
	return &blockingDirectory{
		Directory: inner,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingDirectory) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.Directory.GetActiveByCompanyID(ctx, companyID)
}

// cancellingStore cancels the run after the first successful salary upsert.
type cancellingStore struct {
	*memory.PayrollStore
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingStore) UpsertSalaryReceipt(ctx context.Context, r payroll.SalaryReceipt) (payroll.SalaryReceipt, payroll.UpsertOutcome, error) {
	stored, outcome, err := c.PayrollStore.UpsertSalaryReceipt(ctx, r)
	c.once.Do(c.cancel)
	return stored, outcome, err
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []payroll.ReceiptMessage
	err  error
}

func (d *recordingDispatcher) SendReceipt(ctx context.Context, msg payroll.ReceiptMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}
