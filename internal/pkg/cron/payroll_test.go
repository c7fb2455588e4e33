package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateCall struct {
	kind      payroll.ReceiptKind
	companyID string
	period    payroll.Period
}

type fakePayrollService struct {
	payroll.PayrollService

	mu       sync.Mutex
	calls    []generateCall
	salaryFn func(companyID string) error
}

func (f *fakePayrollService) record(kind payroll.ReceiptKind, companyID string, period payroll.Period) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{kind, companyID, period})
}

func (f *fakePayrollService) GenerateSalaryPeriod(ctx context.Context, companyID string, period payroll.Period) (payroll.RunSummary, error) {
	f.record(payroll.ReceiptKindSalary, companyID, period)
	if f.salaryFn != nil {
		if err := f.salaryFn(companyID); err != nil {
			return payroll.RunSummary{}, err
		}
	}
	return payroll.NewRunSummary(payroll.ReceiptKindSalary, period, 0, time.Now()), nil
}

func (f *fakePayrollService) GenerateCommissionPeriod(ctx context.Context, companyID string, period payroll.Period) (payroll.RunSummary, error) {
	f.record(payroll.ReceiptKindCommission, companyID, period)
	return payroll.NewRunSummary(payroll.ReceiptKindCommission, period, 0, time.Now()), nil
}

func activeEmployee(id, companyID string) employee.Employee {
	return employee.Employee{ID: id, CompanyID: companyID, EmployeeCode: id, EmploymentStatus: employee.EmploymentStatusActive}
}

func TestPayrollJobs_GenerateMonthlyPayroll(t *testing.T) {
	directory := memory.NewDirectory(
		activeEmployee("e1", "company-b"),
		activeEmployee("e2", "company-a"),
		employee.Employee{ID: "e3", CompanyID: "company-c", EmploymentStatus: employee.EmploymentStatusInactive},
	)
	svc := &fakePayrollService{}
	jobs := NewPayrollJobs(svc, directory, 25, time.Hour)

	jobs.now = func() time.Time { return time.Date(2025, 3, 24, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, jobs.GenerateMonthlyPayroll(context.Background()))
	assert.Empty(t, svc.calls, "before the configured day")

	jobs.now = func() time.Time { return time.Date(2025, 3, 25, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, jobs.GenerateMonthlyPayroll(context.Background()))
	march := payroll.Period{Year: 2025, Month: 3}
	assert.Equal(t, []generateCall{
		{payroll.ReceiptKindSalary, "company-a", march},
		{payroll.ReceiptKindCommission, "company-a", march},
		{payroll.ReceiptKindSalary, "company-b", march},
		{payroll.ReceiptKindCommission, "company-b", march},
	}, svc.calls)

	// once per period
	require.NoError(t, jobs.GenerateMonthlyPayroll(context.Background()))
	assert.Len(t, svc.calls, 4)

	jobs.now = func() time.Time { return time.Date(2025, 4, 28, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, jobs.GenerateMonthlyPayroll(context.Background()))
	assert.Len(t, svc.calls, 8)
}

func TestPayrollJobs_SkipsClosedAndRetriesFailures(t *testing.T) {
	directory := memory.NewDirectory(activeEmployee("e1", "company-a"), activeEmployee("e2", "company-b"))
	svc := &fakePayrollService{}
	failing := true
	svc.salaryFn = func(companyID string) error {
		switch {
		case companyID == "company-a":
			return payroll.ErrPeriodClosed
		case failing:
			return errors.New("database unavailable")
		}
		return nil
	}
	jobs := NewPayrollJobs(svc, directory, 1, time.Hour)
	jobs.now = func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) }

	err := jobs.GenerateMonthlyPayroll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company-b")

	failing = false
	require.NoError(t, jobs.GenerateMonthlyPayroll(context.Background()))

	var companyB int
	for _, c := range svc.calls {
		if c.companyID == "company-b" && c.kind == payroll.ReceiptKindSalary {
			companyB++
		}
	}
	assert.Equal(t, 2, companyB, "failed company is retried on the next tick")
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler(context.Background())
	ran := 0
	s.AddJob("ok", time.Hour, func(ctx context.Context) error { ran++; return nil })
	s.AddJob("broken", time.Hour, func(ctx context.Context) error { return errors.New("boom") })

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, 1, ran)
}

func TestPayrollJobs_DisabledRegistersNothing(t *testing.T) {
	s := NewScheduler(context.Background())
	NewPayrollJobs(&fakePayrollService{}, memory.NewDirectory(), 0, time.Hour).RegisterJobs(s)
	assert.Empty(t, s.jobs)
}
