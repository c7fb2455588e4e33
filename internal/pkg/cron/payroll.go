package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
)

// PayrollJobs generates the current month's receipts once the configured day is reached.
type PayrollJobs struct {
	payrollService payroll.PayrollService
	directory      employee.Directory
	day            int
	interval       time.Duration
	now            func() time.Time

	mu   sync.Mutex
	done map[string]payroll.Period
}

// NewPayrollJobs creates payroll cron jobs. A day of 0 disables auto generation.
func NewPayrollJobs(payrollService payroll.PayrollService, directory employee.Directory, day int, interval time.Duration) *PayrollJobs {
	return &PayrollJobs{
		payrollService: payrollService,
		directory:      directory,
		day:            day,
		interval:       interval,
		now:            time.Now,
		done:           make(map[string]payroll.Period),
	}
}

// RegisterJobs registers all payroll-related cron jobs
func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	if j.day == 0 {
		slog.Info("Payroll auto generation disabled")
		return
	}
	scheduler.AddJob("generate_monthly_payroll", j.interval, j.GenerateMonthlyPayroll)
}

// GenerateMonthlyPayroll runs salary then commission generation for every
// company with active employees. Each company is processed once per period;
// closed or busy periods are skipped.
func (j *PayrollJobs) GenerateMonthlyPayroll(ctx context.Context) error {
	now := j.now()
	if now.Day() < j.day {
		return nil
	}
	period := payroll.PeriodOf(now)

	companyIDs, err := j.directory.ListCompanyIDsWithActiveEmployees(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}

	var errs []error
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if j.alreadyDone(companyID, period) {
			continue
		}

		if err := j.generateCompany(ctx, companyID, period); err != nil {
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}
		j.markDone(companyID, period)
	}
	return errors.Join(errs...)
}

func (j *PayrollJobs) generateCompany(ctx context.Context, companyID string, period payroll.Period) error {
	salary, err := j.payrollService.GenerateSalaryPeriod(ctx, companyID, period)
	if skippable(err) {
		slog.Info("Salary period not generated", "company_id", companyID, "period", period.String(), "reason", err)
	} else if err != nil {
		return err
	} else {
		slog.Info("Salary period generated",
			"company_id", companyID,
			"period", period.String(),
			"created", salary.Created,
			"updated", salary.Updated,
			"failed", salary.Failed,
		)
	}

	commission, err := j.payrollService.GenerateCommissionPeriod(ctx, companyID, period)
	if skippable(err) {
		slog.Info("Commission period not generated", "company_id", companyID, "period", period.String(), "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("Commission period generated",
		"company_id", companyID,
		"period", period.String(),
		"created", commission.Created,
		"updated", commission.Updated,
		"failed", commission.Failed,
	)
	return nil
}

func skippable(err error) bool {
	return errors.Is(err, payroll.ErrPeriodClosed) || errors.Is(err, payroll.ErrPeriodGenerationInProgress)
}

func (j *PayrollJobs) alreadyDone(companyID string, period payroll.Period) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	last, ok := j.done[companyID]
	return ok && last == period
}

func (j *PayrollJobs) markDone(companyID string, period payroll.Period) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done[companyID] = period
}
