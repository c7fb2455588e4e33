package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func receiptTable(kind payroll.ReceiptKind) (string, error) {
	switch kind {
	case payroll.ReceiptKindSalary:
		return "salary_receipts", nil
	case payroll.ReceiptKindCommission:
		return "commission_receipts", nil
	}
	return "", fmt.Errorf("%w: %q", payroll.ErrInvalidReceiptKind, kind)
}

// ========== PERIODS ==========

const periodColumns = `id, company_id, period_year, period_month, kind, status, opened_at, closed_at, closed_by`

func scanPeriod(row rowScanner) (payroll.PayrollPeriod, error) {
	var p payroll.PayrollPeriod
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Period.Year, &p.Period.Month, &p.Kind, &p.Status,
		&p.OpenedAt, &p.ClosedAt, &p.ClosedBy,
	)
	return p, err
}

func (r *payrollRepository) GetPeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + periodColumns + `
		FROM payroll_periods
		WHERE company_id = $1 AND period_year = $2 AND period_month = $3 AND kind = $4
	`

	p, err := scanPeriod(q.QueryRow(ctx, query, companyID, period.Year, period.Month, kind))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to get payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollRepository) EnsureOpenPeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	// the no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO payroll_periods (company_id, period_year, period_month, kind, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, period_year, period_month, kind) DO UPDATE SET
			company_id = payroll_periods.company_id
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query, companyID, period.Year, period.Month, kind, payroll.PeriodStatusOpen))
	if err != nil {
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to ensure payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollRepository) ClosePeriod(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind, closedBy string) (payroll.PayrollPeriod, error) {
	table, err := receiptTable(kind)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}

	var closed payroll.PayrollPeriod
	err = WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var status payroll.PeriodStatus
		err := q.QueryRow(ctx, `
			SELECT status FROM payroll_periods
			WHERE company_id = $1 AND period_year = $2 AND period_month = $3 AND kind = $4
			FOR UPDATE
		`, companyID, period.Year, period.Month, kind).Scan(&status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return payroll.ErrPeriodNotFound
			}
			return fmt.Errorf("failed to lock payroll period: %w", err)
		}

		next, err := status.Transition(payroll.PeriodEventClose)
		if err != nil {
			return err
		}

		var closedByArg *string
		if closedBy != "" {
			closedByArg = &closedBy
		}

		closed, err = scanPeriod(q.QueryRow(ctx, `
			UPDATE payroll_periods
			SET status = $5, closed_at = NOW(), closed_by = $6
			WHERE company_id = $1 AND period_year = $2 AND period_month = $3 AND kind = $4
			RETURNING `+periodColumns,
			companyID, period.Year, period.Month, kind, next, closedByArg,
		))
		if err != nil {
			return fmt.Errorf("failed to close payroll period: %w", err)
		}

		updateReceipts := fmt.Sprintf(`
			UPDATE %s SET status = $4, document_ref = NULL, updated_at = NOW()
			WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		`, table)
		if _, err := q.Exec(ctx, updateReceipts, companyID, period.Year, period.Month, payroll.ReceiptStatusFor(next)); err != nil {
			return fmt.Errorf("failed to close %s: %w", table, err)
		}
		return nil
	})
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	return closed, nil
}

// ========== SALARY RECEIPTS ==========

const salarySelect = `
	SELECT sr.id, sr.company_id, sr.employee_id, sr.period_year, sr.period_month,
		   sr.gross_salary, sr.bonuses, sr.deductions, sr.net_salary, sr.payment_date,
		   sr.status, sr.document_ref, sr.created_at, sr.updated_at,
		   e.full_name AS employee_name, e.employee_code, e.branch_id, b.name AS branch_name
`

const salaryFrom = `
	FROM salary_receipts sr
	JOIN employees e ON sr.employee_id = e.id
	LEFT JOIN branches b ON e.branch_id = b.id
`

func scanSalaryReceipt(row rowScanner) (payroll.SalaryReceipt, error) {
	var rec payroll.SalaryReceipt
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.EmployeeID, &rec.Period.Year, &rec.Period.Month,
		&rec.GrossSalary, &rec.Bonuses, &rec.Deductions, &rec.NetSalary, &rec.PaymentDate,
		&rec.Status, &rec.DocumentRef, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.EmployeeName, &rec.EmployeeCode, &rec.BranchID, &rec.BranchName,
	)
	return rec, err
}

func (r *payrollRepository) UpsertSalaryReceipt(ctx context.Context, receipt payroll.SalaryReceipt) (payroll.SalaryReceipt, payroll.UpsertOutcome, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_receipts (
			company_id, employee_id, period_year, period_month,
			gross_salary, bonuses, deductions, net_salary, payment_date, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (employee_id, period_year, period_month) DO UPDATE SET
			gross_salary = EXCLUDED.gross_salary,
			bonuses = EXCLUDED.bonuses,
			deductions = EXCLUDED.deductions,
			net_salary = EXCLUDED.net_salary,
			payment_date = EXCLUDED.payment_date,
			document_ref = CASE
				WHEN salary_receipts.gross_salary = EXCLUDED.gross_salary
				 AND salary_receipts.bonuses = EXCLUDED.bonuses
				 AND salary_receipts.deductions = EXCLUDED.deductions
				 AND salary_receipts.net_salary = EXCLUDED.net_salary
				 AND salary_receipts.payment_date = EXCLUDED.payment_date
				THEN salary_receipts.document_ref
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE salary_receipts.status = $10 AND salary_receipts.company_id = EXCLUDED.company_id
		RETURNING id, (xmax = 0) AS inserted
	`

	var id string
	var inserted bool
	err := q.QueryRow(ctx, query,
		receipt.CompanyID, receipt.EmployeeID, receipt.Period.Year, receipt.Period.Month,
		receipt.GrossSalary, receipt.Bonuses, receipt.Deductions, receipt.NetSalary, receipt.PaymentDate,
		payroll.ReceiptStatusGenerated,
	).Scan(&id, &inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			// conflict row exists but is closed
			existing, getErr := r.GetSalaryReceiptByEmployeePeriod(ctx, receipt.EmployeeID, receipt.Period, receipt.CompanyID)
			if getErr != nil {
				return payroll.SalaryReceipt{}, "", getErr
			}
			return existing, payroll.UpsertRejected, nil
		}
		return payroll.SalaryReceipt{}, "", fmt.Errorf("failed to upsert salary receipt: %w", err)
	}

	stored, err := r.GetSalaryReceiptByID(ctx, id, receipt.CompanyID)
	if err != nil {
		return payroll.SalaryReceipt{}, "", err
	}
	if inserted {
		return stored, payroll.UpsertCreated, nil
	}
	return stored, payroll.UpsertUpdated, nil
}

func (r *payrollRepository) GetSalaryReceiptByID(ctx context.Context, id string, companyID string) (payroll.SalaryReceipt, error) {
	q := GetQuerier(ctx, r.db)

	query := salarySelect + salaryFrom + `WHERE sr.id = $1 AND sr.company_id = $2`

	rec, err := scanSalaryReceipt(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.SalaryReceipt{}, payroll.ErrReceiptNotFound
		}
		return payroll.SalaryReceipt{}, fmt.Errorf("failed to get salary receipt: %w", err)
	}
	return rec, nil
}

func (r *payrollRepository) GetSalaryReceiptByEmployeePeriod(ctx context.Context, employeeID string, period payroll.Period, companyID string) (payroll.SalaryReceipt, error) {
	q := GetQuerier(ctx, r.db)

	query := salarySelect + salaryFrom + `
		WHERE sr.employee_id = $1 AND sr.period_year = $2 AND sr.period_month = $3 AND sr.company_id = $4
	`

	rec, err := scanSalaryReceipt(q.QueryRow(ctx, query, employeeID, period.Year, period.Month, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.SalaryReceipt{}, payroll.ErrReceiptNotFound
		}
		return payroll.SalaryReceipt{}, fmt.Errorf("failed to get salary receipt: %w", err)
	}
	return rec, nil
}

func (r *payrollRepository) ListSalaryReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) ([]payroll.SalaryReceipt, int64, error) {
	q := GetQuerier(ctx, r.db)

	where, args := receiptWhere("sr", companyID, filter)
	baseQuery := salaryFrom + where

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count salary receipts: %w", err)
	}

	selectQuery := salarySelect + baseQuery + receiptOrder("sr", "sr.net_salary", filter)
	selectQuery, args = paginate(selectQuery, args, filter)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list salary receipts: %w", err)
	}
	defer rows.Close()

	var receipts []payroll.SalaryReceipt
	for rows.Next() {
		rec, err := scanSalaryReceipt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan salary receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return receipts, totalCount, nil
}

func (r *payrollRepository) ListSalaryReceiptsForEmployee(ctx context.Context, companyID string, employeeID string, from, to payroll.Period) ([]payroll.SalaryReceipt, error) {
	q := GetQuerier(ctx, r.db)

	query := salarySelect + salaryFrom + `
		WHERE sr.company_id = $1 AND sr.employee_id = $2
		  AND (sr.period_year * 12 + sr.period_month - 1) BETWEEN $3 AND $4
		ORDER BY sr.period_year, sr.period_month
	`

	rows, err := q.Query(ctx, query, companyID, employeeID, from.Index(), to.Index())
	if err != nil {
		return nil, fmt.Errorf("failed to list salary receipts for employee: %w", err)
	}
	defer rows.Close()

	var receipts []payroll.SalaryReceipt
	for rows.Next() {
		rec, err := scanSalaryReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

func (r *payrollRepository) SetSalaryReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error {
	return r.setDocument(ctx, "salary_receipts", id, companyID, documentRef, readAt)
}

// ========== COMMISSION RECEIPTS ==========

const commissionSelect = `
	SELECT cr.id, cr.company_id, cr.employee_id, cr.period_year, cr.period_month,
		   cr.production_amount, cr.commission_rate, cr.commission_amount, cr.target_achieved_pct,
		   cr.payment_date, cr.status, cr.document_ref, cr.created_at, cr.updated_at,
		   e.full_name AS employee_name, e.employee_code, e.branch_id, b.name AS branch_name
`

const commissionFrom = `
	FROM commission_receipts cr
	JOIN employees e ON cr.employee_id = e.id
	LEFT JOIN branches b ON e.branch_id = b.id
`

func scanCommissionReceipt(row rowScanner) (payroll.CommissionReceipt, error) {
	var rec payroll.CommissionReceipt
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.EmployeeID, &rec.Period.Year, &rec.Period.Month,
		&rec.ProductionAmount, &rec.CommissionRate, &rec.CommissionAmount, &rec.TargetAchievedPct,
		&rec.PaymentDate, &rec.Status, &rec.DocumentRef, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.EmployeeName, &rec.EmployeeCode, &rec.BranchID, &rec.BranchName,
	)
	return rec, err
}

func (r *payrollRepository) UpsertCommissionReceipt(ctx context.Context, receipt payroll.CommissionReceipt) (payroll.CommissionReceipt, payroll.UpsertOutcome, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO commission_receipts (
			company_id, employee_id, period_year, period_month,
			production_amount, commission_rate, commission_amount, target_achieved_pct,
			payment_date, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (employee_id, period_year, period_month) DO UPDATE SET
			production_amount = EXCLUDED.production_amount,
			commission_rate = EXCLUDED.commission_rate,
			commission_amount = EXCLUDED.commission_amount,
			target_achieved_pct = EXCLUDED.target_achieved_pct,
			payment_date = EXCLUDED.payment_date,
			document_ref = CASE
				WHEN commission_receipts.production_amount = EXCLUDED.production_amount
				 AND commission_receipts.commission_rate = EXCLUDED.commission_rate
				 AND commission_receipts.commission_amount = EXCLUDED.commission_amount
				 AND commission_receipts.target_achieved_pct = EXCLUDED.target_achieved_pct
				 AND commission_receipts.payment_date = EXCLUDED.payment_date
				THEN commission_receipts.document_ref
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE commission_receipts.status = $10 AND commission_receipts.company_id = EXCLUDED.company_id
		RETURNING id, (xmax = 0) AS inserted
	`

	var id string
	var inserted bool
	err := q.QueryRow(ctx, query,
		receipt.CompanyID, receipt.EmployeeID, receipt.Period.Year, receipt.Period.Month,
		receipt.ProductionAmount, receipt.CommissionRate, receipt.CommissionAmount, receipt.TargetAchievedPct,
		receipt.PaymentDate, payroll.ReceiptStatusGenerated,
	).Scan(&id, &inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			existing, getErr := r.GetCommissionReceiptByEmployeePeriod(ctx, receipt.EmployeeID, receipt.Period, receipt.CompanyID)
			if getErr != nil {
				return payroll.CommissionReceipt{}, "", getErr
			}
			return existing, payroll.UpsertRejected, nil
		}
		return payroll.CommissionReceipt{}, "", fmt.Errorf("failed to upsert commission receipt: %w", err)
	}

	stored, err := r.GetCommissionReceiptByID(ctx, id, receipt.CompanyID)
	if err != nil {
		return payroll.CommissionReceipt{}, "", err
	}
	if inserted {
		return stored, payroll.UpsertCreated, nil
	}
	return stored, payroll.UpsertUpdated, nil
}

func (r *payrollRepository) GetCommissionReceiptByID(ctx context.Context, id string, companyID string) (payroll.CommissionReceipt, error) {
	q := GetQuerier(ctx, r.db)

	query := commissionSelect + commissionFrom + `WHERE cr.id = $1 AND cr.company_id = $2`

	rec, err := scanCommissionReceipt(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.CommissionReceipt{}, payroll.ErrReceiptNotFound
		}
		return payroll.CommissionReceipt{}, fmt.Errorf("failed to get commission receipt: %w", err)
	}
	return rec, nil
}

func (r *payrollRepository) GetCommissionReceiptByEmployeePeriod(ctx context.Context, employeeID string, period payroll.Period, companyID string) (payroll.CommissionReceipt, error) {
	q := GetQuerier(ctx, r.db)

	query := commissionSelect + commissionFrom + `
		WHERE cr.employee_id = $1 AND cr.period_year = $2 AND cr.period_month = $3 AND cr.company_id = $4
	`

	rec, err := scanCommissionReceipt(q.QueryRow(ctx, query, employeeID, period.Year, period.Month, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.CommissionReceipt{}, payroll.ErrReceiptNotFound
		}
		return payroll.CommissionReceipt{}, fmt.Errorf("failed to get commission receipt: %w", err)
	}
	return rec, nil
}

func (r *payrollRepository) ListCommissionReceipts(ctx context.Context, companyID string, filter payroll.ReceiptFilter) ([]payroll.CommissionReceipt, int64, error) {
	q := GetQuerier(ctx, r.db)

	where, args := receiptWhere("cr", companyID, filter)
	baseQuery := commissionFrom + where

	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count commission receipts: %w", err)
	}

	selectQuery := commissionSelect + baseQuery + receiptOrder("cr", "cr.commission_amount", filter)
	selectQuery, args = paginate(selectQuery, args, filter)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commission receipts: %w", err)
	}
	defer rows.Close()

	var receipts []payroll.CommissionReceipt
	for rows.Next() {
		rec, err := scanCommissionReceipt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan commission receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return receipts, totalCount, nil
}

func (r *payrollRepository) SetCommissionReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error {
	return r.setDocument(ctx, "commission_receipts", id, companyID, documentRef, readAt)
}

// setDocument leaves updated_at alone so the stored ref stays tied to the
// version it was rendered from.
func (r *payrollRepository) setDocument(ctx context.Context, table string, id string, companyID string, documentRef string, readAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s SET document_ref = $3
		WHERE id = $1 AND company_id = $2 AND updated_at = $4
		RETURNING id
	`, table)

	var updatedID string
	err := q.QueryRow(ctx, query, id, companyID, documentRef, readAt).Scan(&updatedID)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return fmt.Errorf("failed to set receipt document: %w", err)
	}

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND company_id = $2)`, table)
	if err := q.QueryRow(ctx, existsQuery, id, companyID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check receipt: %w", err)
	}
	if !exists {
		return payroll.ErrReceiptNotFound
	}
	return payroll.ErrReceiptChanged
}

// ========== AGGREGATIONS ==========

func (r *payrollRepository) ListReceiptEmployeeIDs(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) ([]string, error) {
	table, err := receiptTable(kind)
	if err != nil {
		return nil, err
	}
	q := GetQuerier(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT employee_id FROM %s
		WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		ORDER BY employee_id
	`, table)

	rows, err := q.Query(ctx, query, companyID, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt employees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *payrollRepository) GetPeriodSummary(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (payroll.PeriodSummaryResponse, error) {
	q := GetQuerier(ctx, r.db)

	summary := payroll.PeriodSummaryResponse{
		PeriodMonth: period.Month,
		PeriodYear:  period.Year,
		Kind:        string(kind),
	}

	var err error
	switch kind {
	case payroll.ReceiptKindSalary:
		err = q.QueryRow(ctx, `
			SELECT COUNT(*),
				   COUNT(*) FILTER (WHERE status = $4),
				   COUNT(*) FILTER (WHERE status = $5),
				   COALESCE(SUM(gross_salary), 0),
				   COALESCE(SUM(bonuses), 0),
				   COALESCE(SUM(deductions), 0),
				   COALESCE(SUM(net_salary), 0),
				   0::numeric, 0::numeric
			FROM salary_receipts
			WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		`, companyID, period.Year, period.Month, payroll.ReceiptStatusGenerated, payroll.ReceiptStatusClosed).Scan(
			&summary.TotalReceipts, &summary.GeneratedCount, &summary.ClosedCount,
			&summary.TotalGross, &summary.TotalBonuses, &summary.TotalDeductions, &summary.TotalNet,
			&summary.TotalProduction, &summary.TotalCommission,
		)
	case payroll.ReceiptKindCommission:
		err = q.QueryRow(ctx, `
			SELECT COUNT(*),
				   COUNT(*) FILTER (WHERE status = $4),
				   COUNT(*) FILTER (WHERE status = $5),
				   0::numeric, 0::numeric, 0::numeric, 0::numeric,
				   COALESCE(SUM(production_amount), 0),
				   COALESCE(SUM(commission_amount), 0)
			FROM commission_receipts
			WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		`, companyID, period.Year, period.Month, payroll.ReceiptStatusGenerated, payroll.ReceiptStatusClosed).Scan(
			&summary.TotalReceipts, &summary.GeneratedCount, &summary.ClosedCount,
			&summary.TotalGross, &summary.TotalBonuses, &summary.TotalDeductions, &summary.TotalNet,
			&summary.TotalProduction, &summary.TotalCommission,
		)
	default:
		return payroll.PeriodSummaryResponse{}, fmt.Errorf("%w: %q", payroll.ErrInvalidReceiptKind, kind)
	}
	if err != nil {
		return payroll.PeriodSummaryResponse{}, fmt.Errorf("failed to summarize payroll period: %w", err)
	}
	return summary, nil
}

// ========== QUERY HELPERS ==========

func receiptWhere(alias string, companyID string, filter payroll.ReceiptFilter) (string, []any) {
	where := fmt.Sprintf("WHERE %s.company_id = $1", alias)
	args := []any{companyID}
	argIdx := 2

	if filter.PeriodMonth != nil {
		where += fmt.Sprintf(" AND %s.period_month = $%d", alias, argIdx)
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		where += fmt.Sprintf(" AND %s.period_year = $%d", alias, argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND %s.status = $%d", alias, argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil {
		where += fmt.Sprintf(" AND %s.employee_id = $%d", alias, argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.BranchID != nil {
		where += fmt.Sprintf(" AND e.branch_id = $%d", argIdx)
		args = append(args, *filter.BranchID)
	}
	return where, args
}

// receiptOrder sorts newest period first, then by employee code, unless the
// filter names another column.
func receiptOrder(alias string, amountColumn string, filter payroll.ReceiptFilter) string {
	asc := strings.EqualFold(filter.SortOrder, "asc")
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	period := fmt.Sprintf("%[1]s.period_year %[2]s, %[1]s.period_month %[2]s", alias, dir)
	tail := fmt.Sprintf("e.employee_code ASC, %s.id ASC", alias)

	allowedColumns := map[string]string{
		"amount":            amountColumn,
		"net_salary":        amountColumn,
		"commission_amount": amountColumn,
	}
	if col, ok := allowedColumns[filter.SortBy]; ok {
		return fmt.Sprintf(" ORDER BY %s %s, %s, %s", col, dir, period, tail)
	}
	if filter.SortBy == "employee_code" {
		codeDir := "ASC"
		if strings.EqualFold(filter.SortOrder, "desc") {
			codeDir = "DESC"
		}
		return fmt.Sprintf(" ORDER BY e.employee_code %s, %s, %s.id ASC", codeDir, period, alias)
	}
	return fmt.Sprintf(" ORDER BY %s, %s", period, tail)
}

// paginate appends LIMIT/OFFSET; a non-positive limit returns every row.
func paginate(query string, args []any, filter payroll.ReceiptFilter) (string, []any) {
	if filter.Limit <= 0 {
		return query, args
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * filter.Limit
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	return query, append(args, filter.Limit, offset)
}
