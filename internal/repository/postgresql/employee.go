package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeDirectoryImpl struct {
	db *database.DB
}

func NewEmployeeDirectory(db *database.DB) employee.Directory {
	return &employeeDirectoryImpl{db: db}
}

const employeeSelect = `
	SELECT e.id, e.company_id, e.branch_id, b.name AS branch_name, e.employee_code, e.full_name,
		   u.email, COALESCE(e.role_classification, ''), e.hire_date, e.employment_status,
		   COALESCE(e.bank_name, ''), e.bank_account_holder_name, COALESCE(e.bank_account_number, ''),
		   e.base_salary
	FROM employees e
	LEFT JOIN branches b ON e.branch_id = b.id
	LEFT JOIN users u ON e.user_id = u.id
`

func scanEmployee(row rowScanner) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.CompanyID, &emp.BranchID, &emp.BranchName, &emp.EmployeeCode, &emp.FullName,
		&emp.Email, &emp.RoleClassification, &emp.HireDate, &emp.EmploymentStatus,
		&emp.BankName, &emp.BankAccountHolderName, &emp.BankAccountNumber,
		&emp.BaseSalary,
	)
	return emp, err
}

// GetByID implements employee.Directory.
func (e *employeeDirectoryImpl) GetByID(ctx context.Context, companyID string, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `WHERE e.id = $1 AND e.company_id = $2 AND e.deleted_at IS NULL`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee %s: %w", id, err)
	}
	return emp, nil
}

// GetByIDs implements employee.Directory. Unknown ids are left out.
func (e *employeeDirectoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `WHERE e.id = ANY($1::uuid[]) AND e.company_id = $2 AND e.deleted_at IS NULL`

	return e.queryEmployees(ctx, q, query, ids, companyID)
}

// GetActiveByCompanyID implements employee.Directory.
func (e *employeeDirectoryImpl) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `
		WHERE e.company_id = $1 AND e.employment_status = $2 AND e.deleted_at IS NULL
		ORDER BY e.employee_code
	`

	return e.queryEmployees(ctx, q, query, companyID, employee.EmploymentStatusActive)
}

// ListCompanyIDsWithActiveEmployees implements employee.Directory.
func (e *employeeDirectoryImpl) ListCompanyIDsWithActiveEmployees(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT DISTINCT company_id
		FROM employees
		WHERE employment_status = $1 AND deleted_at IS NULL
		ORDER BY company_id
	`

	rows, err := q.Query(ctx, query, employee.EmploymentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
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

func (e *employeeDirectoryImpl) queryEmployees(ctx context.Context, q database.Querier, query string, args ...any) ([]employee.Employee, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}
