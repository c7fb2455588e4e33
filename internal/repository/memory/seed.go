package memory

import (
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// seedFile is the YAML layout accepted by LoadSeedFile. Amounts are strings
// so they are never parsed through float64.
type seedFile struct {
	Companies []struct {
		ID        string `yaml:"id"`
		Employees []struct {
			ID                string `yaml:"id"`
			Code              string `yaml:"code"`
			Name              string `yaml:"name"`
			Email             string `yaml:"email"`
			Role              string `yaml:"role"`
			HireDate          string `yaml:"hire_date"`
			Status            string `yaml:"status"`
			BranchID          string `yaml:"branch_id"`
			BranchName        string `yaml:"branch_name"`
			BankName          string `yaml:"bank_name"`
			BankAccountHolder string `yaml:"bank_account_holder"`
			BankAccountNumber string `yaml:"bank_account_number"`
			BaseSalary        string `yaml:"base_salary"`
		} `yaml:"employees"`
		Production []struct {
			EmployeeID  string `yaml:"employee_id"`
			Period      string `yaml:"period"`
			Amount      string `yaml:"amount"`
			AchievedPct string `yaml:"achieved_pct"`
		} `yaml:"production"`
	} `yaml:"companies"`
}

// LoadSeedFile fills the directory and production store from a YAML file.
func LoadSeedFile(path string, directory *Directory, production *ProductionStore) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return LoadSeed(data, directory, production)
}

func LoadSeed(data []byte, directory *Directory, production *ProductionStore) error {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	for _, c := range sf.Companies {
		for _, e := range c.Employees {
			emp := employee.Employee{
				ID:                 e.ID,
				CompanyID:          c.ID,
				EmployeeCode:       e.Code,
				FullName:           e.Name,
				RoleClassification: e.Role,
				EmploymentStatus:   employee.EmploymentStatus(e.Status),
				BankName:           e.BankName,
				BankAccountNumber:  e.BankAccountNumber,
				Email:              optional(e.Email),
				BranchID:           optional(e.BranchID),
				BranchName:         optional(e.BranchName),
			}
			emp.BankAccountHolderName = optional(e.BankAccountHolder)
			if emp.EmploymentStatus == "" {
				emp.EmploymentStatus = employee.EmploymentStatusActive
			}
			if e.HireDate != "" {
				hired, err := time.Parse("2006-01-02", e.HireDate)
				if err != nil {
					return fmt.Errorf("employee %s: invalid hire_date: %w", e.ID, err)
				}
				emp.HireDate = hired
			}
			if e.BaseSalary != "" {
				base, err := decimal.NewFromString(e.BaseSalary)
				if err != nil {
					return fmt.Errorf("employee %s: invalid base_salary: %w", e.ID, err)
				}
				emp.BaseSalary = &base
			}
			directory.Put(emp)
		}

		for _, p := range c.Production {
			start, err := time.Parse("2006-01", p.Period)
			if err != nil {
				return fmt.Errorf("production for %s: invalid period: %w", p.EmployeeID, err)
			}
			amount, err := decimal.NewFromString(p.Amount)
			if err != nil {
				return fmt.Errorf("production for %s: invalid amount: %w", p.EmployeeID, err)
			}
			achieved := decimal.Zero
			if p.AchievedPct != "" {
				if achieved, err = decimal.NewFromString(p.AchievedPct); err != nil {
					return fmt.Errorf("production for %s: invalid achieved_pct: %w", p.EmployeeID, err)
				}
			}
			production.Put(c.ID, payroll.ProductionFigure{
				EmployeeID:        p.EmployeeID,
				Period:            payroll.PeriodOf(start),
				ProductionAmount:  amount,
				TargetAchievedPct: achieved,
			})
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
