package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
)

type productionRepository struct {
	db *database.DB
}

// NewProductionRepository reads the monthly production figures loaded by the sales systems.
func NewProductionRepository(db *database.DB) payroll.ProductionSource {
	return &productionRepository{db: db}
}

func (r *productionRepository) GetProductionFigures(ctx context.Context, companyID string, period payroll.Period) ([]payroll.ProductionFigure, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, period_year, period_month, production_amount, target_achieved_pct
		FROM production_figures
		WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, companyID, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to get production figures: %w", err)
	}
	defer rows.Close()

	var figures []payroll.ProductionFigure
	for rows.Next() {
		var f payroll.ProductionFigure
		if err := rows.Scan(&f.EmployeeID, &f.Period.Year, &f.Period.Month, &f.ProductionAmount, &f.TargetAchievedPct); err != nil {
			return nil, fmt.Errorf("failed to scan production figure: %w", err)
		}
		figures = append(figures, f)
	}
	return figures, rows.Err()
}
