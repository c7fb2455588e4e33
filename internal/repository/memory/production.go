package memory

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
)

type productionKey struct {
	companyID string
	period    payroll.Period
}

// ProductionStore is an in-memory payroll.ProductionSource.
type ProductionStore struct {
	mu      sync.RWMutex
	figures map[productionKey]map[string]payroll.ProductionFigure
}

func NewProductionStore() *ProductionStore {
	return &ProductionStore{figures: make(map[productionKey]map[string]payroll.ProductionFigure)}
}

var _ payroll.ProductionSource = (*ProductionStore)(nil)

// Put records the figure for its employee and period, replacing any earlier one.
func (p *ProductionStore) Put(companyID string, figure payroll.ProductionFigure) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := productionKey{companyID, figure.Period}
	if p.figures[key] == nil {
		p.figures[key] = make(map[string]payroll.ProductionFigure)
	}
	p.figures[key][figure.EmployeeID] = figure
}

func (p *ProductionStore) GetProductionFigures(ctx context.Context, companyID string, period payroll.Period) ([]payroll.ProductionFigure, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byEmployee := p.figures[productionKey{companyID, period}]
	out := make([]payroll.ProductionFigure, 0, len(byEmployee))
	for _, f := range byEmployee {
		out = append(out, f)
	}
	return out, nil
}
