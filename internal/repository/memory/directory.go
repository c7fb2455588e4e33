package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
)

// Directory is an in-memory employee.Directory seeded by the caller.
type Directory struct {
	mu        sync.RWMutex
	employees []employee.Employee
}

func NewDirectory(employees ...employee.Employee) *Directory {
	return &Directory{employees: append([]employee.Employee(nil), employees...)}
}

var _ employee.Directory = (*Directory)(nil)

// Put replaces the employee with the same ID or appends it.
func (d *Directory) Put(emp employee.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.employees {
		if d.employees[i].ID == emp.ID {
			d.employees[i] = emp
			return
		}
	}
	d.employees = append(d.employees, emp)
}

func (d *Directory) lookup(id string) (employee.Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.employees {
		if e.ID == id {
			return e, true
		}
	}
	return employee.Employee{}, false
}

func (d *Directory) GetByID(ctx context.Context, companyID string, id string) (employee.Employee, error) {
	emp, ok := d.lookup(id)
	if !ok || emp.CompanyID != companyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

func (d *Directory) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []employee.Employee
	for _, e := range d.employees {
		if _, ok := want[e.ID]; ok && e.CompanyID == companyID {
			out = append(out, e)
			delete(want, e.ID)
		}
	}
	return out, nil
}

// GetActiveByCompanyID returns the active employees in insertion order,
// duplicates included, as a live directory feed might.
func (d *Directory) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []employee.Employee
	for _, e := range d.employees {
		if e.CompanyID == companyID && e.IsActive() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *Directory) ListCompanyIDsWithActiveEmployees(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, e := range d.employees {
		if !e.IsActive() {
			continue
		}
		if _, ok := seen[e.CompanyID]; !ok {
			seen[e.CompanyID] = struct{}{}
			ids = append(ids, e.CompanyID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
