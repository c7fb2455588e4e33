package payroll

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
)

type periodKey struct {
	companyID string
	period    payroll.Period
	kind      payroll.ReceiptKind
}

// periodLock guards one (company, period, kind). gen is a one-slot semaphore
// held for the whole of a generation or close; state is write-locked by close
// and read-locked by exports.
type periodLock struct {
	gen   chan struct{}
	state sync.RWMutex
	refs  int // guarded by LockManager.mu
}

// LockManager hands out per-period locks. Periods never share a lock, so
// salary and commission runs for the same month proceed independently.
// An entry lives only while some caller holds or waits on it.
type LockManager struct {
	mu    sync.Mutex
	locks map[periodKey]*periodLock
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[periodKey]*periodLock)}
}

func (m *LockManager) acquire(key periodKey) *periodLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &periodLock{gen: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *LockManager) release(key periodKey, l *periodLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// TryGeneration claims the generation slot without waiting. A second caller
// gets ErrPeriodGenerationInProgress.
func (m *LockManager) TryGeneration(companyID string, period payroll.Period, kind payroll.ReceiptKind) (func(), error) {
	key := periodKey{companyID: companyID, period: period, kind: kind}
	l := m.acquire(key)
	select {
	case l.gen <- struct{}{}:
		return func() {
			<-l.gen
			m.release(key, l)
		}, nil
	default:
		m.release(key, l)
		return nil, payroll.ErrPeriodGenerationInProgress
	}
}

// LockForClose waits for any in-flight generation to finish, then excludes
// generation and exports until the returned release is called.
func (m *LockManager) LockForClose(ctx context.Context, companyID string, period payroll.Period, kind payroll.ReceiptKind) (func(), error) {
	key := periodKey{companyID: companyID, period: period, kind: kind}
	l := m.acquire(key)
	select {
	case l.gen <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
	l.state.Lock()
	return func() {
		l.state.Unlock()
		<-l.gen
		m.release(key, l)
	}, nil
}

// LockForRead blocks only while a close is running on the period.
func (m *LockManager) LockForRead(companyID string, period payroll.Period, kind payroll.ReceiptKind) func() {
	key := periodKey{companyID: companyID, period: period, kind: kind}
	l := m.acquire(key)
	l.state.RLock()
	return func() {
		l.state.RUnlock()
		m.release(key, l)
	}
}
