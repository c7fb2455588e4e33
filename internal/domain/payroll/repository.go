package payroll

import (
	"context"
	"io"
	"time"
)

// PayrollRepository defines data access methods for payroll periods and receipts.
// All methods include companyID parameter to prevent cross-company data access attacks.
type PayrollRepository interface {
	// Periods
	GetPeriod(ctx context.Context, companyID string, period Period, kind ReceiptKind) (PayrollPeriod, error)
	// EnsureOpenPeriod creates the period row as open when it does not exist yet and returns the stored row.
	EnsureOpenPeriod(ctx context.Context, companyID string, period Period, kind ReceiptKind) (PayrollPeriod, error)
	// ClosePeriod atomically marks the period and all of its receipts closed and drops their stored documents.
	ClosePeriod(ctx context.Context, companyID string, period Period, kind ReceiptKind, closedBy string) (PayrollPeriod, error)

	// Salary receipts
	// UpsertSalaryReceipt inserts or replaces the receipt keyed by (employee, period); closed rows are never touched.
	UpsertSalaryReceipt(ctx context.Context, receipt SalaryReceipt) (SalaryReceipt, UpsertOutcome, error)
	GetSalaryReceiptByID(ctx context.Context, id string, companyID string) (SalaryReceipt, error)
	GetSalaryReceiptByEmployeePeriod(ctx context.Context, employeeID string, period Period, companyID string) (SalaryReceipt, error)
	ListSalaryReceipts(ctx context.Context, companyID string, filter ReceiptFilter) ([]SalaryReceipt, int64, error)
	ListSalaryReceiptsForEmployee(ctx context.Context, companyID string, employeeID string, from, to Period) ([]SalaryReceipt, error)
	// SetSalaryReceiptDocument records documentRef only while the receipt is still at version readAt
	// (its UpdatedAt); otherwise it returns ErrReceiptChanged.
	SetSalaryReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error

	// Commission receipts
	UpsertCommissionReceipt(ctx context.Context, receipt CommissionReceipt) (CommissionReceipt, UpsertOutcome, error)
	GetCommissionReceiptByID(ctx context.Context, id string, companyID string) (CommissionReceipt, error)
	GetCommissionReceiptByEmployeePeriod(ctx context.Context, employeeID string, period Period, companyID string) (CommissionReceipt, error)
	ListCommissionReceipts(ctx context.Context, companyID string, filter ReceiptFilter) ([]CommissionReceipt, int64, error)
	SetCommissionReceiptDocument(ctx context.Context, id string, companyID string, documentRef string, readAt time.Time) error

	// Aggregations
	ListReceiptEmployeeIDs(ctx context.Context, companyID string, period Period, kind ReceiptKind) ([]string, error)
	GetPeriodSummary(ctx context.Context, companyID string, period Period, kind ReceiptKind) (PeriodSummaryResponse, error)
}

// ProductionSource supplies monthly production figures for commission-eligible employees.
type ProductionSource interface {
	GetProductionFigures(ctx context.Context, companyID string, period Period) ([]ProductionFigure, error)
}

// DocumentStore keeps rendered receipt documents.
type DocumentStore interface {
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ReceiptMessage is the hand-off to the notification dispatcher.
type ReceiptMessage struct {
	ReceiptID    string
	Kind         ReceiptKind
	Period       Period
	EmployeeID   string
	EmployeeName string
	To           string
	FileName     string
	Document     []byte
}

// Dispatcher delivers a rendered receipt to an employee; delivery outcome is its own concern.
type Dispatcher interface {
	SendReceipt(ctx context.Context, msg ReceiptMessage) error
}
