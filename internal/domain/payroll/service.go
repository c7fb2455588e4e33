package payroll

import (
	"context"
	"time"
)

// PayrollService is the operational surface of the payroll engine.
// Every method is scoped to one company; identifiers are passed explicitly.
type PayrollService interface {
	// Generation
	GenerateSalaryPeriod(ctx context.Context, companyID string, period Period) (RunSummary, error)
	GenerateCommissionPeriod(ctx context.Context, companyID string, period Period) (RunSummary, error)

	// Lifecycle
	ClosePeriod(ctx context.Context, companyID string, req ClosePeriodRequest) (PeriodResponse, error)
	GetPeriod(ctx context.Context, companyID string, period Period, kind ReceiptKind) (PeriodResponse, error)
	GetPeriodSummary(ctx context.Context, companyID string, period Period, kind ReceiptKind) (PeriodSummaryResponse, error)

	// Receipts
	GetSalaryReceipt(ctx context.Context, companyID string, id string) (SalaryReceiptResponse, error)
	GetCommissionReceipt(ctx context.Context, companyID string, id string) (CommissionReceiptResponse, error)
	ListSalaryReceipts(ctx context.Context, companyID string, filter ReceiptFilter) (ListSalaryReceiptResponse, error)
	ListCommissionReceipts(ctx context.Context, companyID string, filter ReceiptFilter) (ListCommissionReceiptResponse, error)

	// Aguinaldo
	ProjectAguinaldo(ctx context.Context, companyID string, employeeID string, asOf time.Time) (AguinaldoResponse, error)
}

// ExportService renders already generated receipts; it never mutates amounts.
type ExportService interface {
	ExportReceipt(ctx context.Context, companyID string, kind ReceiptKind, id string) (ExportFile, error)
	ExportPeriodSpreadsheet(ctx context.Context, companyID string, kind ReceiptKind, filter ReceiptFilter) (SpreadsheetResult, error)
	ExportBankFile(ctx context.Context, companyID string, kind ReceiptKind, period Period) (BankFileResult, error)
	SendReceipt(ctx context.Context, companyID string, kind ReceiptKind, id string) error
}
