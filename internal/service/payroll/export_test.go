package payroll

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type exportFixture struct {
	*fixture
	exports    *ExportServiceImpl
	documents  *storage.LocalStorage
	dispatcher *recordingDispatcher
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()

	noBank := newEmployee("emp-2", "EMP-002", salary("3000000"))
	noBank.BankAccountNumber = ""
	noEmail := newEmployee("emp-3", "EMP-003", salary("2000000"))
	noEmail.Email = nil
	noEmail.BranchID = strPtr("branch-north")
	noEmail.BranchName = strPtr("North")

	f := newFixture(t, newEmployee("emp-1", "EMP-001", salary("5000000")), noBank, noEmail)
	_, err := f.svc.GenerateSalaryPeriod(context.Background(), testCompanyID, march2025)
	require.NoError(t, err)

	documents, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	dispatcher := &recordingDispatcher{}

	return &exportFixture{
		fixture:    f,
		exports:    NewExportService(f.store, f.directory, documents, dispatcher, f.locks, f.svc.rules.Rounding),
		documents:  documents,
		dispatcher: dispatcher,
	}
}

func (f *exportFixture) receiptFor(t *testing.T, employeeID string) payroll.SalaryReceipt {
	t.Helper()
	r, err := f.store.GetSalaryReceiptByEmployeePeriod(context.Background(), employeeID, march2025, testCompanyID)
	require.NoError(t, err)
	return r
}

func TestExportReceipt_CachesDocument(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	r := f.receiptFor(t, "emp-1")

	file, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "salary-receipt-2025-03-EMP-001.pdf", file.FileName)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF-")))

	stored := f.receiptFor(t, "emp-1")
	require.NotNil(t, stored.DocumentRef)
	ok, err := f.documents.Exists(ctx, *stored.DocumentRef)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.Equal(t, file.Content, again.Content)

	// re-rendering after the cache disappears is byte-identical
	require.NoError(t, f.documents.Delete(ctx, *stored.DocumentRef))
	rendered, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.Equal(t, file.Content, rendered.Content)
}

// regeneratingStorage reruns generation the first time a document is uploaded.
type regeneratingStorage struct {
	*storage.LocalStorage
	once       sync.Once
	regenerate func()
}

func (s *regeneratingStorage) Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error) {
	s.once.Do(s.regenerate)
	return s.LocalStorage.Upload(ctx, file, path, contentType)
}

func TestExportReceipt_RegeneratedWhileRenderingIsNotCached(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	r := f.receiptFor(t, "emp-1")

	documents := &regeneratingStorage{LocalStorage: f.documents}
	documents.regenerate = func() {
		f.directory.Put(newEmployee("emp-1", "EMP-001", salary("7000000")))
		_, err := f.svc.GenerateSalaryPeriod(ctx, testCompanyID, march2025)
		require.NoError(t, err)
	}
	exports := NewExportService(f.store, f.directory, documents, f.dispatcher, f.locks, f.svc.rules.Rounding)

	superseded, err := exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)

	current := f.receiptFor(t, "emp-1")
	assert.True(t, current.NetSalary.Equal(decimal.NewFromInt(6370000)), "got %s", current.NetSalary)
	assert.Nil(t, current.DocumentRef)

	fresh, err := exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, superseded.Content, fresh.Content)
	assert.NotNil(t, f.receiptFor(t, "emp-1").DocumentRef)

	cached, err := exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.Content, cached.Content)
}

func TestExportReceipt_CloseDropsCachedDocument(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	r := f.receiptFor(t, "emp-1")

	whileOpen, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	require.NotNil(t, f.receiptFor(t, "emp-1").DocumentRef)

	_, err = f.svc.ClosePeriod(ctx, testCompanyID, payroll.ClosePeriodRequest{PeriodMonth: 3, PeriodYear: 2025, Kind: payroll.ReceiptKindSalary})
	require.NoError(t, err)
	assert.Nil(t, f.receiptFor(t, "emp-1").DocumentRef)

	afterClose, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, whileOpen.Content, afterClose.Content, "document shows the closed status")
	assert.NotNil(t, f.receiptFor(t, "emp-1").DocumentRef)
}

func TestExportReceipt_NotFound(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.exports.ExportReceipt(context.Background(), testCompanyID, payroll.ReceiptKindSalary, "missing")
	assert.ErrorIs(t, err, payroll.ErrReceiptNotFound)

	_, err = f.exports.ExportReceipt(context.Background(), testCompanyID, payroll.ReceiptKindCommission, "missing")
	assert.ErrorIs(t, err, payroll.ErrReceiptNotFound)
}

func TestExportReceipt_ClosedPeriodStillExportable(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	_, err := f.svc.ClosePeriod(ctx, testCompanyID, payroll.ClosePeriodRequest{PeriodMonth: 3, PeriodYear: 2025, Kind: payroll.ReceiptKindSalary})
	require.NoError(t, err)

	file, err := f.exports.ExportReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, f.receiptFor(t, "emp-1").ID)
	require.NoError(t, err)
	assert.NotEmpty(t, file.Content)
}

func TestExportBankFile_ExcludesMissingBankDetails(t *testing.T) {
	f := newExportFixture(t)

	result, err := f.exports.ExportBankFile(context.Background(), testCompanyID, payroll.ReceiptKindSalary, march2025)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Lines)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "emp-2", result.Excluded[0].EmployeeID)
	assert.Equal(t, payroll.ErrMissingBankDetails.Error(), result.Excluded[0].Reason)

	expected := f.receiptFor(t, "emp-1").NetSalary.Add(f.receiptFor(t, "emp-3").NetSalary)
	assert.True(t, result.TotalAmount.Equal(expected))

	records, err := csv.NewReader(bytes.NewReader(result.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "EMP-001", records[1][3])
	assert.Equal(t, "2025-03-30", records[1][1])
	assert.Equal(t, expected.StringFixed(2), records[3][7])
	assert.Equal(t, "bank-transfer-salary-2025-03.csv", result.FileName)

	again, err := f.exports.ExportBankFile(context.Background(), testCompanyID, payroll.ReceiptKindSalary, march2025)
	require.NoError(t, err)
	assert.Equal(t, result.Content, again.Content, "batch reference is stable")
}

func TestExportPeriodSpreadsheet_Filters(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	result, err := f.exports.ExportPeriodSpreadsheet(ctx, testCompanyID, payroll.ReceiptKindSalary, payroll.ReceiptFilter{
		PeriodYear:  &march2025.Year,
		PeriodMonth: &march2025.Month,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, "salary-receipts-2025-03.xlsx", result.FileName)

	wb, err := excelize.OpenReader(bytes.NewReader(result.Content))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Salary receipts")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Employee Code", rows[0][0])

	branch, err := f.exports.ExportPeriodSpreadsheet(ctx, testCompanyID, payroll.ReceiptKindSalary, payroll.ReceiptFilter{BranchID: strPtr("branch-north")})
	require.NoError(t, err)
	assert.Equal(t, 1, branch.Rows)

	byEmployee, err := f.exports.ExportPeriodSpreadsheet(ctx, testCompanyID, payroll.ReceiptKindSalary, payroll.ReceiptFilter{EmployeeID: strPtr("emp-1")})
	require.NoError(t, err)
	assert.Equal(t, 1, byEmployee.Rows)

	commission, err := f.exports.ExportPeriodSpreadsheet(ctx, testCompanyID, payroll.ReceiptKindCommission, payroll.ReceiptFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, commission.Rows)
}

func TestSendReceipt(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	r := f.receiptFor(t, "emp-1")
	require.NoError(t, f.exports.SendReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID))
	require.Len(t, f.dispatcher.sent, 1)
	msg := f.dispatcher.sent[0]
	assert.Equal(t, "EMP-001@example.com", msg.To)
	assert.Equal(t, r.ID, msg.ReceiptID)
	assert.Equal(t, march2025, msg.Period)
	assert.True(t, bytes.HasPrefix(msg.Document, []byte("%PDF-")))

	err := f.exports.SendReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, f.receiptFor(t, "emp-3").ID)
	assert.ErrorIs(t, err, payroll.ErrNoRecipientEmail)

	f.dispatcher.err = errors.New("smtp down")
	err = f.exports.SendReceipt(ctx, testCompanyID, payroll.ReceiptKindSalary, r.ID)
	assert.Error(t, err)
}

func TestExportBankFile_Commission(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	advisor := newEmployee("emp-9", "EMP-009", salary("1000"))
	advisor.RoleClassification = "credit_advisor"
	f.directory.Put(advisor)
	f.production.Put(testCompanyID, payroll.ProductionFigure{
		EmployeeID: "emp-9", Period: march2025,
		ProductionAmount: decimal.NewFromInt(1000000), TargetAchievedPct: decimal.NewFromInt(90),
	})
	_, err := f.svc.GenerateCommissionPeriod(ctx, testCompanyID, march2025)
	require.NoError(t, err)

	result, err := f.exports.ExportBankFile(ctx, testCompanyID, payroll.ReceiptKindCommission, march2025)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Lines)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(50000)))
}
