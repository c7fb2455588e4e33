package render

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDocument() ReceiptDocument {
	return ReceiptDocument{
		Title:        "Salary receipt",
		ReceiptID:    "rcpt-1",
		EmployeeName: "María Gómez",
		EmployeeCode: "EMP-001",
		BranchName:   "Asunción",
		Period:       "2025-03",
		PaymentDate:  time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC),
		Status:       "generated",
		Lines: []ReceiptLine{
			{Label: "Base salary", Amount: decimal.NewFromInt(5000000)},
			{Label: "Bonuses", Amount: decimal.NewFromInt(100000)},
			{Label: "Statutory deduction", Amount: decimal.NewFromInt(450000), Negative: true},
		},
		TotalLabel:       "Net salary",
		Total:            decimal.NewFromInt(4650000),
		Places:           2,
		VerificationCode: "salary:rcpt-1",
	}
}

func TestReceiptPDF_Deterministic(t *testing.T) {
	first, err := ReceiptPDF(sampleDocument())
	require.NoError(t, err)
	second, err := ReceiptPDF(sampleDocument())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)

	changed := sampleDocument()
	changed.Total = decimal.NewFromInt(1)
	third, err := ReceiptPDF(changed)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestSpreadsheet(t *testing.T) {
	content, err := Spreadsheet(Sheet{
		Name:    "Salary 2025-03",
		Headers: []string{"Employee", "Net"},
		Rows: [][]any{
			{"EMP-001", "4650000.00"},
			{"EMP-002", "100.50"},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Salary 2025-03")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Employee", "Net"}, rows[0])
	assert.Equal(t, "EMP-002", rows[2][0])
	assert.Equal(t, []string{"Salary 2025-03"}, f.GetSheetList())
}

func TestBankFile(t *testing.T) {
	content, err := BankFile(BankBatch{Reference: "batch-1", PaymentDate: "2025-03-30", Places: 2}, []BankLine{
		{Reference: "r1", EmployeeCode: "EMP-001", AccountHolder: "Gómez, María", BankName: "Itaú", AccountNumber: "0012345678", Amount: decimal.RequireFromString("4650000")},
		{Reference: "r2", EmployeeCode: "EMP-003", AccountHolder: "Juan Pérez", BankName: "Continental", AccountNumber: "9988776655", Amount: decimal.RequireFromString("1200.5")},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, bankFileHeader, records[0])
	assert.Equal(t, "Gómez, María", records[1][4])
	assert.Equal(t, "4650000.00", records[1][7])
	assert.Equal(t, "1200.50", records[2][7])
	assert.Equal(t, []string{"batch-1", "2025-03-30", "TOTAL", "2", "", "", "", "4651200.50"}, records[3])
}

func TestBankFile_Empty(t *testing.T) {
	content, err := BankFile(BankBatch{Reference: "b", PaymentDate: "2025-01-31", Places: 0}, nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0", records[1][7])
}
