package render

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"
)

// BankLine is one credit transfer in a bank payment file.
type BankLine struct {
	Reference     string
	EmployeeCode  string
	AccountHolder string
	BankName      string
	AccountNumber string
	Amount        decimal.Decimal
}

// BankBatch is the header of a bank payment file.
type BankBatch struct {
	Reference   string
	PaymentDate string
	Places      int32
}

var bankFileHeader = []string{"batch_reference", "payment_date", "line_reference", "employee_code", "account_holder", "bank_name", "account_number", "amount"}

// BankFile renders a comma separated transfer file: a header row, one row per
// line and a trailing control row with the line count and total.
func BankFile(batch BankBatch, lines []BankLine) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(bankFileHeader); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
		record := []string{
			batch.Reference,
			batch.PaymentDate,
			line.Reference,
			line.EmployeeCode,
			line.AccountHolder,
			line.BankName,
			line.AccountNumber,
			FormatAmount(line.Amount, batch.Places),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write bank line %s: %w", line.Reference, err)
		}
	}

	control := []string{batch.Reference, batch.PaymentDate, "TOTAL", fmt.Sprintf("%d", len(lines)), "", "", "", FormatAmount(total, batch.Places)}
	if err := w.Write(control); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush bank file: %w", err)
	}
	return buf.Bytes(), nil
}
