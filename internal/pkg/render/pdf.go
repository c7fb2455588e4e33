package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// ReceiptLine is one labelled amount on a receipt document.
type ReceiptLine struct {
	Label  string
	Amount decimal.Decimal
	// Negative lines are printed with a leading minus.
	Negative bool
}

// ReceiptDocument is everything printed on a single receipt.
type ReceiptDocument struct {
	Title        string
	ReceiptID    string
	EmployeeName string
	EmployeeCode string
	BranchName   string
	Period       string
	PaymentDate  time.Time
	Status       string
	Lines        []ReceiptLine
	TotalLabel   string
	Total        decimal.Decimal
	Places       int32
	// VerificationCode is encoded as a QR code in the footer when non-empty.
	VerificationCode string
}

// ReceiptPDF renders the document to PDF bytes. Output depends only on doc:
// the creation date is pinned to the payment date and catalogs are sorted.
func ReceiptPDF(doc ReceiptDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.PaymentDate)
	pdf.SetModificationDate(doc.PaymentDate)
	pdf.SetTitle(doc.Title, true)
	pdf.SetProducer("hris-payroll-engine", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	header := [][2]string{
		{"Employee", doc.EmployeeName},
		{"Employee code", doc.EmployeeCode},
		{"Branch", doc.BranchName},
		{"Period", doc.Period},
		{"Payment date", doc.PaymentDate.Format("2006-01-02")},
		{"Status", doc.Status},
		{"Receipt", doc.ReceiptID},
	}
	for _, h := range header {
		if h[1] == "" {
			continue
		}
		pdf.CellFormat(40, 6, tr(h[0]), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(h[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(120, 7, "Concept", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		amount := FormatAmount(line.Amount, doc.Places)
		if line.Negative {
			amount = "-" + amount
		}
		pdf.CellFormat(120, 7, tr(line.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, amount, "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, tr(doc.TotalLabel), "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, FormatAmount(doc.Total, doc.Places), "1", 1, "R", false, 0, "")

	if doc.VerificationCode != "" {
		png, err := qrcode.Encode(doc.VerificationCode, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode verification code: %w", err)
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("verification", opts, bytes.NewReader(png))
		pdf.Ln(8)
		y := pdf.GetY()
		pdf.ImageOptions("verification", 20, y, 30, 30, false, opts, 0, "")
		pdf.SetXY(55, y+12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, tr(doc.VerificationCode), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount prints d with a fixed number of decimal places.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
