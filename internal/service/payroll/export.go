package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/money"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/render"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
)

type ExportServiceImpl struct {
	payrollRepo payroll.PayrollRepository
	directory   employee.Directory
	documents   payroll.DocumentStore
	dispatcher  payroll.Dispatcher
	locks       *LockManager
	policy      money.Policy
}

func NewExportService(
	payrollRepo payroll.PayrollRepository,
	directory employee.Directory,
	documents payroll.DocumentStore,
	dispatcher payroll.Dispatcher,
	locks *LockManager,
	policy money.Policy,
) *ExportServiceImpl {
	return &ExportServiceImpl{
		payrollRepo: payrollRepo,
		directory:   directory,
		documents:   documents,
		dispatcher:  dispatcher,
		locks:       locks,
		policy:      policy,
	}
}

var _ payroll.ExportService = (*ExportServiceImpl)(nil)

// renderedReceipt is a receipt document plus who it belongs to.
type renderedReceipt struct {
	file         payroll.ExportFile
	employeeID   string
	employeeName string
	period       payroll.Period
}

// ========== SINGLE RECEIPT ==========

func (s *ExportServiceImpl) ExportReceipt(ctx context.Context, companyID string, kind payroll.ReceiptKind, id string) (payroll.ExportFile, error) {
	rendered, err := s.renderReceipt(ctx, companyID, kind, id)
	if err != nil {
		return payroll.ExportFile{}, err
	}
	return rendered.file, nil
}

func (s *ExportServiceImpl) renderReceipt(ctx context.Context, companyID string, kind payroll.ReceiptKind, id string) (renderedReceipt, error) {
	switch kind {
	case payroll.ReceiptKindSalary:
		r, err := s.payrollRepo.GetSalaryReceiptByID(ctx, id, companyID)
		if err != nil {
			return renderedReceipt{}, err
		}
		release := s.locks.LockForRead(companyID, r.Period, kind)
		defer release()

		// re-read under the lock so a close that just finished is visible
		if r, err = s.payrollRepo.GetSalaryReceiptByID(ctx, id, companyID); err != nil {
			return renderedReceipt{}, err
		}
		file, err := s.cachedDocument(ctx, companyID, kind, r.ID, r.Period, deref(r.EmployeeCode), r.DocumentRef, s.salaryDocument(r),
			func(ref string) error { return s.payrollRepo.SetSalaryReceiptDocument(ctx, r.ID, companyID, ref, r.UpdatedAt) })
		if err != nil {
			return renderedReceipt{}, err
		}
		return renderedReceipt{file: file, employeeID: r.EmployeeID, employeeName: deref(r.EmployeeName), period: r.Period}, nil

	case payroll.ReceiptKindCommission:
		r, err := s.payrollRepo.GetCommissionReceiptByID(ctx, id, companyID)
		if err != nil {
			return renderedReceipt{}, err
		}
		release := s.locks.LockForRead(companyID, r.Period, kind)
		defer release()

		if r, err = s.payrollRepo.GetCommissionReceiptByID(ctx, id, companyID); err != nil {
			return renderedReceipt{}, err
		}
		file, err := s.cachedDocument(ctx, companyID, kind, r.ID, r.Period, deref(r.EmployeeCode), r.DocumentRef, s.commissionDocument(r),
			func(ref string) error { return s.payrollRepo.SetCommissionReceiptDocument(ctx, r.ID, companyID, ref, r.UpdatedAt) })
		if err != nil {
			return renderedReceipt{}, err
		}
		return renderedReceipt{file: file, employeeID: r.EmployeeID, employeeName: deref(r.EmployeeName), period: r.Period}, nil
	}
	return renderedReceipt{}, fmt.Errorf("%w: %q", payroll.ErrInvalidReceiptKind, kind)
}

// cachedDocument serves the stored document when the receipt references one,
// otherwise renders, stores and records it. A failure to cache is logged only.
// setRef must refuse the ref when the receipt changed after it was read.
func (s *ExportServiceImpl) cachedDocument(
	ctx context.Context,
	companyID string,
	kind payroll.ReceiptKind,
	receiptID string,
	period payroll.Period,
	employeeCode string,
	ref *string,
	doc render.ReceiptDocument,
	setRef func(string) error,
) (payroll.ExportFile, error) {
	file := payroll.ExportFile{
		FileName:    receiptFileName(kind, period, employeeCode, receiptID),
		ContentType: contentTypePDF,
	}

	if ref != nil && *ref != "" {
		content, err := s.readDocument(ctx, *ref)
		if err == nil {
			file.Content = content
			return file, nil
		}
		slog.Warn("Cached receipt document unreadable, rendering again", "receipt_id", receiptID, "ref", *ref, "error", err)
	}

	content, err := render.ReceiptPDF(doc)
	if err != nil {
		return payroll.ExportFile{}, err
	}
	file.Content = content

	stored, err := s.documents.Upload(ctx, bytes.NewReader(content), documentPath(companyID, kind, period, receiptID), contentTypePDF)
	if err != nil {
		slog.Warn("Failed to store receipt document", "receipt_id", receiptID, "error", err)
		return file, nil
	}
	if err := setRef(stored); err != nil {
		if errors.Is(err, payroll.ErrReceiptChanged) {
			slog.Info("Receipt changed while rendering, document not recorded", "receipt_id", receiptID)
		} else {
			slog.Warn("Failed to record receipt document", "receipt_id", receiptID, "error", err)
		}
	}
	return file, nil
}

func (s *ExportServiceImpl) readDocument(ctx context.Context, ref string) ([]byte, error) {
	ok, err := s.documents.Exists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("document %s not found", ref)
	}
	rc, err := s.documents.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func documentPath(companyID string, kind payroll.ReceiptKind, period payroll.Period, receiptID string) string {
	return fmt.Sprintf("receipts/%s/%s/%s/%s.pdf", companyID, kind, period, receiptID)
}

func receiptFileName(kind payroll.ReceiptKind, period payroll.Period, employeeCode, receiptID string) string {
	if employeeCode == "" {
		employeeCode = receiptID
	}
	return fmt.Sprintf("%s-receipt-%s-%s.pdf", kind, period, employeeCode)
}

func (s *ExportServiceImpl) salaryDocument(r payroll.SalaryReceipt) render.ReceiptDocument {
	return render.ReceiptDocument{
		Title:        "Salary receipt",
		ReceiptID:    r.ID,
		EmployeeName: deref(r.EmployeeName),
		EmployeeCode: deref(r.EmployeeCode),
		BranchName:   deref(r.BranchName),
		Period:       r.Period.String(),
		PaymentDate:  r.PaymentDate,
		Status:       string(r.Status),
		Lines: []render.ReceiptLine{
			{Label: "Base salary", Amount: r.GrossSalary},
			{Label: "Bonuses", Amount: r.Bonuses},
			{Label: "Statutory deduction", Amount: r.Deductions, Negative: true},
		},
		TotalLabel:       "Net salary",
		Total:            r.NetSalary,
		Places:           s.policy.Places,
		VerificationCode: verificationCode(payroll.ReceiptKindSalary, r.ID, r.Period, r.NetSalary, s.policy.Places),
	}
}

func (s *ExportServiceImpl) commissionDocument(r payroll.CommissionReceipt) render.ReceiptDocument {
	ratePct := r.CommissionRate.Mul(decimal.NewFromInt(100))
	return render.ReceiptDocument{
		Title:        "Commission receipt",
		ReceiptID:    r.ID,
		EmployeeName: deref(r.EmployeeName),
		EmployeeCode: deref(r.EmployeeCode),
		BranchName:   deref(r.BranchName),
		Period:       r.Period.String(),
		PaymentDate:  r.PaymentDate,
		Status:       string(r.Status),
		Lines: []render.ReceiptLine{
			{Label: "Production", Amount: r.ProductionAmount},
			{Label: "Target achieved (%)", Amount: r.TargetAchievedPct},
		},
		TotalLabel:       fmt.Sprintf("Commission at %s%%", ratePct.String()),
		Total:            r.CommissionAmount,
		Places:           s.policy.Places,
		VerificationCode: verificationCode(payroll.ReceiptKindCommission, r.ID, r.Period, r.CommissionAmount, s.policy.Places),
	}
}

func verificationCode(kind payroll.ReceiptKind, id string, period payroll.Period, amount decimal.Decimal, places int32) string {
	return fmt.Sprintf("%s/%s/%s/%s", kind, period, id, amount.StringFixed(places))
}

// ========== SPREADSHEET ==========

func (s *ExportServiceImpl) ExportPeriodSpreadsheet(ctx context.Context, companyID string, kind payroll.ReceiptKind, filter payroll.ReceiptFilter) (payroll.SpreadsheetResult, error) {
	filter = filter.Unpaged()

	scope := "all"
	if filter.PeriodYear != nil && filter.PeriodMonth != nil {
		period := payroll.Period{Year: *filter.PeriodYear, Month: *filter.PeriodMonth}
		if err := period.Validate(); err != nil {
			return payroll.SpreadsheetResult{}, err
		}
		release := s.locks.LockForRead(companyID, period, kind)
		defer release()
		scope = period.String()
	}

	var sheet render.Sheet
	var skipped int
	switch kind {
	case payroll.ReceiptKindSalary:
		receipts, _, err := s.payrollRepo.ListSalaryReceipts(ctx, companyID, filter)
		if err != nil {
			return payroll.SpreadsheetResult{}, err
		}
		sheet = render.Sheet{
			Name:    "Salary receipts",
			Headers: []string{"Employee Code", "Employee Name", "Branch", "Period", "Base Salary", "Bonuses", "Deductions", "Net Salary", "Payment Date", "Status"},
		}
		for _, r := range receipts {
			if !r.Reconciles() {
				skipped++
				slog.Warn("Salary receipt does not reconcile, excluded from spreadsheet", "receipt_id", r.ID, "employee_id", r.EmployeeID)
				continue
			}
			sheet.Rows = append(sheet.Rows, []any{
				deref(r.EmployeeCode),
				deref(r.EmployeeName),
				deref(r.BranchName),
				r.Period.String(),
				s.amount(r.GrossSalary),
				s.amount(r.Bonuses),
				s.amount(r.Deductions),
				s.amount(r.NetSalary),
				r.PaymentDate.Format("2006-01-02"),
				string(r.Status),
			})
		}

	case payroll.ReceiptKindCommission:
		receipts, _, err := s.payrollRepo.ListCommissionReceipts(ctx, companyID, filter)
		if err != nil {
			return payroll.SpreadsheetResult{}, err
		}
		sheet = render.Sheet{
			Name:    "Commission receipts",
			Headers: []string{"Employee Code", "Employee Name", "Branch", "Period", "Production", "Target Achieved %", "Commission Rate", "Commission", "Payment Date", "Status"},
		}
		for _, r := range receipts {
			if r.CommissionAmount.IsNegative() || r.ProductionAmount.IsNegative() {
				skipped++
				slog.Warn("Commission receipt has negative amounts, excluded from spreadsheet", "receipt_id", r.ID, "employee_id", r.EmployeeID)
				continue
			}
			sheet.Rows = append(sheet.Rows, []any{
				deref(r.EmployeeCode),
				deref(r.EmployeeName),
				deref(r.BranchName),
				r.Period.String(),
				s.amount(r.ProductionAmount),
				r.TargetAchievedPct.String(),
				r.CommissionRate.String(),
				s.amount(r.CommissionAmount),
				r.PaymentDate.Format("2006-01-02"),
				string(r.Status),
			})
		}

	default:
		return payroll.SpreadsheetResult{}, fmt.Errorf("%w: %q", payroll.ErrInvalidReceiptKind, kind)
	}

	content, err := render.Spreadsheet(sheet)
	if err != nil {
		return payroll.SpreadsheetResult{}, err
	}

	return payroll.SpreadsheetResult{
		ExportFile: payroll.ExportFile{
			FileName:    fmt.Sprintf("%s-receipts-%s.xlsx", kind, scope),
			ContentType: contentTypeXLSX,
			Content:     content,
		},
		Rows:    len(sheet.Rows),
		Skipped: skipped,
	}, nil
}

func (s *ExportServiceImpl) amount(d decimal.Decimal) string {
	return d.StringFixed(s.policy.Places)
}

// ========== BANK FILE ==========

type payable struct {
	receiptID   string
	employeeID  string
	amount      decimal.Decimal
	paymentDate time.Time
}

func (s *ExportServiceImpl) ExportBankFile(ctx context.Context, companyID string, kind payroll.ReceiptKind, period payroll.Period) (payroll.BankFileResult, error) {
	if err := period.Validate(); err != nil {
		return payroll.BankFileResult{}, err
	}

	release := s.locks.LockForRead(companyID, period, kind)
	defer release()

	payables, err := s.payables(ctx, companyID, kind, period)
	if err != nil {
		return payroll.BankFileResult{}, err
	}

	ids := make([]string, 0, len(payables))
	for _, p := range payables {
		ids = append(ids, p.employeeID)
	}
	employees, err := s.directory.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return payroll.BankFileResult{}, fmt.Errorf("failed to get employees: %w", err)
	}
	byID := make(map[string]employee.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	result := payroll.BankFileResult{TotalAmount: decimal.Zero, Excluded: []payroll.BankFileExclusion{}}
	paymentDate := PaymentDate(period, period.End().Day())
	lines := make([]render.BankLine, 0, len(payables))

	for i, p := range payables {
		if i == 0 {
			paymentDate = p.paymentDate
		}
		emp, ok := byID[p.employeeID]
		exclusion := payroll.BankFileExclusion{EmployeeID: p.employeeID, ReceiptID: p.receiptID}
		switch {
		case !ok:
			exclusion.Reason = employee.ErrEmployeeNotFound.Error()
		case !emp.HasBankDetails():
			exclusion.EmployeeCode = emp.EmployeeCode
			exclusion.Reason = payroll.ErrMissingBankDetails.Error()
		case !validator.IsValidBankAccountNumber(emp.BankAccountNumber):
			exclusion.EmployeeCode = emp.EmployeeCode
			exclusion.Reason = fmt.Sprintf("%s: account number is malformed", payroll.ErrMissingBankDetails)
		case !p.amount.IsPositive():
			exclusion.EmployeeCode = emp.EmployeeCode
			exclusion.Reason = "nothing to pay"
		default:
			lines = append(lines, render.BankLine{
				Reference:     p.receiptID,
				EmployeeCode:  emp.EmployeeCode,
				AccountHolder: emp.AccountHolder(),
				BankName:      emp.BankName,
				AccountNumber: validator.NormalizeBankAccountNumber(emp.BankAccountNumber),
				Amount:        p.amount,
			})
			result.TotalAmount = result.TotalAmount.Add(p.amount)
			continue
		}
		slog.Warn("Receipt excluded from bank file", "receipt_id", p.receiptID, "employee_id", p.employeeID, "reason", exclusion.Reason)
		result.Excluded = append(result.Excluded, exclusion)
	}

	batch := render.BankBatch{
		Reference:   bankBatchReference(companyID, kind, period),
		PaymentDate: paymentDate.Format("2006-01-02"),
		Places:      s.policy.Places,
	}
	content, err := render.BankFile(batch, lines)
	if err != nil {
		return payroll.BankFileResult{}, err
	}

	result.ExportFile = payroll.ExportFile{
		FileName:    fmt.Sprintf("bank-transfer-%s-%s.csv", kind, period),
		ContentType: contentTypeCSV,
		Content:     content,
	}
	result.Lines = len(lines)
	return result, nil
}

func (s *ExportServiceImpl) payables(ctx context.Context, companyID string, kind payroll.ReceiptKind, period payroll.Period) ([]payable, error) {
	filter := payroll.ReceiptFilter{PeriodYear: &period.Year, PeriodMonth: &period.Month}

	switch kind {
	case payroll.ReceiptKindSalary:
		receipts, _, err := s.payrollRepo.ListSalaryReceipts(ctx, companyID, filter)
		if err != nil {
			return nil, err
		}
		out := make([]payable, 0, len(receipts))
		for _, r := range receipts {
			out = append(out, payable{receiptID: r.ID, employeeID: r.EmployeeID, amount: r.NetSalary, paymentDate: r.PaymentDate})
		}
		return out, nil

	case payroll.ReceiptKindCommission:
		receipts, _, err := s.payrollRepo.ListCommissionReceipts(ctx, companyID, filter)
		if err != nil {
			return nil, err
		}
		out := make([]payable, 0, len(receipts))
		for _, r := range receipts {
			out = append(out, payable{receiptID: r.ID, employeeID: r.EmployeeID, amount: r.CommissionAmount, paymentDate: r.PaymentDate})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", payroll.ErrInvalidReceiptKind, kind)
}

// bankBatchReference is stable for a given company, kind and period.
func bankBatchReference(companyID string, kind payroll.ReceiptKind, period payroll.Period) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%s/%s", companyID, kind, period))).String()
}

// ========== DISPATCH ==========

func (s *ExportServiceImpl) SendReceipt(ctx context.Context, companyID string, kind payroll.ReceiptKind, id string) error {
	rendered, err := s.renderReceipt(ctx, companyID, kind, id)
	if err != nil {
		return err
	}

	emp, err := s.directory.GetByID(ctx, companyID, rendered.employeeID)
	if err != nil {
		return err
	}
	if emp.Email == nil || *emp.Email == "" {
		return fmt.Errorf("%w: employee %s", payroll.ErrNoRecipientEmail, emp.ID)
	}

	name := rendered.employeeName
	if name == "" {
		name = emp.FullName
	}

	msg := payroll.ReceiptMessage{
		ReceiptID:    id,
		Kind:         kind,
		Period:       rendered.period,
		EmployeeID:   emp.ID,
		EmployeeName: name,
		To:           *emp.Email,
		FileName:     rendered.file.FileName,
		Document:     rendered.file.Content,
	}
	if err := s.dispatcher.SendReceipt(ctx, msg); err != nil {
		return fmt.Errorf("failed to dispatch receipt: %w", err)
	}

	slog.Info("Receipt dispatched", "receipt_id", id, "kind", kind, "employee_id", emp.ID)
	return nil
}
