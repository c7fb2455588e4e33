package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"
)

type PayrollHandler interface {
	// Periods
	GenerateSalaryPeriod(w http.ResponseWriter, r *http.Request)
	GenerateCommissionPeriod(w http.ResponseWriter, r *http.Request)
	ClosePeriod(w http.ResponseWriter, r *http.Request)
	GetPeriod(w http.ResponseWriter, r *http.Request)
	GetPeriodSummary(w http.ResponseWriter, r *http.Request)

	// Receipts
	GetReceipt(w http.ResponseWriter, r *http.Request)
	ListReceipts(w http.ResponseWriter, r *http.Request)
	ExportReceipt(w http.ResponseWriter, r *http.Request)
	SendReceipt(w http.ResponseWriter, r *http.Request)

	// Exports
	ExportSpreadsheet(w http.ResponseWriter, r *http.Request)
	ExportBankFile(w http.ResponseWriter, r *http.Request)

	// Aguinaldo
	ProjectAguinaldo(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	exportService  payroll.ExportService
}

func NewPayrollHandler(payrollService payroll.PayrollService, exportService payroll.ExportService) PayrollHandler {
	return &payrollHandlerImpl{
		payrollService: payrollService,
		exportService:  exportService,
	}
}

// ========== PERIODS ==========

func (h *payrollHandlerImpl) GenerateSalaryPeriod(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, payroll.ReceiptKindSalary)
}

func (h *payrollHandlerImpl) GenerateCommissionPeriod(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, payroll.ReceiptKindCommission)
}

func (h *payrollHandlerImpl) generate(w http.ResponseWriter, r *http.Request, kind payroll.ReceiptKind) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	period, err := periodFromPath(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var summary payroll.RunSummary
	if kind == payroll.ReceiptKindSalary {
		summary, err = h.payrollService.GenerateSalaryPeriod(r.Context(), companyID, period)
	} else {
		summary, err = h.payrollService.GenerateCommissionPeriod(r.Context(), companyID, period)
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll generated", summary)
}

func (h *payrollHandlerImpl) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	userID, err := userIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	period, err := periodFromPath(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.ClosePeriod(r.Context(), companyID, payroll.ClosePeriodRequest{
		PeriodMonth: period.Month,
		PeriodYear:  period.Year,
		Kind:        kind,
		ClosedBy:    userID,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period closed", result)
}

func (h *payrollHandlerImpl) GetPeriod(w http.ResponseWriter, r *http.Request) {
	companyID, period, kind, err := periodScope(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.GetPeriod(r.Context(), companyID, period, kind)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetPeriodSummary(w http.ResponseWriter, r *http.Request) {
	companyID, period, kind, err := periodScope(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.GetPeriodSummary(r.Context(), companyID, period, kind)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== RECEIPTS ==========

func (h *payrollHandlerImpl) GetReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, kind, id, err := receiptScope(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var result interface{}
	if kind == payroll.ReceiptKindSalary {
		result, err = h.payrollService.GetSalaryReceipt(r.Context(), companyID, id)
	} else {
		result, err = h.payrollService.GetCommissionReceipt(r.Context(), companyID, id)
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListReceipts(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := receiptFilterFromQuery(r)
	filter.Page = 1
	filter.Limit = 20
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	var (
		data  interface{}
		total int64
	)
	if kind == payroll.ReceiptKindSalary {
		result, err := h.payrollService.ListSalaryReceipts(r.Context(), companyID, filter)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		data, total = result.Data, result.TotalCount
	} else {
		result, err := h.payrollService.ListCommissionReceipts(r.Context(), companyID, filter)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		data, total = result.Data, result.TotalCount
	}

	response.SuccessWithMeta(w, data, &response.Meta{
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	})
}

func (h *payrollHandlerImpl) ExportReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, kind, id, err := receiptScope(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	file, err := h.exportService.ExportReceipt(r.Context(), companyID, kind, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, file.FileName, file.ContentType, file.Content)
}

func (h *payrollHandlerImpl) SendReceipt(w http.ResponseWriter, r *http.Request) {
	companyID, kind, id, err := receiptScope(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.exportService.SendReceipt(r.Context(), companyID, kind, id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Receipt sent", nil)
}

// ========== EXPORTS ==========

func (h *payrollHandlerImpl) ExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.exportService.ExportPeriodSpreadsheet(r.Context(), companyID, kind, receiptFilterFromQuery(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	w.Header().Set("X-Export-Skipped", strconv.Itoa(result.Skipped))
	response.File(w, result.FileName, result.ContentType, result.Content)
}

type bankFileSummary struct {
	FileName    string                      `json:"file_name"`
	Lines       int                         `json:"lines"`
	TotalAmount decimal.Decimal             `json:"total_amount"`
	Excluded    []payroll.BankFileExclusion `json:"excluded"`
}

// ExportBankFile streams the transfer file. With ?summary=true it returns the
// line count and exclusions as JSON instead.
func (h *payrollHandlerImpl) ExportBankFile(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	year, yearErr := strconv.Atoi(r.URL.Query().Get("period_year"))
	month, monthErr := strconv.Atoi(r.URL.Query().Get("period_month"))
	if yearErr != nil || monthErr != nil {
		response.BadRequest(w, "period_year and period_month are required", nil)
		return
	}
	period, err := payroll.NewPeriod(year, month)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.exportService.ExportBankFile(r.Context(), companyID, kind, period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if r.URL.Query().Get("summary") == "true" {
		response.Success(w, bankFileSummary{
			FileName:    result.FileName,
			Lines:       result.Lines,
			TotalAmount: result.TotalAmount,
			Excluded:    result.Excluded,
		})
		return
	}

	w.Header().Set("X-Bank-File-Lines", strconv.Itoa(result.Lines))
	w.Header().Set("X-Bank-File-Total", result.TotalAmount.StringFixed(2))
	w.Header().Set("X-Bank-File-Excluded", strconv.Itoa(len(result.Excluded)))
	response.File(w, result.FileName, result.ContentType, result.Content)
}

// ========== AGUINALDO ==========

func (h *payrollHandlerImpl) ProjectAguinaldo(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, "Employee ID is required", nil)
		return
	}

	var asOf time.Time
	if asOfStr := r.URL.Query().Get("as_of"); asOfStr != "" {
		date, ok := validator.IsValidDate(asOfStr)
		if !ok {
			response.BadRequest(w, "as_of must be a date in YYYY-MM-DD format", nil)
			return
		}
		asOf = date
	}

	result, err := h.payrollService.ProjectAguinaldo(r.Context(), companyID, employeeID, asOf)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== REQUEST HELPERS ==========

func claimString(r *http.Request, key string) (string, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", false
	}
	value, ok := claims[key].(string)
	return value, ok && value != ""
}

func companyIDFromRequest(r *http.Request) (string, error) {
	companyID, ok := claimString(r, "company_id")
	if !ok {
		return "", user.ErrCompanyIDRequired
	}
	return companyID, nil
}

func userIDFromRequest(r *http.Request) (string, error) {
	userID, ok := claimString(r, "user_id")
	if !ok {
		return "", user.ErrUserIDRequired
	}
	return userID, nil
}

func periodFromPath(r *http.Request) (payroll.Period, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return payroll.Period{}, fmt.Errorf("%w: year %q", payroll.ErrInvalidPeriod, chi.URLParam(r, "year"))
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return payroll.Period{}, fmt.Errorf("%w: month %q", payroll.ErrInvalidPeriod, chi.URLParam(r, "month"))
	}
	return payroll.NewPeriod(year, month)
}

func periodScope(r *http.Request) (string, payroll.Period, payroll.ReceiptKind, error) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		return "", payroll.Period{}, "", err
	}
	period, err := periodFromPath(r)
	if err != nil {
		return "", payroll.Period{}, "", err
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", payroll.Period{}, "", err
	}
	return companyID, period, kind, nil
}

func receiptScope(r *http.Request) (string, payroll.ReceiptKind, string, error) {
	companyID, err := companyIDFromRequest(r)
	if err != nil {
		return "", "", "", err
	}
	kind, err := payroll.ParseReceiptKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", "", err
	}
	return companyID, kind, chi.URLParam(r, "id"), nil
}

func receiptFilterFromQuery(r *http.Request) payroll.ReceiptFilter {
	q := r.URL.Query()
	filter := payroll.ReceiptFilter{
		SortBy:    "employee_code",
		SortOrder: "asc",
	}

	if monthStr := q.Get("period_month"); monthStr != "" {
		if month, err := strconv.Atoi(monthStr); err == nil {
			filter.PeriodMonth = &month
		}
	}
	if yearStr := q.Get("period_year"); yearStr != "" {
		if year, err := strconv.Atoi(yearStr); err == nil {
			filter.PeriodYear = &year
		}
	}
	if status := q.Get("status"); status != "" {
		filter.Status = &status
	}
	if employeeID := q.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}
	if branchID := q.Get("branch_id"); branchID != "" {
		filter.BranchID = &branchID
	}
	if sortBy := q.Get("sort_by"); sortBy != "" {
		filter.SortBy = sortBy
	}
	if sortOrder := q.Get("sort_order"); sortOrder != "" {
		filter.SortOrder = sortOrder
	}
	return filter
}
