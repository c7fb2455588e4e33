package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/memory"
	payrollService "github.com/cmlabs-hris/hris-payroll-engine/internal/service/payroll"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	handlerTestSecret    = "test-secret-key-for-jwt"
	handlerTestCompanyID = "company-1"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

type noopDispatcher struct {
	sent []payroll.ReceiptMessage
}

func (d *noopDispatcher) SendReceipt(ctx context.Context, msg payroll.ReceiptMessage) error {
	d.sent = append(d.sent, msg)
	return nil
}

type testServer struct {
	router     *chi.Mux
	jwt        jwt.Service
	dispatcher *noopDispatcher
}

func handlerTestEmployee(id, code string, base *decimal.Decimal) employee.Employee {
	email := code + "@example.com"
	return employee.Employee{
		ID:                 id,
		CompanyID:          handlerTestCompanyID,
		EmployeeCode:       code,
		FullName:           "Employee " + code,
		Email:              &email,
		RoleClassification: "administrative",
		HireDate:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EmploymentStatus:   employee.EmploymentStatusActive,
		BankName:           "Banco Nacional",
		BankAccountNumber:  "0012345678",
		BaseSalary:         base,
	}
}

func newTestServer(t *testing.T, employees ...employee.Employee) *testServer {
	t.Helper()

	directory := memory.NewDirectory(employees...)
	store := memory.NewPayrollStore(directory)
	rules := config.DefaultPayrollConfig()
	locks := payrollService.NewLockManager()
	documents, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	dispatcher := &noopDispatcher{}

	svc := payrollService.NewPayrollService(store, directory, memory.NewProductionStore(), rules, locks)
	exports := payrollService.NewExportService(store, directory, documents, dispatcher, locks, rules.Rounding)

	jwtService, err := jwt.NewJWTService(handlerTestSecret, "1h")
	require.NoError(t, err)

	return &testServer{
		router:     NewRouter(RouterOptions{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}, jwtService, NewPayrollHandler(svc, exports)),
		jwt:        jwtService,
		dispatcher: dispatcher,
	}
}

func (s *testServer) token(t *testing.T, role user.Role, companyID *string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken("user-1", "user@example.com", nil, companyID, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func salaryOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPayrollHandler_GenerateAndClose(t *testing.T) {
	srv := newTestServer(t,
		handlerTestEmployee("emp-1", "EMP-001", salaryOf("5000000")),
		handlerTestEmployee("emp-2", "EMP-002", salaryOf("3000000")),
	)
	companyID := handlerTestCompanyID
	owner := srv.token(t, user.RoleOwner, &companyID)
	manager := srv.token(t, user.RoleManager, &companyID)

	rr := srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/generate", manager)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var summary payroll.RunSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &summary))
	assert.Equal(t, 2, summary.Created)
	assert.Empty(t, summary.Failures)

	rr = srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/close", manager)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/close", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var period payroll.PeriodResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &period))
	assert.Equal(t, "closed", period.Status)
	require.NotNil(t, period.ClosedBy)
	assert.Equal(t, "user-1", *period.ClosedBy)

	rr = srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/generate", owner)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, rr).Error.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/periods/2025/3/salary/summary", manager)
	require.Equal(t, http.StatusOK, rr.Code)
	var periodSummary payroll.PeriodSummaryResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &periodSummary))
	assert.Equal(t, 2, periodSummary.ClosedCount)
}

func TestPayrollHandler_CloseIncompleteListsMissingEmployees(t *testing.T) {
	srv := newTestServer(t,
		handlerTestEmployee("emp-1", "EMP-001", salaryOf("5000000")),
		handlerTestEmployee("emp-2", "EMP-002", nil),
	)
	companyID := handlerTestCompanyID
	owner := srv.token(t, user.RoleOwner, &companyID)

	rr := srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/generate", owner)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary payroll.RunSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &summary))
	assert.Equal(t, 1, summary.Failed)

	rr = srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/close", owner)
	require.Equal(t, http.StatusConflict, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "emp-2", env.Error.Details["employee_ids"])
	assert.Equal(t, "1", env.Error.Details["missing"])
}

func TestPayrollHandler_ReceiptsAndExports(t *testing.T) {
	noBank := handlerTestEmployee("emp-2", "EMP-002", salaryOf("3000000"))
	noBank.BankAccountNumber = ""
	srv := newTestServer(t, handlerTestEmployee("emp-1", "EMP-001", salaryOf("5000000")), noBank)
	companyID := handlerTestCompanyID
	owner := srv.token(t, user.RoleOwner, &companyID)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/3/salary/generate", owner).Code)

	rr := srv.do(t, http.MethodGet, "/api/v1/payroll/receipts/salary?period_year=2025&period_month=3&limit=1", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.TotalItems)
	assert.Equal(t, 2, env.Meta.TotalPages)
	var receipts []payroll.SalaryReceiptResponse
	require.NoError(t, json.Unmarshal(env.Data, &receipts))
	require.Len(t, receipts, 1)
	assert.Equal(t, "EMP-001", receipts[0].EmployeeCode)

	receiptPath := "/api/v1/payroll/receipts/salary/" + receipts[0].ID
	rr = srv.do(t, http.MethodGet, receiptPath, owner)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, receiptPath+"/document", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "%PDF", rr.Body.String()[:4])

	rr = srv.do(t, http.MethodPost, receiptPath+"/send", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, srv.dispatcher.sent, 1)
	assert.Equal(t, "EMP-001@example.com", srv.dispatcher.sent[0].To)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/receipts/salary/missing", owner)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/exports/salary/bank-file?period_year=2025&period_month=3", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "1", rr.Header().Get("X-Bank-File-Lines"))
	assert.Equal(t, "1", rr.Header().Get("X-Bank-File-Excluded"))

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/exports/salary/bank-file?period_year=2025&period_month=3&summary=true", owner)
	require.Equal(t, http.StatusOK, rr.Code)
	var bank bankFileSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &bank))
	require.Len(t, bank.Excluded, 1)
	assert.Equal(t, "emp-2", bank.Excluded[0].EmployeeID)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/exports/salary/bank-file", owner)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/exports/salary/spreadsheet?period_year=2025&period_month=3", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2", rr.Header().Get("X-Export-Rows"))
}

func TestPayrollHandler_Aguinaldo(t *testing.T) {
	srv := newTestServer(t, handlerTestEmployee("emp-1", "EMP-001", salaryOf("1200")))
	companyID := handlerTestCompanyID
	owner := srv.token(t, user.RoleOwner, &companyID)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/payroll/periods/2025/1/salary/generate", owner).Code)

	rr := srv.do(t, http.MethodGet, "/api/v1/payroll/employees/emp-1/aguinaldo?as_of=2025-12-31", owner)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var projection payroll.AguinaldoResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &projection))
	assert.Equal(t, 1, projection.ReceiptsCounted)
	assert.True(t, projection.ProjectedBonus.Equal(decimal.NewFromInt(100)), projection.ProjectedBonus.String())

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/employees/emp-1/aguinaldo?as_of=31-12-2025", owner)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/payroll/employees/nobody/aguinaldo", owner)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPayrollHandler_RequestValidation(t *testing.T) {
	srv := newTestServer(t)
	companyID := handlerTestCompanyID
	owner := srv.token(t, user.RoleOwner, &companyID)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/api/v1/payroll/receipts/salary", "", http.StatusUnauthorized},
		{"no company in token", http.MethodGet, "/api/v1/payroll/receipts/salary", srv.token(t, user.RolePending, nil), http.StatusForbidden},
		{"employee role", http.MethodGet, "/api/v1/payroll/receipts/salary", srv.token(t, user.RoleEmployee, &companyID), http.StatusForbidden},
		{"unknown kind", http.MethodGet, "/api/v1/payroll/receipts/bonus", owner, http.StatusBadRequest},
		{"month out of range", http.MethodPost, "/api/v1/payroll/periods/2025/13/salary/generate", owner, http.StatusBadRequest},
		{"non numeric year", http.MethodGet, "/api/v1/payroll/periods/next/3/salary", owner, http.StatusBadRequest},
		{"never generated period reads as open", http.MethodGet, "/api/v1/payroll/periods/2025/3/salary", owner, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}
