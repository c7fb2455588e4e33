package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Env         string
	Version     string
	CORSOrigins []string
	LogLevel    slog.Level
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-payroll-engine"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Bank-File-Lines", "X-Bank-File-Total", "X-Bank-File-Excluded", "X-Export-Rows", "X-Export-Skipped"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequireCompany)

			r.Route("/payroll", func(r chi.Router) {
				r.Route("/periods/{year}/{month}", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionPayrollGenerate))
						r.Post("/salary/generate", payrollHandler.GenerateSalaryPeriod)
						r.Post("/commission/generate", payrollHandler.GenerateCommissionPeriod)
					})
					r.With(middleware.RequirePermission(user.PermissionPayrollClose)).Post("/{kind}/close", payrollHandler.ClosePeriod)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionPayrollView))
						r.Get("/{kind}", payrollHandler.GetPeriod)
						r.Get("/{kind}/summary", payrollHandler.GetPeriodSummary)
					})
				})

				r.Route("/receipts/{kind}", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.ListReceipts)
					r.Route("/{id}", func(r chi.Router) {
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetReceipt)
						r.With(middleware.RequirePermission(user.PermissionPayrollExport)).Get("/document", payrollHandler.ExportReceipt)
						r.With(middleware.RequirePermission(user.PermissionPayrollSend)).Post("/send", payrollHandler.SendReceipt)
					})
				})

				r.Route("/exports/{kind}", func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollExport))
					r.Get("/spreadsheet", payrollHandler.ExportSpreadsheet)
					r.Get("/bank-file", payrollHandler.ExportBankFile)
				})

				r.With(middleware.RequirePermission(user.PermissionPayrollView)).
					Get("/employees/{employeeId}/aguinaldo", payrollHandler.ProjectAguinaldo)
			})
		})
	})
	return r
}
