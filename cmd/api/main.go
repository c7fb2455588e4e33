package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/email"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/memory"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/hris-payroll-engine/internal/service/payroll"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		payrollRepo payroll.PayrollRepository
		directory   employee.Directory
		production  payroll.ProductionSource
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			fmt.Println("Error connecting to database:", err)
			return
		}
		defer db.Close()

		payrollRepo = postgresql.NewPayrollRepository(db)
		directory = postgresql.NewEmployeeDirectory(db)
		production = postgresql.NewProductionRepository(db)
	case "memory":
		memDirectory := memory.NewDirectory()
		memProduction := memory.NewProductionStore()
		if cfg.Database.SeedFile != "" {
			if err := memory.LoadSeedFile(cfg.Database.SeedFile, memDirectory, memProduction); err != nil {
				log.Fatal("Failed to load memory seed: ", err)
			}
		}
		payrollRepo = memory.NewPayrollStore(memDirectory)
		directory = memDirectory
		production = memProduction
		slog.Warn("Using in-memory storage; data is lost on restart")
	}

	var documentStore payroll.DocumentStore
	switch cfg.Storage.Type {
	case "local":
		documentStore, err = storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			log.Fatal("Failed to initialize local storage: ", err)
		}
	default:
		log.Fatal("Unsupported storage types: ", cfg.Storage.Type)
	}

	mailer, err := email.NewReceiptMailer(cfg.SMTP)
	if err != nil {
		log.Fatal("Failed to initialize email service: ", err)
	}

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		log.Fatal("Failed to initialize JWT service: ", err)
	}

	locks := payrollService.NewLockManager()
	payrollSvc := payrollService.NewPayrollService(payrollRepo, directory, production, cfg.Payroll, locks)
	exportSvc := payrollService.NewExportService(payrollRepo, directory, documentStore, mailer, locks, cfg.Payroll.Rounding)

	scheduler := cron.NewScheduler(ctx)
	cron.NewPayrollJobs(payrollSvc, directory, cfg.Payroll.AutoGenerateDay, cfg.Payroll.CheckInterval).RegisterJobs(scheduler)
	scheduler.Start()

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc, exportSvc)
	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Env:         cfg.App.Env,
		Version:     version,
		CORSOrigins: cfg.App.CORSOrigins,
		LogLevel:    logLevel,
	}, JWTService, payrollHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Server running at http://localhost%s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	scheduler.Stop()
}
