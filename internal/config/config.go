package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/money"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	SMTP     SMTPConfig
	Storage  StorageConfig
	Payroll  PayrollConfig
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// SeedFile preloads the memory driver with employees and production figures.
	SeedFile string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// SendsPerSecond throttles receipt delivery.
	SendsPerSecond float64
}

type StorageConfig struct {
	Type     string
	BasePath string
	BaseURL  string
}

// PayrollConfig holds the business rules the engine computes with.
type PayrollConfig struct {
	StatutoryDeductionRate decimal.Decimal
	FlatBonus              decimal.Decimal
	RoleBonuses            map[string]decimal.Decimal
	AguinaldoDivisor       decimal.Decimal
	Rounding               money.Policy
	CommissionRoles        []string
	DefaultCommissionRate  decimal.Decimal
	CommissionTiers        []CommissionTier
	// PaymentDay is the day of the month receipts are paid; clamped to the month length.
	PaymentDay      int
	Workers         int
	AutoGenerateDay int
	CheckInterval   time.Duration
	RulesFile       string
}

// CommissionTier applies Rate once target achievement reaches MinAchievedPct.
type CommissionTier struct {
	MinAchievedPct decimal.Decimal
	Rate           decimal.Decimal
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using process environment", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-hris"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
		SeedFile: getEnv("MEMORY_SEED_FILE", ""),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// SMTP configuration
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	sendsPerSecond, err := strconv.ParseFloat(getEnv("SMTP_SENDS_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_SENDS_PER_SECOND: %w", err)
	}
	config.SMTP = SMTPConfig{
		Host:           getEnv("SMTP_HOST", ""),
		Port:           smtpPort,
		Username:       getEnv("SMTP_USERNAME", ""),
		Password:       getEnv("SMTP_PASSWORD", ""),
		From:           getEnv("SMTP_FROM", "payroll@localhost"),
		FromName:       getEnv("SMTP_FROM_NAME", "Payroll"),
		SendsPerSecond: sendsPerSecond,
	}

	// Storage configuration
	config.Storage = StorageConfig{
		Type:     getEnv("STORAGE_TYPE", "local"),
		BasePath: getEnv("STORAGE_BASE_PATH", "./storage"),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/storage"),
	}

	// Payroll rules
	payroll, err := loadPayrollConfig()
	if err != nil {
		return nil, err
	}
	config.Payroll = payroll

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// MaxCurrencyPlaces matches the scale of the stored money columns.
const MaxCurrencyPlaces = 2

// DefaultPayrollConfig returns the rules used when nothing is configured.
func DefaultPayrollConfig() PayrollConfig {
	return PayrollConfig{
		StatutoryDeductionRate: decimal.RequireFromString("0.09"),
		FlatBonus:              decimal.Zero,
		RoleBonuses:            map[string]decimal.Decimal{},
		AguinaldoDivisor:       decimal.NewFromInt(12),
		Rounding:               money.DefaultPolicy,
		CommissionRoles:        []string{"credit_advisor", "recovery_agent"},
		DefaultCommissionRate:  decimal.RequireFromString("0.05"),
		CommissionTiers:        nil,
		PaymentDay:             30,
		Workers:                8,
		AutoGenerateDay:        0,
		CheckInterval:          time.Hour,
	}
}

func loadPayrollConfig() (PayrollConfig, error) {
	cfg := DefaultPayrollConfig()
	var err error

	if cfg.StatutoryDeductionRate, err = getEnvDecimal("PAYROLL_STATUTORY_DEDUCTION_RATE", cfg.StatutoryDeductionRate); err != nil {
		return cfg, err
	}
	if cfg.FlatBonus, err = getEnvDecimal("PAYROLL_FLAT_BONUS", cfg.FlatBonus); err != nil {
		return cfg, err
	}
	if cfg.AguinaldoDivisor, err = getEnvDecimal("PAYROLL_AGUINALDO_DIVISOR", cfg.AguinaldoDivisor); err != nil {
		return cfg, err
	}
	if cfg.DefaultCommissionRate, err = getEnvDecimal("PAYROLL_DEFAULT_COMMISSION_RATE", cfg.DefaultCommissionRate); err != nil {
		return cfg, err
	}

	places, err := strconv.Atoi(getEnv("PAYROLL_CURRENCY_PLACES", "2"))
	if err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_CURRENCY_PLACES: %w", err)
	}
	mode, err := money.ParseRoundingMode(getEnv("PAYROLL_ROUNDING_MODE", string(money.RoundHalfUp)))
	if err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_ROUNDING_MODE: %w", err)
	}
	cfg.Rounding = money.Policy{Places: int32(places), Mode: mode}

	if roles := getEnvSlice("PAYROLL_COMMISSION_ROLES", ""); len(roles) > 0 {
		cfg.CommissionRoles = roles
	}
	if cfg.PaymentDay, err = strconv.Atoi(getEnv("PAYROLL_PAYMENT_DAY", strconv.Itoa(cfg.PaymentDay))); err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_PAYMENT_DAY: %w", err)
	}
	if cfg.Workers, err = strconv.Atoi(getEnv("PAYROLL_WORKERS", strconv.Itoa(cfg.Workers))); err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}
	if cfg.AutoGenerateDay, err = strconv.Atoi(getEnv("PAYROLL_AUTO_GENERATE_DAY", "0")); err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_AUTO_GENERATE_DAY: %w", err)
	}
	if cfg.CheckInterval, err = time.ParseDuration(getEnv("PAYROLL_CHECK_INTERVAL", "1h")); err != nil {
		return cfg, fmt.Errorf("invalid PAYROLL_CHECK_INTERVAL: %w", err)
	}

	cfg.RulesFile = getEnv("PAYROLL_RULES_FILE", "")
	if cfg.RulesFile != "" {
		if err := cfg.ApplyRulesFile(cfg.RulesFile); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("DB_DRIVER must be 'postgres' or 'memory'")
	}
	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	return c.Payroll.Validate()
}

// Validate checks the payroll rules for values the calculators cannot work with.
func (p *PayrollConfig) Validate() error {
	one := decimal.NewFromInt(1)
	if p.StatutoryDeductionRate.IsNegative() || p.StatutoryDeductionRate.GreaterThan(one) {
		return fmt.Errorf("statutory deduction rate must be between 0 and 1")
	}
	if p.FlatBonus.IsNegative() {
		return fmt.Errorf("flat bonus must be non-negative")
	}
	for role, bonus := range p.RoleBonuses {
		if bonus.IsNegative() {
			return fmt.Errorf("bonus for role %q must be non-negative", role)
		}
	}
	if !p.AguinaldoDivisor.IsPositive() {
		return fmt.Errorf("aguinaldo divisor must be positive")
	}
	if p.Rounding.Places < 0 || p.Rounding.Places > MaxCurrencyPlaces {
		return fmt.Errorf("currency places must be between 0 and %d", MaxCurrencyPlaces)
	}
	if p.DefaultCommissionRate.IsNegative() || p.DefaultCommissionRate.GreaterThan(one) {
		return fmt.Errorf("default commission rate must be between 0 and 1")
	}
	for _, tier := range p.CommissionTiers {
		if tier.Rate.IsNegative() || tier.Rate.GreaterThan(one) {
			return fmt.Errorf("commission tier rate must be between 0 and 1")
		}
	}
	if p.PaymentDay < 1 || p.PaymentDay > 31 {
		return fmt.Errorf("payment day must be between 1 and 31")
	}
	if p.Workers < 1 {
		return fmt.Errorf("payroll workers must be at least 1")
	}
	if p.AutoGenerateDay < 0 || p.AutoGenerateDay > 28 {
		return fmt.Errorf("auto generate day must be between 0 (disabled) and 28")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback string) []string {
	value := getEnv(env, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
