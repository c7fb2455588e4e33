package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
)

// TestDatabaseSetup holds the connection used by repository tests.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and skips the test when it is
// not set. The schema from migrations/ must already be applied.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgreSQLDB(context.Background(), dsn, database.PoolOptions{MaxConns: 10})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if err := setup.TruncateAllTables(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to reset test database: %v", err)
	}
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes all rows the payroll tests write.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"production_figures",
		"commission_receipts",
		"salary_receipts",
		"payroll_periods",
		"employees",
		"users",
		"branches",
		"companies",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Close closes the database connection
func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
