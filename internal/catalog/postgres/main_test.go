package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var sharedConnStr string

// TestMain starts one shared PostgreSQL container for every test in
// this package.
func TestMain(m *testing.M) {
	if os.Getenv("DITTO_SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ditto_test"),
		tcpostgres.WithUsername("ditto_test"),
		tcpostgres.WithPassword("ditto_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	sharedConnStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}

	os.Exit(exitCode)
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(context.Background(), Config{
		URI:         sharedConnStr,
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("create postgres catalog: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}
