// Package dbtest starts a throwaway PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-share/internal/database"
)

var (
	once     sync.Once
	shared   database.Service
	startErr error
)

// New returns a migrated database with every table emptied. One container is
// started per test binary and reaped by testcontainers when it exits.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		shared, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Fatalf("starting postgres container: %v", startErr)
	}

	db := shared.GetDB()
	if err := db.Exec("TRUNCATE users, todos, todo_shares, notifications, blogs RESTART IDENTITY CASCADE").Error; err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
	return db
}

func start(ctx context.Context) (database.Service, error) {
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("todo_share"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	svc, err := database.New(dsn, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	if err := svc.Migrate(); err != nil {
		return nil, err
	}
	return svc, nil
}
