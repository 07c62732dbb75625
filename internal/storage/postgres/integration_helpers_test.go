package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	envTestDSN         = "MARKET_POSTGRES_TEST_DSN"
	envTestContainers  = "MARKET_TESTCONTAINERS"
	containerImage     = "postgres:14-alpine"
	containerStartWait = 60 * time.Second
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	truncateAllTablesForIntegrationTest(t, store)

	return store
}

// openRawPostgresStoreForIntegrationTest берёт DSN из окружения или поднимает
// общий контейнер testcontainers при MARKET_TESTCONTAINERS=1. Иначе тест пропускается.
func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(envTestDSN))
	if dsn == "" {
		if os.Getenv(envTestContainers) != "1" {
			t.Skipf("postgres integration tests disabled: set %s or %s=1", envTestDSN, envTestContainers)
		}
		containerOnce.Do(func() {
			containerDSN, containerErr = startPostgresContainer()
		})
		if containerErr != nil {
			t.Skipf("postgres container is not available: %v", containerErr)
		}
		dsn = containerDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := Open(ctx, dsn)
	cancel()
	if err != nil {
		t.Skipf("postgres is not available for integration tests: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// startPostgresContainer поднимает контейнер один раз на пакет; его убирает reaper testcontainers.
func startPostgresContainer() (string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        containerImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "market",
			"POSTGRES_PASSWORD": "market",
			"POSTGRES_DB":       "market",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(containerStartWait),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}

	return fmt.Sprintf("postgres://market:market@%s:%s/market?sslmode=disable", host, port.Port()), nil
}

func truncateAllTablesForIntegrationTest(t *testing.T, store *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE
			outbox_messages,
			order_history,
			logistics_tracking,
			order_items,
			orders,
			notifications,
			cart_items,
			donation_requests,
			addresses,
			products
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
}
