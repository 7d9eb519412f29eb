// Package testhelpers provides shared fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/datascope-io/datascope-engine/pkg/database"
)

// PostgresTestImage is the PostgreSQL image used for integration tests.
const PostgresTestImage = "postgres:16-alpine"

// fixtureSchema seeds the analysis tables the integration tests run against.
// sales carries a known category/amount distribution, daily_metrics a steady
// upward trend, sensor_readings one obvious outlier, and inventory NULLs in
// every shape the analysis paths must skip.
const fixtureSchema = `
CREATE TABLE sales (
    id         SERIAL PRIMARY KEY,
    category   TEXT NOT NULL,
    amount     NUMERIC(10, 2) NOT NULL,
    quantity   INTEGER NOT NULL,
    sold_at    TIMESTAMP NOT NULL
);

INSERT INTO sales (category, amount, quantity, sold_at) VALUES
    ('widgets', 10.00, 1, '2024-01-05 10:00:00'),
    ('widgets', 20.00, 2, '2024-02-10 11:00:00'),
    ('widgets', 30.00, 3, '2024-03-15 12:00:00'),
    ('gadgets', 100.00, 5, '2024-01-20 09:00:00'),
    ('gadgets', 200.00, 10, '2024-02-25 14:00:00'),
    ('gadgets', 300.00, 15, '2024-03-30 16:00:00');

CREATE TABLE daily_metrics (
    id          SERIAL PRIMARY KEY,
    recorded_on DATE NOT NULL,
    value       DOUBLE PRECISION NOT NULL
);

INSERT INTO daily_metrics (recorded_on, value) VALUES
    ('2024-01-01', 10.0),
    ('2024-01-02', 12.0),
    ('2024-02-01', 20.0),
    ('2024-02-02', 22.0),
    ('2024-03-01', 40.0),
    ('2024-03-02', 44.0);

CREATE TABLE sensor_readings (
    id      SERIAL PRIMARY KEY,
    sensor  TEXT NOT NULL,
    reading DOUBLE PRECISION NOT NULL
);

INSERT INTO sensor_readings (sensor, reading) VALUES
    ('a', 1.0),
    ('a', 2.0),
    ('a', 3.0),
    ('a', 2.5),
    ('a', 1.5),
    ('a', 2.0),
    ('a', 1000.0);

CREATE TABLE inventory (
    id           SERIAL PRIMARY KEY,
    item         TEXT NOT NULL,
    stock        INTEGER,
    restocked_on DATE,
    forecast     DOUBLE PRECISION
);

INSERT INTO inventory (item, stock, restocked_on, forecast) VALUES
    ('bolts',   10,   '2024-01-10', NULL),
    ('bolts',   20,   '2024-01-20', NULL),
    ('nuts',    NULL, '2024-02-05', NULL),
    ('nuts',    30,   NULL,         NULL),
    ('washers', NULL, NULL,         NULL);
`

// TestDB holds a shared test database container and connection.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container seeded with the analysis
// fixtures. The container is created once and reused across all tests in the
// run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "datascope_test",
			"POSTGRES_USER":     "datascope",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://datascope:test_password@%s:%s/datascope_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, fixtureSchema); err != nil {
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}
