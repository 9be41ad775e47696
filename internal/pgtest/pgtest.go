// Package pgtest starts a throwaway PostgreSQL for integration tests.
package pgtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/trainbooking/config"
	"github.com/Domenick1991/trainbooking/internal/database/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once         sync.Once
	shared       *pgxpool.Pool
	migrationURL string
	startErr     error
)

// Pool returns a migrated, emptied database shared by all tests of the process.
// It skips the test in -short mode or when no container runtime is reachable.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		shared, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Fatalf("start postgres: %v", startErr)
	}

	if _, err := shared.Exec(context.Background(), `TRUNCATE bookings, seat_availability, trains, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("reset database: %v", err)
	}
	return shared
}

func start(ctx context.Context) (*pgxpool.Pool, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "trainbooking",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, err
	}

	db := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		Name:     "trainbooking",
		SSLMode:  "disable",
		MaxConns: 32,
	}

	migrationURL = db.MigrationURL()
	runner := migrations.NewRunner(migrationURL)
	defer runner.Close()
	if _, err := runner.Up(); err != nil {
		return nil, err
	}

	return pgxpool.New(ctx, db.DSN())
}

// Remigrate rolls the schema of the shared database all the way down and
// applies it again. It returns the version reached by the second Up.
func Remigrate(t *testing.T) uint {
	t.Helper()
	Pool(t)

	down := migrations.NewRunner(migrationURL)
	defer down.Close()
	if err := down.Down(); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	var table *string
	if err := shared.QueryRow(context.Background(), `SELECT to_regclass('public.bookings')::text`).Scan(&table); err != nil {
		t.Fatalf("inspect schema: %v", err)
	}
	if table != nil {
		t.Fatalf("bookings table survived migrate down")
	}

	up := migrations.NewRunner(migrationURL)
	defer up.Close()
	version, err := up.Up()
	if err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return version
}

// SeedTrain inserts a train and one ledger row per date with availableSeats.
func SeedTrain(t *testing.T, pool *pgxpool.Pool, number string, totalSeats, availableSeats int, dates ...time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := pool.QueryRow(ctx, `INSERT INTO trains (train_number, train_name, source_station, destination_station, total_seats)
		VALUES ($1, $2, 'New York', 'Washington DC', $3) RETURNING id`, number, "Express "+number, totalSeats).Scan(&id)
	if err != nil {
		t.Fatalf("seed train: %v", err)
	}
	for _, d := range dates {
		if _, err := pool.Exec(ctx, `INSERT INTO seat_availability (train_id, travel_date, available_seats) VALUES ($1, $2, $3)`, id, d, availableSeats); err != nil {
			t.Fatalf("seed availability: %v", err)
		}
	}
	return id
}

// SeedUser inserts a user row for the booking user projection.
func SeedUser(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id`,
		username, fmt.Sprintf("%s@railway.test", username)).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// Counter reads the ledger value for a train and date.
func Counter(t *testing.T, pool *pgxpool.Pool, trainID int64, date time.Time) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), `SELECT available_seats FROM seat_availability WHERE train_id=$1 AND travel_date=$2`, trainID, date).Scan(&n); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return n
}

// BookingCount counts booking rows for a train and date.
func BookingCount(t *testing.T, pool *pgxpool.Pool, trainID int64, date time.Time) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM bookings WHERE train_id=$1 AND booking_date=$2 AND status='confirmed'`, trainID, date).Scan(&n); err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	return n
}
