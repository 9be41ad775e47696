package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage failure classes. Repositories return these wrapped so services can
// decide with errors.Is without looking at driver errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("no seats available")
	ErrDuplicate      = errors.New("duplicate key")
	ErrRetryable      = errors.New("transaction must be retried")
	ErrLockTimeout    = errors.New("lock wait timeout")
	ErrLedgerOverflow = errors.New("seat counter already at train capacity")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories struct {
	Availability AvailabilityRepository
	Bookings     BookingRepository
	Trains       TrainRepository
}

func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Availability: NewAvailabilityRepository(db),
		Bookings:     NewBookingRepository(db),
		Trains:       NewTrainRepository(db),
	}
}

// Transactor runs fn inside one database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type PGTransactor struct {
	pool        *pgxpool.Pool
	isoLevel    pgx.TxIsoLevel
	lockTimeout time.Duration
}

func NewTransactor(pool *pgxpool.Pool, isolation string, lockTimeout time.Duration) *PGTransactor {
	return &PGTransactor{pool: pool, isoLevel: ParseIsolation(isolation), lockTimeout: lockTimeout}
}

func (t *PGTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: t.isoLevel})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if t.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", t.lockTimeout.Milliseconds())); err != nil {
			return classify(err)
		}
	}

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

// ParseIsolation maps the config names to pgx isolation levels. Unknown names
// fall back to read committed.
func ParseIsolation(name string) pgx.TxIsoLevel {
	switch name {
	case "repeatable_read":
		return pgx.RepeatableRead
	case "serializable":
		return pgx.Serializable
	default:
		return pgx.ReadCommitted
	}
}

// classify translates driver errors into the storage failure classes above.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrRetryable, pgErr.Message)
		case "55P03", "57014": // lock_not_available, query_canceled
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
