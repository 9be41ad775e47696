package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// AvailabilityRepository is the seat ledger: one counter per train and date.
type AvailabilityRepository interface {
	// TryReserve locks the ledger row and takes one seat from it.
	TryReserve(ctx context.Context, trainID int64, date time.Time) error
	// Release gives one seat back, never above the train's total seats.
	Release(ctx context.Context, trainID int64, date time.Time) error
	Get(ctx context.Context, trainID int64, date time.Time) (*domain.SeatAvailability, error)
	ListRange(ctx context.Context, trainID int64, from, to time.Time) ([]domain.SeatAvailability, error)
	SeedWindow(ctx context.Context, trainID int64, from time.Time, days, seats int) (int64, error)
	ExtendAll(ctx context.Context, from, to time.Time) (int64, error)
}

type PGAvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) AvailabilityRepository {
	return &PGAvailabilityRepository{db: db}
}

func (r *PGAvailabilityRepository) TryReserve(ctx context.Context, trainID int64, date time.Time) error {
	var available int
	if err := r.db.QueryRow(ctx, `SELECT available_seats FROM seat_availability WHERE train_id=$1 AND travel_date=$2 FOR UPDATE`, trainID, date).
		Scan(&available); err != nil {
		return classify(err)
	}
	if available <= 0 {
		return ErrUnavailable
	}

	if _, err := r.db.Exec(ctx, `UPDATE seat_availability SET available_seats = available_seats - 1, updated_at = now() WHERE train_id=$1 AND travel_date=$2`, trainID, date); err != nil {
		return classify(err)
	}
	return nil
}

func (r *PGAvailabilityRepository) Release(ctx context.Context, trainID int64, date time.Time) error {
	var available int
	err := r.db.QueryRow(ctx, `
        UPDATE seat_availability sa
        SET available_seats = sa.available_seats + 1,
            updated_at = now()
        FROM trains t
        WHERE t.id = sa.train_id
          AND sa.train_id = $1
          AND sa.travel_date = $2
          AND sa.available_seats < t.total_seats
        RETURNING sa.available_seats
    `, trainID, date).Scan(&available)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return classify(err)
	}

	// Nothing updated: either the row is gone or it is already full.
	if err := r.db.QueryRow(ctx, `SELECT available_seats FROM seat_availability WHERE train_id=$1 AND travel_date=$2`, trainID, date).
		Scan(&available); err != nil {
		return classify(err)
	}
	return fmt.Errorf("%w: train %d on %s holds %d", ErrLedgerOverflow, trainID, date.Format(domain.DateLayout), available)
}

func (r *PGAvailabilityRepository) Get(ctx context.Context, trainID int64, date time.Time) (*domain.SeatAvailability, error) {
	a := domain.SeatAvailability{}
	if err := r.db.QueryRow(ctx, `SELECT train_id, travel_date, available_seats FROM seat_availability WHERE train_id=$1 AND travel_date=$2`, trainID, date).
		Scan(&a.TrainID, &a.TravelDate, &a.AvailableSeats); err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

func (r *PGAvailabilityRepository) ListRange(ctx context.Context, trainID int64, from, to time.Time) ([]domain.SeatAvailability, error) {
	rows, err := r.db.Query(ctx, `SELECT train_id, travel_date, available_seats FROM seat_availability
		WHERE train_id=$1 AND travel_date BETWEEN $2 AND $3 ORDER BY travel_date`, trainID, from, to)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	list := make([]domain.SeatAvailability, 0)
	for rows.Next() {
		var a domain.SeatAvailability
		if err := rows.Scan(&a.TrainID, &a.TravelDate, &a.AvailableSeats); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, classify(rows.Err())
}

func (r *PGAvailabilityRepository) SeedWindow(ctx context.Context, trainID int64, from time.Time, days, seats int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	to := from.AddDate(0, 0, days-1)
	cmd, err := r.db.Exec(ctx, `
        INSERT INTO seat_availability (train_id, travel_date, available_seats)
        SELECT $1, d::date, $4
        FROM generate_series($2::date::timestamp, $3::date::timestamp, interval '1 day') AS d
        ON CONFLICT (train_id, travel_date) DO NOTHING
    `, trainID, from, to, seats)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *PGAvailabilityRepository) ExtendAll(ctx context.Context, from, to time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
        INSERT INTO seat_availability (train_id, travel_date, available_seats)
        SELECT t.id, d::date, t.total_seats
        FROM trains t
        CROSS JOIN generate_series($1::date::timestamp, $2::date::timestamp, interval '1 day') AS d
        ON CONFLICT (train_id, travel_date) DO NOTHING
    `, from, to)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}

var _ AvailabilityRepository = (*PGAvailabilityRepository)(nil)
