package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
)

type BookingRepository interface {
	// SeatTaken reports whether a non-cancelled booking holds the seat.
	SeatTaken(ctx context.Context, trainID int64, date time.Time, seatNumber int) (bool, error)
	Insert(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetForUser(ctx context.Context, id, userID int64) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	Delete(ctx context.Context, id int64) error
}

type PGBookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingDetailSelect = `
    SELECT b.id, b.user_id, b.train_id, b.booking_date, b.seat_number, b.status, b.created_at,
           t.train_number, t.train_name, t.source_station, t.destination_station, t.total_seats, t.created_at,
           u.username, u.email
    FROM bookings b
    JOIN trains t ON t.id = b.train_id
    LEFT JOIN users u ON u.id = b.user_id`

func (r *PGBookingRepository) SeatTaken(ctx context.Context, trainID int64, date time.Time, seatNumber int) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM bookings WHERE train_id=$1 AND booking_date=$2 AND seat_number=$3 AND status <> $4
    )`, trainID, date, seatNumber, domain.BookingStatusCancelled).Scan(&taken)
	if err != nil {
		return false, classify(err)
	}
	return taken, nil
}

// Insert stores a confirmed booking and fills ID, Status, CreatedAt and the user projection.
func (r *PGBookingRepository) Insert(ctx context.Context, booking *domain.Booking) error {
	booking.Status = domain.BookingStatusConfirmed

	var username, email *string
	err := r.db.QueryRow(ctx, `
        WITH ins AS (
            INSERT INTO bookings (user_id, train_id, booking_date, seat_number, status)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, user_id, created_at
        )
        SELECT ins.id, ins.created_at, u.username, u.email
        FROM ins LEFT JOIN users u ON u.id = ins.user_id
    `, booking.UserID, booking.TrainID, booking.BookingDate, booking.SeatNumber, booking.Status).
		Scan(&booking.ID, &booking.CreatedAt, &username, &email)
	if err != nil {
		return classify(err)
	}
	booking.User = userSummary(username, email)
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBookingDetail(r.db.QueryRow(ctx, bookingDetailSelect+` WHERE b.id=$1`, id))
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) GetForUser(ctx context.Context, id, userID int64) (*domain.Booking, error) {
	b, err := scanBookingDetail(r.db.QueryRow(ctx, bookingDetailSelect+` WHERE b.id=$1 AND b.user_id=$2`, id, userID))
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, bookingDetailSelect+` WHERE b.user_id=$1 ORDER BY b.booking_date DESC, b.id DESC`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, classify(rows.Err())
}

func (r *PGBookingRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBookingDetail(row scanner) (*domain.Booking, error) {
	var (
		b               domain.Booking
		t               domain.Train
		username, email *string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.TrainID, &b.BookingDate, &b.SeatNumber, &b.Status, &b.CreatedAt,
		&t.TrainNumber, &t.Name, &t.SourceStation, &t.DestinationStation, &t.TotalSeats, &t.CreatedAt,
		&username, &email); err != nil {
		return nil, err
	}
	t.ID = b.TrainID
	b.Train = &t
	b.User = userSummary(username, email)
	return &b, nil
}

func userSummary(username, email *string) *domain.UserSummary {
	if username == nil && email == nil {
		return nil
	}
	u := &domain.UserSummary{}
	if username != nil {
		u.Username = *username
	}
	if email != nil {
		u.Email = *email
	}
	return u
}

var _ BookingRepository = (*PGBookingRepository)(nil)
