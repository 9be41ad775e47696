package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
)

type TrainRepository interface {
	Create(ctx context.Context, train *domain.Train) error
	GetByID(ctx context.Context, id int64) (*domain.Train, error)
	List(ctx context.Context) ([]domain.Train, error)
	Search(ctx context.Context, source, destination string, date time.Time) ([]domain.TrainSchedule, error)
}

type PGTrainRepository struct {
	db DBTX
}

func NewTrainRepository(db DBTX) TrainRepository {
	return &PGTrainRepository{db: db}
}

const trainColumns = `t.id, t.train_number, t.train_name, t.source_station, t.destination_station, t.total_seats, t.created_at`

func (r *PGTrainRepository) Create(ctx context.Context, train *domain.Train) error {
	err := r.db.QueryRow(ctx, `INSERT INTO trains (train_number, train_name, source_station, destination_station, total_seats)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, train.TrainNumber, train.Name, train.SourceStation, train.DestinationStation, train.TotalSeats).
		Scan(&train.ID, &train.CreatedAt)
	return classify(err)
}

func (r *PGTrainRepository) GetByID(ctx context.Context, id int64) (*domain.Train, error) {
	var t domain.Train
	if err := scanTrain(r.db.QueryRow(ctx, `SELECT `+trainColumns+` FROM trains t WHERE t.id=$1`, id), &t); err != nil {
		return nil, classify(err)
	}
	return &t, nil
}

func (r *PGTrainRepository) List(ctx context.Context) ([]domain.Train, error) {
	rows, err := r.db.Query(ctx, `SELECT `+trainColumns+` FROM trains t ORDER BY t.train_number`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	trains := make([]domain.Train, 0)
	for rows.Next() {
		var t domain.Train
		if err := scanTrain(rows, &t); err != nil {
			return nil, err
		}
		trains = append(trains, t)
	}
	return trains, classify(rows.Err())
}

// Search returns the trains on a route that still have seats on date.
func (r *PGTrainRepository) Search(ctx context.Context, source, destination string, date time.Time) ([]domain.TrainSchedule, error) {
	rows, err := r.db.Query(ctx, `SELECT `+trainColumns+`, sa.travel_date, sa.available_seats
		FROM trains t
		JOIN seat_availability sa ON sa.train_id = t.id
		WHERE t.source_station=$1 AND t.destination_station=$2 AND sa.travel_date=$3 AND sa.available_seats > 0
		ORDER BY t.train_number`, source, destination, date)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	result := make([]domain.TrainSchedule, 0)
	for rows.Next() {
		var (
			s domain.TrainSchedule
			a domain.SeatAvailability
		)
		if err := rows.Scan(&s.ID, &s.TrainNumber, &s.Name, &s.SourceStation, &s.DestinationStation, &s.TotalSeats, &s.CreatedAt,
			&a.TravelDate, &a.AvailableSeats); err != nil {
			return nil, err
		}
		a.TrainID = s.ID
		s.Availability = []domain.SeatAvailability{a}
		result = append(result, s)
	}
	return result, classify(rows.Err())
}

func scanTrain(row scanner, t *domain.Train) error {
	return row.Scan(&t.ID, &t.TrainNumber, &t.Name, &t.SourceStation, &t.DestinationStation, &t.TotalSeats, &t.CreatedAt)
}

var _ TrainRepository = (*PGTrainRepository)(nil)
