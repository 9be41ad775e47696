package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainRepository_CreateAndSearch(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	day := domain.Day(time.Now()).AddDate(0, 0, 2)

	repo := NewTrainRepository(pool)
	train := &domain.Train{TrainNumber: "TR300", Name: "Express One", SourceStation: "Boston", DestinationStation: "New York", TotalSeats: 80}
	require.NoError(t, repo.Create(ctx, train))
	assert.NotZero(t, train.ID)

	err := repo.Create(ctx, &domain.Train{TrainNumber: "TR300", Name: "Copy", SourceStation: "A", DestinationStation: "B", TotalSeats: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = pool.Exec(ctx, `INSERT INTO seat_availability (train_id, travel_date, available_seats) VALUES ($1, $2, 12)`, train.ID, day)
	require.NoError(t, err)
	sold := pgtest.SeedTrain(t, pool, "TR301", 10, 0, day)
	_, err = pool.Exec(ctx, `UPDATE trains SET source_station='Boston', destination_station='New York' WHERE id=$1`, sold)
	require.NoError(t, err)

	found, err := repo.Search(ctx, "Boston", "New York", day)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "TR300", found[0].TrainNumber)
	require.Len(t, found[0].Availability, 1)
	assert.Equal(t, 12, found[0].Availability[0].AvailableSeats)

	got, err := repo.GetByID(ctx, train.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.TotalSeats)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
