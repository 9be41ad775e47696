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

func TestAvailabilityRepository_TryReserve(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	day := domain.Day(time.Now())
	trainID := pgtest.SeedTrain(t, pool, "TR200", 2, 1, day)

	repo := NewAvailabilityRepository(pool)

	require.NoError(t, repo.TryReserve(ctx, trainID, day))
	assert.Equal(t, 0, pgtest.Counter(t, pool, trainID, day))

	assert.ErrorIs(t, repo.TryReserve(ctx, trainID, day), ErrUnavailable)
	assert.Equal(t, 0, pgtest.Counter(t, pool, trainID, day))

	assert.ErrorIs(t, repo.TryReserve(ctx, trainID, day.AddDate(0, 0, 1)), ErrNotFound)
}

func TestAvailabilityRepository_ReleaseIsCapped(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	day := domain.Day(time.Now())
	trainID := pgtest.SeedTrain(t, pool, "TR201", 3, 2, day)

	repo := NewAvailabilityRepository(pool)

	require.NoError(t, repo.Release(ctx, trainID, day))
	assert.Equal(t, 3, pgtest.Counter(t, pool, trainID, day))

	err := repo.Release(ctx, trainID, day)
	assert.ErrorIs(t, err, ErrLedgerOverflow)
	assert.Equal(t, 3, pgtest.Counter(t, pool, trainID, day))

	assert.ErrorIs(t, repo.Release(ctx, trainID, day.AddDate(0, 0, 5)), ErrNotFound)
}

func TestAvailabilityRepository_WindowAndRange(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	today := domain.Day(time.Now())
	trainID := pgtest.SeedTrain(t, pool, "TR202", 50, 50)

	repo := NewAvailabilityRepository(pool)

	n, err := repo.SeedWindow(ctx, trainID, today, 5, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Already seeded days are left alone.
	n, err = repo.ExtendAll(ctx, today, today.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repo.ListRange(ctx, trainID, today.AddDate(0, 0, 1), today.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, a := range list {
		assert.Equal(t, today.AddDate(0, 0, i+1), a.TravelDate)
		assert.Equal(t, 50, a.AvailableSeats)
	}

	a, err := repo.Get(ctx, trainID, today)
	require.NoError(t, err)
	assert.Equal(t, 50, a.AvailableSeats)

	_, err = repo.Get(ctx, trainID, today.AddDate(0, 0, 40))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactor_RollbackOnError(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	day := domain.Day(time.Now())
	trainID := pgtest.SeedTrain(t, pool, "TR203", 5, 5, day)

	tr := NewTransactor(pool, "read_committed", time.Second)
	err := tr.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := repos.Availability.TryReserve(ctx, trainID, day); err != nil {
			return err
		}
		return repos.Bookings.Insert(ctx, &domain.Booking{UserID: 1, TrainID: trainID, BookingDate: day, SeatNumber: 0})
	})
	assert.Error(t, err)
	assert.Equal(t, 5, pgtest.Counter(t, pool, trainID, day))
	assert.Equal(t, 0, pgtest.BookingCount(t, pool, trainID, day))
}

func TestTransactor_LockTimeout(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	day := domain.Day(time.Now())
	trainID := pgtest.SeedTrain(t, pool, "TR204", 5, 5, day)

	holder, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.Exec(ctx, `SELECT 1 FROM seat_availability WHERE train_id=$1 AND travel_date=$2 FOR UPDATE`, trainID, day)
	require.NoError(t, err)

	tr := NewTransactor(pool, "read_committed", 100*time.Millisecond)
	err = tr.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		return repos.Availability.TryReserve(ctx, trainID, day)
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}
