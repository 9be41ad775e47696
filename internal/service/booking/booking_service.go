package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/kafka"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/repository"
	"github.com/google/uuid"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID int64) error
	ListMyBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
	GetBooking(ctx context.Context, userID, bookingID int64) (*domain.Booking, error)
}

// TrainCatalog resolves the train record before a reservation. It never
// reports seat counters.
type TrainCatalog interface {
	GetTrainRecord(ctx context.Context, id int64) (*domain.Train, error)
}

type IdempotencyStore interface {
	LookupBooking(ctx context.Context, userID int64, key string) (int64, bool, error)
	RememberBooking(ctx context.Context, userID int64, key string, bookingID int64, ttl time.Duration) error
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

// publishAttempts bounds the broker writes per event. The booking is already
// committed, so a broker outage costs at most this many backoff rounds.
const publishAttempts = 3

type BookingService struct {
	tx                 repository.Transactor
	bookings           repository.BookingRepository
	catalog            TrainCatalog
	idempotency        IdempotencyStore
	producer           Producer
	log                *logger.Logger
	bookingTopic       string
	notificationsTopic string
	idempotencyTTL     time.Duration
	opTimeout          time.Duration
	maxAttempts        int
}

type CreateBookingInput struct {
	UserID     int64
	TrainID    int64
	Date       time.Time
	SeatNumber int
	// IdempotencyKey is optional. A repeated key returns the booking it created.
	IdempotencyKey string
}

type BookingServiceOption func(*BookingService)

func WithEvents(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithIdempotency(store IdempotencyStore, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.idempotency = store
		s.idempotencyTTL = ttl
	}
}

func WithOperationTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.opTimeout = d
	}
}

// WithMaxAttempts bounds how often a unit of work runs when the database
// asks for a retry. One means no retry.
func WithMaxAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewBookingService builds the reservation manager. bookings serves the read
// paths and must be bound to the pool.
func NewBookingService(
	tx repository.Transactor,
	bookings repository.BookingRepository,
	catalog TrainCatalog,
	log *logger.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		tx:          tx,
		bookings:    bookings,
		catalog:     catalog,
		log:         log,
		maxAttempts: 2,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	date := domain.Day(input.Date)

	if existing := s.replay(ctx, input); existing != nil {
		return existing, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	train, err := s.catalog.GetTrainRecord(ctx, input.TrainID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: train %d", domain.ErrUnknownScheduleDate, input.TrainID)
		}
		if timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: train lookup", domain.ErrTimeout)
		}
		return nil, err
	}
	if input.SeatNumber > train.TotalSeats {
		return nil, fmt.Errorf("%w: seat %d exceeds the %d seats of train %s", domain.ErrInvalidRequest, input.SeatNumber, train.TotalSeats, train.TrainNumber)
	}

	var booking *domain.Booking
	err = s.withRetry(ctx, "create", func() error {
		b, err := s.reserve(ctx, input.UserID, train, date, input.SeatNumber)
		booking = b
		return err
	})
	if err != nil {
		return nil, s.mapCreateError(ctx, err, train, date, input.SeatNumber)
	}
	booking.Train = train

	s.log.LogBooking("CREATE", booking.ID, fmt.Sprintf("user %d train %s %s seat %d",
		booking.UserID, train.TrainNumber, date.Format(domain.DateLayout), booking.SeatNumber))

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.RememberBooking(ctx, input.UserID, input.IdempotencyKey, booking.ID, s.idempotencyTTL); err != nil {
			s.log.Warn("BOOKING", fmt.Sprintf("remember idempotency key for booking %d: %v", booking.ID, err))
		}
	}
	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

// reserve runs one attempt of the create protocol in its own transaction.
func (s *BookingService) reserve(ctx context.Context, userID int64, train *domain.Train, date time.Time, seat int) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		taken, err := repos.Bookings.SeatTaken(ctx, train.ID, date, seat)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrSeatTaken
		}

		if err := repos.Availability.TryReserve(ctx, train.ID, date); err != nil {
			return err
		}

		b := &domain.Booking{
			UserID:      userID,
			TrainID:     train.ID,
			BookingDate: date,
			SeatNumber:  seat,
		}
		if err := repos.Bookings.Insert(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) mapCreateError(ctx context.Context, err error, train *domain.Train, date time.Time, seat int) error {
	day := date.Format(domain.DateLayout)
	switch {
	case errors.Is(err, domain.ErrSeatTaken), errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: seat %d on train %s %s", domain.ErrSeatTaken, seat, train.TrainNumber, day)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: train %s does not run on %s", domain.ErrUnknownScheduleDate, train.TrainNumber, day)
	case errors.Is(err, repository.ErrUnavailable):
		return fmt.Errorf("%w: train %s on %s", domain.ErrSoldOut, train.TrainNumber, day)
	case errors.Is(err, repository.ErrRetryable):
		return fmt.Errorf("%w: booking train %s on %s: %v", domain.ErrConflict, train.TrainNumber, day, err)
	case timedOut(ctx, err):
		return fmt.Errorf("%w: booking train %s on %s", domain.ErrTimeout, train.TrainNumber, day)
	}
	s.log.Error("BOOKING", fmt.Sprintf("create on train %s %s seat %d: %v", train.TrainNumber, day, seat, err))
	return err
}

// replay returns the booking already created for the idempotency key, if any.
func (s *BookingService) replay(ctx context.Context, input CreateBookingInput) *domain.Booking {
	if input.IdempotencyKey == "" || s.idempotency == nil {
		return nil
	}
	id, ok, err := s.idempotency.LookupBooking(ctx, input.UserID, input.IdempotencyKey)
	if err != nil {
		s.log.Warn("BOOKING", fmt.Sprintf("idempotency lookup for user %d: %v", input.UserID, err))
		return nil
	}
	if !ok {
		return nil
	}
	existing, err := s.bookings.GetForUser(ctx, id, input.UserID)
	if err != nil {
		// A cancelled booking no longer answers for its key.
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("BOOKING", fmt.Sprintf("load replayed booking %d: %v", id, err))
		}
		return nil
	}
	s.log.LogBooking("REPLAY", existing.ID, "returned for repeated idempotency key")
	return existing
}

func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID int64) error {
	if userID <= 0 || bookingID <= 0 {
		return fmt.Errorf("%w: user id and booking id must be positive", domain.ErrInvalidRequest)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cancelled *domain.Booking
	err := s.withRetry(ctx, "cancel", func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			b, err := repos.Bookings.GetByID(ctx, bookingID)
			if err != nil {
				return err
			}
			if b.UserID != userID {
				return fmt.Errorf("%w: booking %d belongs to another user", domain.ErrForbidden, bookingID)
			}

			releaseErr := repos.Availability.Release(ctx, b.TrainID, b.BookingDate)
			if releaseErr != nil && !errors.Is(releaseErr, repository.ErrLedgerOverflow) && !errors.Is(releaseErr, repository.ErrNotFound) {
				return releaseErr
			}

			if err := repos.Bookings.Delete(ctx, b.ID); err != nil {
				return err
			}
			// A concurrent cancel that lost the delete sees a full ledger
			// row too; only the cancel that removed the booking reports it.
			if releaseErr != nil {
				s.log.Error("LEDGER", fmt.Sprintf("release for booking %d: %v", b.ID, releaseErr))
			}
			cancelled = b
			return nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return err
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: booking %d", domain.ErrNotFound, bookingID)
		case errors.Is(err, repository.ErrRetryable):
			return fmt.Errorf("%w: cancel booking %d: %v", domain.ErrConflict, bookingID, err)
		case timedOut(ctx, err):
			return fmt.Errorf("%w: cancel booking %d", domain.ErrTimeout, bookingID)
		}
		s.log.Error("BOOKING", fmt.Sprintf("cancel booking %d: %v", bookingID, err))
		return err
	}

	s.log.LogBooking("CANCEL", cancelled.ID, fmt.Sprintf("user %d released seat %d on %s",
		userID, cancelled.SeatNumber, cancelled.BookingDate.Format(domain.DateLayout)))
	s.publish(ctx, kafka.EventBookingCancelled, cancelled)
	return nil
}

func (s *BookingService) ListMyBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", domain.ErrInvalidRequest)
	}
	return s.bookings.ListByUser(ctx, userID)
}

func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID int64) (*domain.Booking, error) {
	b, err := s.bookings.GetForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: booking %d", domain.ErrNotFound, bookingID)
		}
		return nil, err
	}
	return b, nil
}

func (s *BookingService) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrRetryable) || ctx.Err() != nil {
			return err
		}
		s.log.Warn("BOOKING", fmt.Sprintf("%s attempt %d/%d rolled back: %v", op, attempt, s.maxAttempts, err))
	}
	return err
}

func (s *BookingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		ID:          uuid.New(),
		Type:        eventType,
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		TrainID:     booking.TrainID,
		BookingDate: booking.BookingDate.Format(domain.DateLayout),
		SeatNumber:  booking.SeatNumber,
		OccurredAt:  time.Now().UTC(),
	}
	if booking.Train != nil {
		event.TrainNumber = booking.Train.TrainNumber
	}
	if booking.User != nil {
		event.Email = booking.User.Email
	}

	// Best-effort: the booking is already committed.
	ctx = context.WithoutCancel(ctx)
	if err := s.producer.PublishWithRetry(ctx, s.bookingTopic, event.Key(), event, publishAttempts); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("publish %s for booking %d: %v", eventType, booking.ID, err))
	}
	if s.notificationsTopic != "" {
		if err := s.producer.PublishWithRetry(ctx, s.notificationsTopic, event.Key(), event, publishAttempts); err != nil {
			s.log.Warn("KAFKA", fmt.Sprintf("publish %s notification for booking %d: %v", eventType, booking.ID, err))
		}
	}
}

func (in CreateBookingInput) validate() error {
	switch {
	case in.UserID <= 0:
		return fmt.Errorf("%w: user id must be positive", domain.ErrInvalidRequest)
	case in.TrainID <= 0:
		return fmt.Errorf("%w: train id must be positive", domain.ErrInvalidRequest)
	case in.Date.IsZero():
		return fmt.Errorf("%w: booking date is required", domain.ErrInvalidRequest)
	case in.SeatNumber <= 0:
		return fmt.Errorf("%w: seat number must be positive", domain.ErrInvalidRequest)
	}
	return nil
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, repository.ErrLockTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)
}

var _ BookingUseCase = (*BookingService)(nil)
