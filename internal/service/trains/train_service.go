package trains

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/repository"
)

type TrainUseCase interface {
	CreateTrain(ctx context.Context, input CreateTrainInput) (*domain.TrainSchedule, error)
	GetTrain(ctx context.Context, id int64) (*domain.TrainSchedule, error)
	GetTrainRecord(ctx context.Context, id int64) (*domain.Train, error)
	ListTrains(ctx context.Context) ([]domain.Train, error)
	SearchTrains(ctx context.Context, source, destination string, date time.Time) ([]domain.TrainSchedule, error)
	GetAvailability(ctx context.Context, trainID int64, date time.Time) (*domain.SeatAvailability, error)
	GetAvailabilityRange(ctx context.Context, trainID int64, from, to time.Time) ([]domain.SeatAvailability, error)
	ExtendAvailabilityWindow(ctx context.Context) (int64, error)
}

// TrainCache stores catalog metadata. Seat counters never go through it.
type TrainCache interface {
	GetTrain(ctx context.Context, id int64) (*domain.Train, error)
	SetTrain(ctx context.Context, train *domain.Train) error
	GetTrains(ctx context.Context) ([]domain.Train, error)
	SetTrains(ctx context.Context, trains []domain.Train) error
	InvalidateTrains(ctx context.Context) error
}

type CreateTrainInput struct {
	TrainNumber        string `json:"train_number"`
	Name               string `json:"train_name"`
	SourceStation      string `json:"source_station"`
	DestinationStation string `json:"destination_station"`
	TotalSeats         int    `json:"total_seats"`
}

type TrainService struct {
	tx         repository.Transactor
	repos      repository.Repositories
	cache      TrainCache
	log        *logger.Logger
	windowDays int
	opTimeout  time.Duration
	now        func() time.Time
}

type TrainServiceOption func(*TrainService)

func WithWindowDays(days int) TrainServiceOption {
	return func(s *TrainService) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

func WithOperationTimeout(d time.Duration) TrainServiceOption {
	return func(s *TrainService) {
		s.opTimeout = d
	}
}

func WithClock(now func() time.Time) TrainServiceOption {
	return func(s *TrainService) {
		s.now = now
	}
}

// NewTrainService builds the catalog. repos must be bound to the pool, not a transaction.
func NewTrainService(tx repository.Transactor, repos repository.Repositories, cache TrainCache, log *logger.Logger, opts ...TrainServiceOption) *TrainService {
	s := &TrainService{
		tx:         tx,
		repos:      repos,
		cache:      cache,
		log:        log,
		windowDays: 30,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TrainService) CreateTrain(ctx context.Context, input CreateTrainInput) (*domain.TrainSchedule, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	train := &domain.Train{
		TrainNumber:        strings.TrimSpace(input.TrainNumber),
		Name:               strings.TrimSpace(input.Name),
		SourceStation:      strings.TrimSpace(input.SourceStation),
		DestinationStation: strings.TrimSpace(input.DestinationStation),
		TotalSeats:         input.TotalSeats,
	}
	today := s.today()

	var schedule []domain.SeatAvailability
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Trains.Create(ctx, train); err != nil {
			return err
		}
		if _, err := repos.Availability.SeedWindow(ctx, train.ID, today, s.windowDays, train.TotalSeats); err != nil {
			return err
		}
		list, err := repos.Availability.ListRange(ctx, train.ID, today, today.AddDate(0, 0, s.windowDays-1))
		if err != nil {
			return err
		}
		schedule = list
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, fmt.Errorf("%w: train number %s already exists", domain.ErrInvalidRequest, train.TrainNumber)
		case timedOut(err):
			return nil, fmt.Errorf("%w: create train %s", domain.ErrTimeout, train.TrainNumber)
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateTrains(ctx); err != nil {
			s.log.Warn("CACHE", fmt.Sprintf("invalidate train list: %v", err))
		}
	}
	s.log.Info("TRAINS", fmt.Sprintf("train %s (%d) created with %d schedule days", train.TrainNumber, train.ID, len(schedule)))
	return &domain.TrainSchedule{Train: *train, Availability: schedule}, nil
}

// GetTrain returns the train with its availability from today on.
func (s *TrainService) GetTrain(ctx context.Context, id int64) (*domain.TrainSchedule, error) {
	train, err := s.repos.Trains.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "train %d", id)
	}
	list, err := s.repos.Availability.ListRange(ctx, id, s.today(), s.windowEnd())
	if err != nil {
		return nil, err
	}
	return &domain.TrainSchedule{Train: *train, Availability: list}, nil
}

// GetTrainRecord is the catalog lookup used before a reservation. It is cached per train.
func (s *TrainService) GetTrainRecord(ctx context.Context, id int64) (*domain.Train, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrain(ctx, id)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.log.Warn("CACHE", fmt.Sprintf("read train %d: %v", id, err))
		}
	}

	train, err := s.repos.Trains.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "train %d", id)
	}
	if s.cache != nil {
		if err := s.cache.SetTrain(ctx, train); err != nil {
			s.log.Warn("CACHE", fmt.Sprintf("store train %d: %v", id, err))
		}
	}
	return train, nil
}

func (s *TrainService) ListTrains(ctx context.Context) ([]domain.Train, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrains(ctx)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.log.Warn("CACHE", fmt.Sprintf("read train list: %v", err))
		}
	}

	trains, err := s.repos.Trains.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetTrains(ctx, trains); err != nil {
			s.log.Warn("CACHE", fmt.Sprintf("store train list: %v", err))
		}
	}
	return trains, nil
}

func (s *TrainService) SearchTrains(ctx context.Context, source, destination string, date time.Time) ([]domain.TrainSchedule, error) {
	source, destination = strings.TrimSpace(source), strings.TrimSpace(destination)
	if source == "" || destination == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: source, destination and date are required", domain.ErrInvalidRequest)
	}
	return s.repos.Trains.Search(ctx, source, destination, domain.Day(date))
}

func (s *TrainService) GetAvailability(ctx context.Context, trainID int64, date time.Time) (*domain.SeatAvailability, error) {
	if trainID <= 0 || date.IsZero() {
		return nil, fmt.Errorf("%w: train id and date are required", domain.ErrInvalidRequest)
	}
	day := domain.Day(date)
	a, err := s.repos.Availability.Get(ctx, trainID, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: train %d on %s", domain.ErrUnknownScheduleDate, trainID, day.Format(domain.DateLayout))
		}
		return nil, err
	}
	return a, nil
}

// GetAvailabilityRange lists counters between from and to inclusive. A zero
// from means today, a zero to means the last day of the booking window. Days
// before today are never listed.
func (s *TrainService) GetAvailabilityRange(ctx context.Context, trainID int64, from, to time.Time) ([]domain.SeatAvailability, error) {
	if trainID <= 0 {
		return nil, fmt.Errorf("%w: train id is required", domain.ErrInvalidRequest)
	}
	today := s.today()
	if from.IsZero() {
		from = today
	}
	from = domain.Day(from)
	if to.IsZero() {
		to = s.windowEnd()
		if to.Before(from) {
			to = from
		}
	}
	to = domain.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", domain.ErrInvalidRequest, to.Format(domain.DateLayout), from.Format(domain.DateLayout))
	}

	if _, err := s.GetTrainRecord(ctx, trainID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: train %d", domain.ErrUnknownScheduleDate, trainID)
		}
		return nil, err
	}
	if from.Before(today) {
		from = today
	}
	if to.Before(from) {
		return []domain.SeatAvailability{}, nil
	}
	return s.repos.Availability.ListRange(ctx, trainID, from, to)
}

// ExtendAvailabilityWindow adds the missing schedule days up to the end of the
// window for every train. Existing counters are left alone.
func (s *TrainService) ExtendAvailabilityWindow(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	today := s.today()
	end := s.windowEnd()
	added, err := s.repos.Availability.ExtendAll(ctx, today, end)
	if err != nil {
		return 0, fmt.Errorf("extend availability to %s: %w", end.Format(domain.DateLayout), err)
	}
	if added > 0 {
		s.log.LogDatabase("INSERT", "seat_availability", fmt.Sprintf("%d schedule days added up to %s", added, end.Format(domain.DateLayout)))
	}
	return added, nil
}

func (s *TrainService) today() time.Time {
	return domain.Day(s.now())
}

// windowEnd is the last bookable day, inclusive.
func (s *TrainService) windowEnd() time.Time {
	return s.today().AddDate(0, 0, s.windowDays-1)
}

func (s *TrainService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (in CreateTrainInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.TrainNumber) == "" {
		missing = append(missing, "train_number")
	}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "train_name")
	}
	if strings.TrimSpace(in.SourceStation) == "" {
		missing = append(missing, "source_station")
	}
	if strings.TrimSpace(in.DestinationStation) == "" {
		missing = append(missing, "destination_station")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if in.TotalSeats <= 0 {
		return fmt.Errorf("%w: total_seats must be positive", domain.ErrInvalidRequest)
	}
	if strings.EqualFold(strings.TrimSpace(in.SourceStation), strings.TrimSpace(in.DestinationStation)) {
		return fmt.Errorf("%w: source and destination must differ", domain.ErrInvalidRequest)
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: "+format, append([]any{domain.ErrNotFound}, args...)...)
	}
	return err
}

func timedOut(err error) bool {
	return errors.Is(err, repository.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded)
}

var _ TrainUseCase = (*TrainService)(nil)
