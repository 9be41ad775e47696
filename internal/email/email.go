package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/trainbooking/internal/kafka"
	"github.com/Domenick1991/trainbooking/internal/logger"
)

// Sender turns booking events into customer notifications. Delivery is a log
// line until a mail gateway is wired in.
type Sender struct {
	log *logger.Logger
}

func NewSender(log *logger.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		s.log.Warn("EMAIL", fmt.Sprintf("booking %d has no recipient, skipping %s", event.BookingID, event.Type))
		return nil
	}
	s.log.Info("EMAIL", Render(event))
	return nil
}

// Render builds the notification text for event.
func Render(event kafka.BookingEvent) string {
	train := event.TrainNumber
	if train == "" {
		train = fmt.Sprintf("#%d", event.TrainID)
	}
	switch event.Type {
	case kafka.EventBookingCreated:
		return fmt.Sprintf("to %s: booking %d confirmed, train %s on %s, seat %d",
			event.Email, event.BookingID, train, event.BookingDate, event.SeatNumber)
	case kafka.EventBookingCancelled:
		return fmt.Sprintf("to %s: booking %d cancelled, train %s on %s, seat %d released",
			event.Email, event.BookingID, train, event.BookingDate, event.SeatNumber)
	default:
		return fmt.Sprintf("to %s: %s for booking %d", event.Email, event.Type, event.BookingID)
	}
}
