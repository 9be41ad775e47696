package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
)

type BookingEvent struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	BookingID   int64     `json:"booking_id"`
	UserID      int64     `json:"user_id"`
	TrainID     int64     `json:"train_id"`
	TrainNumber string    `json:"train_number,omitempty"`
	BookingDate string    `json:"booking_date"`
	SeatNumber  int       `json:"seat_number"`
	Email       string    `json:"email,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Key partitions events of one booking together.
func (e BookingEvent) Key() string {
	return fmt.Sprintf("booking-%d", e.BookingID)
}

type Producer struct {
	brokers []string
	writer  *kafka.Writer
	log     *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		log:     log,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.log.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		p.log.Warn("KAFKA", fmt.Sprintf("publish attempt %d to %s failed: %v", i+1, topic, err))

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and reads its partition list.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	p.log.Debug("KAFKA", fmt.Sprintf("CONNECT %s: %d partitions visible", p.brokers[0], len(partitions)))
	return nil
}
