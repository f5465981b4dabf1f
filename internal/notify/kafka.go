package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/segmentio/kafka-go"
)

const EventWaitlistJoined = "waitlist.joined"

// EventPublisher ships signup events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type SignupEvent struct {
	Event    string    `json:"event"`
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Company  *string   `json:"company"`
	UseCase  string    `json:"use_case"`
	Position int64     `json:"position"`
	JoinedAt time.Time `json:"joined_at"`
}

func newSignupEvent(entry models.WaitlistEntry, position int64) SignupEvent {
	return SignupEvent{
		Event:    EventWaitlistJoined,
		ID:       entry.ID,
		Name:     entry.Name,
		Email:    entry.Email,
		Company:  entry.Company,
		UseCase:  entry.UseCase,
		Position: position,
		JoinedAt: entry.CreatedAt.UTC(),
	}
}

type KafkaProducer struct {
	writer  *kafka.Writer
	brokers []string
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		brokers: brokers,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	const op = "kafka.producer.Publish"

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ping dials the first reachable broker.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	if len(errs) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	return errors.Join(errs...)
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

func encodeSignupEvent(entry models.WaitlistEntry, position int64) ([]byte, []byte, error) {
	value, err := json.Marshal(newSignupEvent(entry, position))
	if err != nil {
		return nil, nil, err
	}
	return []byte(entry.Email), value, nil
}
