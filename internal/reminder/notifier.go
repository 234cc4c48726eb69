package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	RecordID       string            `json:"record_id"`
	Email          string            `json:"email"`
	Items          []domain.CartLine `json:"items"`
	Total          float64           `json:"total"`
	ReminderNumber int               `json:"reminder_number"`
}

// Notifier delivers one reminder. The collaborator is opaque: success or
// failure is all the scheduler sees.
type Notifier interface {
	SendReminder(ctx context.Context, n Notification) error
}

// KafkaNotifier publishes reminders to the notification pipeline. The
// circuit breaker keeps a flapping broker from eating the whole batch.
type KafkaNotifier struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "cart-reminders",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name: "reminder-notifier",
	})
	return &KafkaNotifier{writer: w, breaker: cb}
}

func (k *KafkaNotifier) SendReminder(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.RecordID), // record id for ordering
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("cart-reminder")},
		},
	}

	_, err = k.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, k.writer.WriteMessages(ctx, msg)
	})
	return err
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
