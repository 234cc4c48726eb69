package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// CartClearer is the slice of the cart store the consumer needs.
type CartClearer interface {
	Clear(ctx context.Context, markRecovered bool) error
}

type Identity interface {
	Key() string
	SessionID() string
}

// Consumer listens for checkout-completed events from the payment pipeline
// and converts the cart: the remote record is marked recovered, then the
// local cart is cleared. Events for other identities are ignored.
type Consumer struct {
	reader *kafka.Reader
	store  CartClearer
	ids    Identity
}

func NewConsumer(store CartClearer, ids Identity, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-completed",
		GroupID:  "cart-recovery-" + ids.SessionID(),
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, store: store, ids: ids}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() {
	err := c.reader.Close()
	if err != nil {
		fmt.Printf("error closing reader: %v\n", err)
	}
}

func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		fmt.Printf("error reading message: %v\n", err)
		return
	}

	c.handleMessage(ctx, m.Value)
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) {
	var payload map[string]interface{}
	if errUnMarshal := json.Unmarshal(value, &payload); errUnMarshal != nil {
		fmt.Printf("error parsing message: %v\n", errUnMarshal)
		return
	}
	identityKey, ok := payload["identity_key"].(string)
	if !ok {
		fmt.Println("missing or invalid identity_key")
		return
	}

	if identityKey != c.ids.Key() {
		return
	}

	if errClear := c.store.Clear(ctx, true); errClear != nil {
		fmt.Printf("failed to clear cart after checkout: %v\n", errClear)
	}
}
