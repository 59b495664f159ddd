package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luikyv/go-authorize/pkg/goidc"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel used to publish entries.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes every entry as a JSON message.
type AMQPSink struct {
	publisher  Publisher
	exchange   string
	routingKey string
}

func NewAMQPSink(publisher Publisher, exchange, routingKey string) *AMQPSink {
	return &AMQPSink{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

func (s *AMQPSink) Send(ctx context.Context, entry goidc.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not encode the audit entry: %w", err)
	}

	return s.publisher.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     entry.ID,
		CorrelationId: entry.ID,
		Type:          string(entry.Action),
		Timestamp:     time.Unix(int64(entry.Timestamp), 0).UTC(),
		Body:          body,
	})
}

// DialAMQP opens a channel to the broker at url and declares the durable
// queue entries are routed to through the default exchange.
// The connection is closed by the function returned.
func DialAMQP(url, queue string) (*amqp.Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to the broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare the audit queue: %w", err)
	}

	return ch, conn.Close, nil
}
