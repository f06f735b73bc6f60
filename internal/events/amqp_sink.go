package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange all lifecycle events go to
const ExchangeName = "logisync.events"

// AMQPSink publishes events to a RabbitMQ topic exchange with routing key org.<id>.<type>
type AMQPSink struct {
	conn *amqp091.Connection
}

// DialAMQP connects and declares the events exchange
func DialAMQP(url string) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}

	return &AMQPSink{conn: conn}, nil
}

// RoutingKey returns the topic routing key for an event
func RoutingKey(evt Event) string {
	return fmt.Sprintf("org.%s.%s", evt.OrganizationID, evt.Type)
}

func (s *AMQPSink) Publish(ctx context.Context, evt Event) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		ExchangeName,    // exchange
		RoutingKey(evt), // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// Close closes the RabbitMQ connection
func (s *AMQPSink) Close() error {
	return s.conn.Close()
}
