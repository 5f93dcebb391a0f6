package notify

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-monitor/realtime/internal/domain"
)

const (
	exchangeName = "fleet.events"
	queueName    = "geofence_alerts"
)

// AMQPPublisher mirrors accepted alerts onto a durable fanout exchange for
// consumers outside the dashboard (paging, audit, downstream jobs).
type AMQPPublisher struct {
	ch *amqp.Channel
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &AMQPPublisher{ch: ch}, nil
}

func (p *AMQPPublisher) PublishAlert(ctx context.Context, a *domain.Alert) error {
	payload, err := encodeAlert(a)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
