package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog-backend/importer"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeKind = "direct"

// publishChannel is the part of *amqp.Channel the runner needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitRunner is a JobRunner that hands tasks to a RabbitMQ exchange. A
// Consumer on any instance picks them up and runs them.
type RabbitRunner struct {
	channel    publishChannel
	exchange   string
	routingKey string
}

func NewRabbitRunner(conn *amqp.Connection, exchange, routingKey string) (*RabbitRunner, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		ExchangeKind,
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &RabbitRunner{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (r *RabbitRunner) Enqueue(ctx context.Context, task importer.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode import task: %w", err)
	}

	return r.channel.PublishWithContext(ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.JobID.String(),
			Body:         body,
		},
	)
}
