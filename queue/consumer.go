package queue

import (
	"context"
	"encoding/json"
	"errors"

	"catalog-backend/importer"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer runs import tasks delivered from RabbitMQ, one at a time.
type Consumer struct {
	channel     *amqp.Channel
	queue       string
	handler     importer.TaskHandler
	logger      *logrus.Entry
	prefetchCnt int
}

func NewConsumer(conn *amqp.Connection, exchange, routingKey, queue string, handler importer.TaskHandler, logger *logrus.Entry) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	consumer := &Consumer{
		channel:     ch,
		queue:       queue,
		handler:     handler,
		logger:      logger,
		prefetchCnt: 1,
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, err
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		ch.Close()
		return nil, err
	}

	if err := ch.Qos(consumer.prefetchCnt, 0, false); err != nil {
		ch.Close()
		return nil, err
	}

	return consumer, nil
}

// Start consumes until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Import consumer shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("RabbitMQ channel closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) Close() error {
	return c.channel.Close()
}

// handle runs one delivery. The job row records the result, so a task that
// ran is acked whatever its outcome; only undecodable payloads are rejected.
func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var task importer.Task
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		c.logger.WithError(err).Error("Failed to decode import task")
		if err := msg.Nack(false, false); err != nil {
			c.logger.WithError(err).Warn("Nack failed")
		}
		return
	}

	log := c.logger.WithField("job_id", task.JobID)
	if err := c.handler.Run(ctx, task); err != nil {
		if errors.Is(err, importer.ErrJobNotRunnable) {
			log.WithError(err).Warn("Skipping import task")
		} else {
			log.WithError(err).Error("Import task ended with error")
		}
	}

	if err := msg.Ack(false); err != nil {
		log.WithError(err).Warn("Ack failed")
	}
}
