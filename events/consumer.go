package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// Handler reacts to one profile event.
type Handler func(ctx context.Context, ev ProfileEvent) error

// Consumer listens on a private queue bound to every profile event. Each
// service instance gets its own queue so all of them see every change.
type Consumer struct {
	conn      *amqp091.Connection
	channel   *amqp091.Channel
	namespace string
	handle    Handler
	log       *slog.Logger
	enabled   bool
}

// NewConsumer connects to uri. An empty uri yields a disabled consumer whose
// Run just waits for ctx.
func NewConsumer(uri, namespace string, handle Handler, log *slog.Logger) (*Consumer, error) {
	const op = "events/NewConsumer"

	if log == nil {
		log = slog.Default()
	}
	c := &Consumer{namespace: namespace, handle: handle, log: log}
	if uri == "" {
		log.Warn("rabbitmq uri is empty, event consumption is disabled")
		return c, nil
	}

	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.conn = conn
	c.channel = channel
	c.enabled = true
	return c, nil
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "events/Consumer.Run"

	if !c.enabled {
		<-ctx.Done()
		return nil
	}

	if err := declareExchange(c.channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	q, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.channel.QueueBind(q.Name, bindingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.log.Info("event consumer started", slog.String("queue", q.Name), slog.String("binding", bindingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			c.deliver(ctx, d)
		}
	}
}

// deliver acks handled and foreign-namespace messages, drops malformed ones
// and requeues once when the handler fails.
func (c *Consumer) deliver(ctx context.Context, d amqp091.Delivery) {
	ev, err := decode(d.Body)
	if err != nil {
		c.log.Warn("dropping event", slog.String("err", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	if ev.Namespace != c.namespace {
		_ = d.Ack(false)
		return
	}

	if err := c.handle(ctx, ev); err != nil {
		c.log.Error("event handler failed",
			slog.String("type", ev.Type),
			slog.String("user_id", ev.UserID),
			slog.String("err", err.Error()),
		)
		_ = d.Nack(false, !d.Redelivered && !errors.Is(err, context.Canceled))
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if !c.enabled {
		return nil
	}
	if err := c.channel.Close(); err != nil {
		c.log.Warn("closing rabbitmq channel", slog.String("err", err.Error()))
	}
	return c.conn.Close()
}
