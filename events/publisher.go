package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher announces profile changes.
type Publisher interface {
	PublishProfileEvent(ctx context.Context, ev ProfileEvent) error
	Enabled() bool
	Close() error
}

// AMQPPublisher publishes to the Exchange topic exchange. With an empty URI it
// is disabled and every publish is a no-op.
type AMQPPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	log     *slog.Logger
	mu      sync.Mutex
	enabled bool
}

func NewPublisher(uri string, log *slog.Logger) (*AMQPPublisher, error) {
	const op = "events/NewPublisher"

	if log == nil {
		log = slog.Default()
	}
	if uri == "" {
		log.Warn("rabbitmq uri is empty, event publishing is disabled")
		return &AMQPPublisher{log: log}, nil
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

	if err := declareExchange(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("event publisher initialized", slog.String("exchange", Exchange))

	return &AMQPPublisher{conn: conn, channel: channel, log: log, enabled: true}, nil
}

func declareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
}

func (p *AMQPPublisher) Enabled() bool { return p.enabled }

func (p *AMQPPublisher) PublishProfileEvent(ctx context.Context, ev ProfileEvent) error {
	const op = "events/PublishProfileEvent"

	if !p.enabled {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		Exchange, // exchange
		ev.Type,  // routing key
		false,    // mandatory
		false,    // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ID,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp091.Table{
				"event_type": ev.Type,
				"user_id":    ev.UserID,
				"namespace":  ev.Namespace,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Debug("published event", slog.String("type", ev.Type), slog.String("user_id", ev.UserID))
	return nil
}

func (p *AMQPPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn("closing rabbitmq channel", slog.String("err", err.Error()))
	}
	return p.conn.Close()
}

var _ Publisher = (*AMQPPublisher)(nil)
