package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tutorhub/tutorhub/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DialFunc establishes a RabbitMQ connection; used for initial connect and reconnect.
type DialFunc func() (*amqp.Connection, error)

// tableCarrier adapts amqp.Table to TextMapCarrier for OpenTelemetry propagation
type tableCarrier struct {
	table amqp.Table
}

func (c tableCarrier) Get(key string) string {
	if val, ok := c.table[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", val)
	}
	return ""
}

func (c tableCarrier) Set(key, value string) {
	c.table[key] = value
}

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c.table))
	for k := range c.table {
		keys = append(keys, k)
	}
	return keys
}

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu    sync.Mutex
	ch    amqpChannel
	owned io.Closer // connection dialed by a reconnect; nil while on the shared connection
	log   *zap.Logger
	cfg   *config.Config

	// redial produces a fresh channel and its owning connection.
	redial func() (amqpChannel, io.Closer, error)
}

type Consumer struct {
	ch  *amqp.Channel
	q   amqp.Queue
	log *zap.Logger
	cfg *config.Config
}

func NewPublisher(conn *amqp.Connection, log *zap.Logger, cfg *config.Config, dial DialFunc) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(0, 0, false); err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.RabbitMQ.ExchangeName.Notification, "direct", true, false, false, false, nil); err != nil {
		return nil, err
	}

	p := &Publisher{ch: ch, log: log, cfg: cfg}
	if dial != nil {
		p.redial = func() (amqpChannel, io.Closer, error) {
			conn, err := dial()
			if err != nil {
				return nil, nil, err
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, err
			}
			return ch, conn, nil
		}
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.owned != nil {
		_ = p.owned.Close()
	}
	return err
}

func (p *Publisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	b, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	tracer := otel.Tracer(p.cfg.App.Name)
	ctx, span := tracer.Start(ctx, "rabbitmq.publish",
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", exchangeName),
			attribute.String("messaging.destination_kind", "exchange"),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
		))
	defer span.End()

	// Inject trace context into message headers
	headers := make(amqp.Table)
	propagator := otel.GetTextMapPropagator()
	propagator.Inject(ctx, tableCarrier{table: headers})

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
		Headers:      headers,
	}

	if err := p.publish(ctx, exchangeName, routingKey, publishing); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("messaging.message.body.size", len(b)))
	return nil
}

// publish serializes channel access; the swap on reconnect must not race with
// concurrent publishers, and the stale channel and connection must be closed.
func (p *Publisher) publish(ctx context.Context, exchangeName, routingKey string, publishing amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing)
	if err == nil || p.redial == nil {
		return err
	}

	// One reconnect attempt on a broken channel before giving up.
	ch, conn, dialErr := p.redial()
	if dialErr != nil {
		return err
	}
	_ = p.ch.Close()
	if p.owned != nil {
		_ = p.owned.Close()
	}
	p.ch, p.owned = ch, conn
	return p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing)
}

func NewConsumer(conn *amqp.Connection, queueName string, prefetch int, log *zap.Logger, cfg *config.Config) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, q: q, log: log, cfg: cfg}, nil
}

// Bind attaches the consumer queue to an exchange with the given routing key.
func (c *Consumer) Bind(exchangeName, routingKey string) error {
	return c.ch.QueueBind(c.q.Name, routingKey, exchangeName, false, nil)
}

func (c *Consumer) Close() error { return c.ch.Close() }

// Handle is a consumption helper function that will Nack and requeue when the handler returns an error.
func (c *Consumer) Handle(ctx context.Context, handler func([]byte) error) error {
	msgs, err := c.ch.Consume(c.q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	tracer := otel.Tracer(c.cfg.App.Name)
	propagator := otel.GetTextMapPropagator()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("consumer channel closed")
			}

			msgCtx := ctx
			if m.Headers != nil {
				msgCtx = propagator.Extract(ctx, tableCarrier{table: m.Headers})
			}

			_, span := tracer.Start(msgCtx, "rabbitmq.consume",
				trace.WithAttributes(
					attribute.String("messaging.system", "rabbitmq"),
					attribute.String("messaging.destination", c.q.Name),
					attribute.String("messaging.destination_kind", "queue"),
					attribute.String("messaging.operation", "receive"),
					attribute.Int("messaging.message.body.size", len(m.Body)),
				))

			if err := handler(m.Body); err != nil {
				span.RecordError(err)
				span.End()
				_ = m.Nack(false, true) // Processing failed, requeue.
				c.log.Sugar().Errorw("consume error", "err", err)
				continue
			}

			span.End()
			_ = m.Ack(false)
		}
	}
}
