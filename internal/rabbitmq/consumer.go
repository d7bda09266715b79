package rabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery. Deliveries are acknowledged whatever the outcome.
type Handler func(ctx context.Context, routingKey string, body []byte)

type ConsumerConfig struct {
	Exchange string
	Queue    string
	Binding  string
	Prefetch int
}

// Consumer reads inbound commands from a durable queue bound to the exchange.
type Consumer struct {
	ch      *amqp.Channel
	cfg     ConsumerConfig
	handler Handler
	log     *zap.Logger
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler Handler, log *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(cfg.Queue, cfg.Binding, cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	return &Consumer{ch: ch, cfg: cfg, handler: handler, log: log}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("consuming commands", zap.String("queue", c.cfg.Queue), zap.String("binding", c.cfg.Binding))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("command handler panicked", zap.String("routing_key", d.RoutingKey), zap.Any("panic", r))
		}
		if err := d.Ack(false); err != nil {
			c.log.Warn("ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		}
	}()
	c.handler(ctx, d.RoutingKey, d.Body)
}
