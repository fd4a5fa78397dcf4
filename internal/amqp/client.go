// Package amqp carries change notifications between devices and queues
// budget alerts over RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/sheets"
)

const (
	publishTimeout = 5 * time.Second
	// HeaderDelaySeconds carries Notification.DelaySeconds on alert messages.
	HeaderDelaySeconds = "x-delay-seconds"
)

type Client struct {
	conn         *amqp091.Connection
	mu           sync.Mutex // guards channel for publishes
	channel      *amqp091.Channel
	exchangeName string
	alertQueue   string
	logger       *log.Logger
}

var _ notify.Notifier = (*Client)(nil)

func NewClient(url, exchangeName, alertQueue string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		alertQueue:   alertQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.alertQueue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare alert queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.alertQueue,   // queue name
		c.alertQueue,   // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind alert queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.PublishWithContext(ctx, c.exchangeName, routingKey, false, false, msg)
}

// PublishChange implements sheets.ChangePublisher.
func (c *Client) PublishChange(ctx context.Context, change sheets.Change) error {
	body, err := NewChangeMessage(change).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	key := RoutingKey(change.Scope)
	err = c.publish(ctx, key, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Transient, // listeners only care about live changes
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish change: %w", err)
	}

	c.logger.DebugContext(ctx, "Published change",
		log.NewFields().WithUser(change.Scope.UserID).
			WithEntity(string(change.Scope.Collection), change.DocumentID).ToSlice()...)
	return nil
}

// Schedule implements notify.Notifier by queueing the alert durably.
func (c *Client) Schedule(ctx context.Context, n notify.Notification) (notify.Handle, error) {
	h := notify.NewHandle()
	body, err := NewAlertMessage(h, n).ToJSON()
	if err != nil {
		return "", fmt.Errorf("marshal alert: %w", err)
	}

	headers := amqp091.Table{}
	if n.DelaySeconds != nil {
		headers[HeaderDelaySeconds] = int32(*n.DelaySeconds)
	}

	err = c.publish(ctx, c.alertQueue, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    string(h),
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("publish alert: %w", err)
	}

	c.logger.InfoContext(ctx, "Queued alert", "handle", h, "title", n.Title, "queue", c.alertQueue)
	return h, nil
}

// Watch implements the change feed for one collection: every change
// published for scope produces a signal. Each watch has its own channel
// and an exclusive, auto-deleted queue.
func (c *Client) Watch(ctx context.Context, scope sheets.Scope) (<-chan struct{}, func(), error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open watch channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare watch queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, RoutingKey(scope), c.exchangeName, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("bind watch queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("start consuming changes: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ch.Close()
		forward(watchCtx, deliveries, scope, out, c.logger)
	}()

	c.logger.DebugContext(ctx, "Watching changes", "routing_key", RoutingKey(scope), "queue", q.Name)
	return out, cancel, nil
}

// forward turns deliveries for scope into coalesced signals until ctx is
// done or the delivery channel closes.
func forward(ctx context.Context, deliveries <-chan amqp091.Delivery, scope sheets.Scope, out chan<- struct{}, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.WarnContext(ctx, "Change delivery channel closed", "routing_key", RoutingKey(scope))
				return
			}
			msg, err := ChangeMessageFromJSON(d.Body)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to unmarshal change", log.FieldError, err)
				continue
			}
			if msg.Scope() != scope {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// ConsumeAlerts hands queued alerts to handler until ctx is done. A failed
// handler requeues the alert; an undecodable one is dropped.
func (c *Client) ConsumeAlerts(ctx context.Context, handler func(*AlertMessage) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open alert channel: %w", err)
	}
	defer ch.Close()

	msgs, err := ch.Consume(
		c.alertQueue, // queue
		"",           // consumer
		false,        // auto-ack (we want manual ack)
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("start consuming alerts: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming alerts", "queue", c.alertQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping alert consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("alert channel closed")
			}

			msg, err := AlertMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal alert", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}
			if msg.DelaySeconds == nil {
				if v, ok := delivery.Headers[HeaderDelaySeconds]; ok {
					if d, ok := delaySeconds(v); ok {
						msg.DelaySeconds = &d
					}
				}
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle alert", log.FieldError, err, "handle", msg.Handle)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func delaySeconds(v any) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	case string:
		d, err := strconv.Atoi(n)
		return d, err == nil
	default:
		return 0, false
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
