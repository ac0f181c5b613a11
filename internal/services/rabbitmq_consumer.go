package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const calendarSyncQueue = "q.gateway.calendar_sync"

var errMalformedMessage = errors.New("malformed message")

// SyncLedger stores the outcome of calendar sync operations
type SyncLedger interface {
	UpsertSync(ctx context.Context, record models.SyncRecord) error
}

// RabbitMQConsumer feeds calendar sync messages into the sync ledger
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	ledger       SyncLedger
	exchangeName string
	url          string
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewRabbitMQConsumer(url, exchangeName string, ledger SyncLedger, m *metrics.Metrics) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &RabbitMQConsumer{
		conn:         conn,
		channel:      channel,
		ledger:       ledger,
		exchangeName: exchangeName,
		url:          url,
		metrics:      m,
		now:          time.Now,
	}, nil
}

func (c *RabbitMQConsumer) Start() error {
	q, err := c.channel.QueueDeclare(
		calendarSyncQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{RoutingCalendarEventAdded, RoutingCalendarEventRemoved} {
		if err := c.channel.QueueBind(q.Name, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go c.consumeLoop(msgs)

	log.Info().Str("queue", q.Name).Msg("Calendar sync consumer started")
	return nil
}

func (c *RabbitMQConsumer) consumeLoop(msgs <-chan amqp.Delivery) {
	for d := range msgs {
		log.Info().Str("routing_key", d.RoutingKey).Msg("Received calendar sync message")

		err := c.process(context.Background(), d.RoutingKey, d.Body)
		switch {
		case err == nil:
			c.metrics.BusMessage("consume", "ok")
			d.Ack(false)
		case errors.Is(err, errMalformedMessage):
			log.Error().Err(err).Msg("Dropping calendar sync message")
			c.metrics.BusMessage("consume", "dropped")
			d.Nack(false, false)
		default:
			log.Error().Err(err).Msg("Failed to record calendar sync")
			c.metrics.BusMessage("consume", "requeued")
			d.Nack(false, true) // retry
		}
	}
}

// process turns one bus message into a ledger upsert
func (c *RabbitMQConsumer) process(ctx context.Context, routingKey string, body []byte) error {
	var msg models.CalendarSyncEvent
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if msg.UserID == "" || msg.CalendarEventID == "" {
		return fmt.Errorf("%w: missing user_id or calendar_event_id", errMalformedMessage)
	}

	now := c.now().UTC()
	record := models.SyncRecord{
		UserID:          msg.UserID,
		CalendarEventID: msg.CalendarEventID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if msg.Event != nil {
		record.Name = msg.Event.Name
		record.EventDate = msg.Event.Date
		record.Location = msg.Event.Location
		record.Description = msg.Event.Description
		record.URL = msg.Event.URL
		record.Distance = msg.Event.Distance
	}

	switch routingKey {
	case RoutingCalendarEventAdded:
		if msg.Event == nil {
			return fmt.Errorf("%w: added message without event", errMalformedMessage)
		}
		record.Status = models.SyncStatusAdded
	case RoutingCalendarEventRemoved:
		record.Status = models.SyncStatusRemoved
	default:
		return fmt.Errorf("%w: unexpected routing key %q", errMalformedMessage, routingKey)
	}

	if err := c.ledger.UpsertSync(ctx, record); err != nil {
		return fmt.Errorf("failed to store sync record: %w", err)
	}

	log.Info().
		Str("user_id", record.UserID).
		Str("calendar_event_id", record.CalendarEventID).
		Str("status", record.Status).
		Msg("Calendar sync recorded")
	return nil
}

func (c *RabbitMQConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// LedgerPublisher writes calendar sync messages straight into the ledger.
// It replaces the broker when RABBITMQ_URL is empty; other messages are dropped.
type LedgerPublisher struct {
	consumer *RabbitMQConsumer
}

func NewLedgerPublisher(ledger SyncLedger, m *metrics.Metrics) *LedgerPublisher {
	return &LedgerPublisher{
		consumer: &RabbitMQConsumer{ledger: ledger, metrics: m, now: time.Now},
	}
}

func (p *LedgerPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	switch routingKey {
	case RoutingCalendarEventAdded, RoutingCalendarEventRemoved:
	default:
		log.Debug().Str("routing_key", routingKey).Msg("Event bus disabled, message dropped")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := p.consumer.process(ctx, routingKey, body); err != nil {
		p.consumer.metrics.BusMessage("publish", "error")
		return err
	}
	p.consumer.metrics.BusMessage("publish", "ok")
	return nil
}
