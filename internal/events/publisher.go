package events

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// Config holds the broker settings
type Config struct {
	URL      string
	Exchange string
}

// LoadConfig reads AMQP_URL and AMQP_EXCHANGE. An empty URL disables publishing.
func LoadConfig() Config {
	exchange := os.Getenv("AMQP_EXCHANGE")
	if exchange == "" {
		exchange = "chatrouter.events"
	}
	return Config{
		URL:      os.Getenv("AMQP_URL"),
		Exchange: exchange,
	}
}

// Publisher defines the interface for publishing messages to the broker
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
	Close()
}

// NewPublisher returns an AMQP publisher, or a NoopPublisher when no URL is configured
func NewPublisher(cfg Config, logger zerolog.Logger) (Publisher, error) {
	if cfg.URL == "" {
		logger.Info().Msg("event publishing disabled (no AMQP_URL)")
		return NoopPublisher{}, nil
	}
	return NewAMQPPublisher(cfg.URL, cfg.Exchange)
}

// AMQPPublisher publishes to a durable fanout exchange
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

// NewAMQPPublisher connects to the broker and declares the exchange
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial error: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel error: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare error: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

// Publish sends one JSON message. The routing key carries the event type.
func (p *AMQPPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         routingKey,
			Body:         body,
		},
	)
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher discards every message
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, string, []byte) error { return nil }
func (NoopPublisher) Close()                               {}
