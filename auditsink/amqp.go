// Package auditsink ships caseAuth audit events to external collectors.
package auditsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	caseAuth "github.com/MrEthical07/caseAuth"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the durable topic exchange audit events go to.
	DefaultExchange = "caseauth.audit"
	routingPrefix   = "audit."
	dialTimeout     = 10 * time.Second
)

// publisher is the part of *amqp.Channel the sink uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes each audit event as a JSON message with routing key
// "audit.<event_type>". Publish failures are logged and dropped; the login
// path never waits on the broker beyond one publish call.
type AMQP struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	logger   *slog.Logger

	mu sync.Mutex
}

// DialAMQP connects to rawURL, opens a channel, and declares exchange.
func DialAMQP(rawURL, exchange string, logger *slog.Logger) (*AMQP, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	s := newAMQP(ch, exchange, logger)
	s.conn = conn
	return s, nil
}

func newAMQP(ch publisher, exchange string, logger *slog.Logger) *AMQP {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQP{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}
}

// Emit implements [caseAuth.AuditSink].
func (s *AMQP) Emit(ctx context.Context, event caseAuth.AuditEvent) {
	if s == nil || s.channel == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit event encoding failed", "event_type", event.EventType, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(ctx, s.exchange, routingPrefix+event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit event publish failed", "event_type", event.EventType, "exchange", s.exchange, "error", err)
	}
}

// Close closes the broker connection.
func (s *AMQP) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
