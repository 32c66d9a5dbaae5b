// Package queues publishes optimizer events to RabbitMQ so downstream
// consumers (dispatch boards, analytics) can react to new plans.
package queues

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange receives every published event, keyed by event type.
	Exchange = "routemate.events"

	reconnectDelay = 5 * time.Second
	reInitDelay    = 2 * time.Second
	publishTimeout = 5 * time.Second
)

var errNotConnected = errors.New("amqp: not connected")

// Publisher maintains a confirming channel to RabbitMQ and transparently
// reconnects after connection or channel failures.
type Publisher struct {
	mu              sync.Mutex
	conn            *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	ready           bool
	closed          bool
}

// NewPublisher connects to addr in the background. Publishing before the
// first successful connect returns errNotConnected.
func NewPublisher(addr string) *Publisher {
	p := &Publisher{done: make(chan struct{})}
	go p.handleReconnect(addr)
	return p
}

func (p *Publisher) handleReconnect(addr string) {
	for {
		p.mu.Lock()
		p.ready = false
		p.mu.Unlock()

		conn, err := amqp.Dial(addr)
		if err != nil {
			log.Printf("amqp: connect failed: %v", err)
			select {
			case <-p.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		p.changeConnection(conn)
		log.Printf("amqp: connected")
		if done := p.handleReInit(conn); done {
			return
		}
	}
}

func (p *Publisher) handleReInit(conn *amqp.Connection) bool {
	for {
		p.mu.Lock()
		p.ready = false
		p.mu.Unlock()

		if err := p.init(conn); err != nil {
			log.Printf("amqp: channel init failed: %v", err)
			select {
			case <-p.done:
				return true
			case <-p.notifyConnClose:
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-p.done:
			return true
		case <-p.notifyConnClose:
			return false
		case <-p.notifyChanClose:
			// re-run init on the same connection
		}
	}
}

func (p *Publisher) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	p.mu.Lock()
	p.channel = ch
	p.notifyChanClose = make(chan *amqp.Error, 1)
	p.notifyConfirm = make(chan amqp.Confirmation, 1)
	ch.NotifyClose(p.notifyChanClose)
	ch.NotifyPublish(p.notifyConfirm)
	p.ready = true
	p.mu.Unlock()
	return nil
}

func (p *Publisher) changeConnection(conn *amqp.Connection) {
	p.mu.Lock()
	p.conn = conn
	p.notifyConnClose = make(chan *amqp.Error, 1)
	conn.NotifyClose(p.notifyConnClose)
	p.mu.Unlock()
}

// PublishEvent publishes a JSON event to the exchange using the event type
// as routing key and waits for broker confirmation.
func (p *Publisher) PublishEvent(eventType string, payload any) error {
	p.mu.Lock()
	ch := p.channel
	ready := p.ready
	confirm := p.notifyConfirm
	p.mu.Unlock()
	if !ready {
		return errNotConnected
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, Exchange, eventType, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		return err
	}
	select {
	case c := <-confirm:
		if !c.Ack {
			return errors.New("amqp: publish nacked")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the reconnect loop and shuts down the channel and connection.
// Safe to call whether or not a connection was ever established.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	if !p.ready {
		return errNotConnected
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	if err := p.conn.Close(); err != nil {
		return err
	}
	p.ready = false
	return nil
}
