package main

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// Notification tells a user that one of their expenses was recorded.
type Notification struct {
	UserID      int64   `json:"user_id"`
	ExpenseID   int64   `json:"expense_id"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Date        string  `json:"date"`
}

type NotificationPublisher interface {
	Publish(notification Notification) error
}

// RabbitMQPublisher is an implementation of NotificationPublisher using RabbitMQ
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Durable queue so queued notifications survive broker restarts.
	queue, err := ch.QueueDeclare(
		"expense_notifications",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// Publish sends a notification to the RabbitMQ queue.
func (p *RabbitMQPublisher) Publish(notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return p.channel.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close releases RabbitMQ resources.
func (p *RabbitMQPublisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// LogPublisher only logs notifications. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(notification Notification) error {
	log.Printf("notification for user %d: expense %d recorded", notification.UserID, notification.ExpenseID)
	return nil
}

// Notifier decouples notification delivery from the request cycle. Dispatch
// hands the message to a buffered channel and returns immediately; a single
// background goroutine drains the channel into the publisher. A publish
// failure is logged and never reaches the caller.
type Notifier struct {
	publisher NotificationPublisher
	queue     chan Notification
	done      chan struct{}
	closeOnce sync.Once
}

func NewNotifier(publisher NotificationPublisher, buffer int) *Notifier {
	n := &Notifier{
		publisher: publisher,
		queue:     make(chan Notification, buffer),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	for notification := range n.queue {
		if err := n.publisher.Publish(notification); err != nil {
			log.Printf("failed to publish notification: %v", err)
		}
	}
	close(n.done)
}

// Dispatch queues a notification without blocking. When the buffer is full
// the notification is dropped; creating the expense must not wait on the
// broker.
func (n *Notifier) Dispatch(notification Notification) {
	select {
	case n.queue <- notification:
	default:
		log.Printf("notification queue full, dropping notification for user %d", notification.UserID)
	}
}

// Close stops accepting notifications, waits for the queued ones to be
// published and shuts the worker down.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.queue)
		<-n.done
	})
}
