// Package broker abstracts the fire-and-forget message transport used
// for cross-service validation traffic. Production runs on NATS; tests
// run on the in-process bus.
package broker

import "errors"

// Common errors
var (
	ErrClosed       = errors.New("broker connection is closed")
	ErrEmptySubject = errors.New("subject must not be blank")
)

// Message is the envelope delivered to subscribers.
type Message struct {
	Subject string
	Data    []byte
}

// Handler processes a delivered message. Handlers run concurrently with
// each other; ordering is only guaranteed within a single subject for a
// single subscriber.
type Handler func(msg Message)

// Subscription is an active subject subscription.
type Subscription interface {
	// Unsubscribe stops delivery to this subscription's handler.
	Unsubscribe() error
}

// Bus publishes and subscribes to subjects.
type Bus interface {
	// Publish sends data to every current subscriber of subject.
	// Delivery is at-most-once with no broker-side retry.
	Publish(subject string, data []byte) error

	// Subscribe registers a handler for subject.
	Subscribe(subject string, handler Handler) (Subscription, error)

	// Close tears down the connection and all subscriptions.
	Close()
}
