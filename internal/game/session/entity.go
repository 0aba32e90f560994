// Package session provides live session tracking and map presence management
// for the realm core.
package session

import (
	"fmt"
	"sync"
)

// Outbox buffers outbound events for one connection, bridging the realm core
// to the transport's write loop. Pushes never block: a full buffer drops the
// event for that recipient only, so one slow client cannot stall a broadcast.
//
// An Outbox is created when the connection is established, before
// authentication, so its name is a transport-level label (connection id); it
// is adopted by the session registry once the connection authenticates.
type Outbox struct {
	name   string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox labeled with the given name.
//
// Precondition: name must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(name string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		name:   name,
		events: make(chan []byte, bufferSize),
	}
}

// Name returns the label the outbox was created with.
func (o *Outbox) Name() string {
	return o.name
}

// Push enqueues data for delivery.
//
// Postcondition: Data is enqueued, or an error if the outbox is closed or full.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.name)
	}
	select {
	case o.events <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.name)
	}
}

// Events returns the read-only events channel. The transport's write
// goroutine drains this channel.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the outbox as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
