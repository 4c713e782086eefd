// Package eventbus fans engine events out to in-process subscribers such as
// the history log.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	ps "github.com/simonfxr/pubsub"
)

// Event type constants.
const (
	EventValueChanged = "ValueChanged"
	EventRejected     = "Rejected"
	EventTransport    = "Transport"
	EventShutdown     = "Shutdown"
)

// allTopic is the single topic used for all events.
const allTopic = "events"

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 64

// Event is what subscribers receive.
type Event struct {
	ID      string  `json:"id"`
	TS      int64   `json:"ts"`
	Element string  `json:"element,omitempty"`
	Type    string  `json:"type"`
	Data    Payload `json:"data,omitempty"`
}

// Payload is the typed body of an event. Its Type names the event.
type Payload interface {
	Type() string
}

// ValueChange is published when an element accepts an update.
type ValueChange struct {
	Percent int     `json:"percent"`
	Value   float64 `json:"value"`
}

func (ValueChange) Type() string { return EventValueChanged }

// Rejection is published when an update is discarded.
type Rejection struct {
	Kind  string `json:"kind"`
	Input string `json:"input"`
	Error string `json:"error"`
}

func (Rejection) Type() string { return EventRejected }

// TransportInfo is published once the update channel is chosen.
type TransportInfo struct {
	Mode string `json:"mode"`
	Addr string `json:"addr"`
}

func (TransportInfo) Type() string { return EventTransport }

// Shutdown is published when the engine releases its resources.
type Shutdown struct{}

func (Shutdown) Type() string { return EventShutdown }

// Bus is an in-memory pub-sub event bus.
// It is safe for concurrent use from multiple goroutines.
type Bus struct {
	bus *ps.Bus
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{bus: ps.NewBus()}
}

// Publish stamps p and hands it to every current subscriber. Slow
// subscribers have events dropped rather than blocking the publisher.
func (b *Bus) Publish(element string, p Payload) {
	e := &Event{
		ID:      uuid.New().String(),
		TS:      time.Now().Unix(),
		Element: element,
		Type:    p.Type(),
	}
	if _, empty := p.(Shutdown); !empty {
		e.Data = p
	}
	b.bus.Publish(allTopic, e)
}

// Subscribe returns a read channel that receives *Event values and a cancel
// function. Calling cancel removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan *Event, func()) {
	ch := make(chan *Event, subscriberBuffer)
	sub := b.bus.SubscribeChan(allTopic, ch, ps.CloseOnUnsubscribe)
	cancel := func() {
		b.bus.Unsubscribe(sub)
	}
	return ch, cancel
}

// MarshalEvent encodes an event as a JSON line (with trailing newline).
func MarshalEvent(e *Event) []byte {
	data, _ := json.Marshal(e)
	return append(data, '\n')
}
