package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/expedition/internal/party"
)

// subscriberBuffer is how many events a stream may lag before new ones are
// dropped for it.
const subscriberBuffer = 16

// Broker is an in-process pub/sub for party events, keyed by party ID. It
// feeds both the SSE and the WebSocket streams.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

var _ party.Events = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given party.
func (b *Broker) Subscribe(partyID string) chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	if b.subs[partyID] == nil {
		b.subs[partyID] = make(map[chan []byte]struct{})
	}
	b.subs[partyID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the party's subscribers.
func (b *Broker) Unsubscribe(partyID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[partyID], ch)
	if len(b.subs[partyID]) == 0 {
		delete(b.subs, partyID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given party.
func (b *Broker) Publish(partyID string, event party.Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[partyID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}

// Subscribers returns how many streams follow partyID.
func (b *Broker) Subscribers(partyID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[partyID])
}
