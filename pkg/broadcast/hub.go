// Package broadcast provides an in-process reliable broadcast channel between the parties of a ring.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/protocol"
)

var (
	ErrUnknownSender = errors.New("broadcast: unknown sender")
	ErrClosed        = errors.New("broadcast: hub closed")
)

type mailbox struct {
	messages chan *protocol.Message
	// gone is closed when the party leaves the hub.
	gone chan struct{}
}

// Hub delivers every message sent by a party to all other parties, in the order it was sent.
// Parties that left the hub no longer receive anything.
type Hub struct {
	parties    party.IDSlice
	mailboxes  map[party.ID]*mailbox
	done       chan struct{}
	closedChan chan *protocol.Message
	mtx        sync.Mutex
}

// NewHub returns a Hub for the given parties.
// Each party can buffer up to `buffer` incoming messages before senders block.
// A non-positive buffer defaults to two messages per party.
func NewHub(parties party.IDSlice, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 2 * len(parties)
	}
	closed := make(chan *protocol.Message)
	close(closed)
	mailboxes := make(map[party.ID]*mailbox, len(parties))
	for _, id := range parties {
		mailboxes[id] = &mailbox{
			messages: make(chan *protocol.Message, buffer),
			gone:     make(chan struct{}),
		}
	}
	return &Hub{
		parties:    party.NewIDSlice(parties),
		mailboxes:  mailboxes,
		done:       make(chan struct{}),
		closedChan: closed,
	}
}

// Next returns the channel of incoming messages for id.
// For a party that is not in the hub, the returned channel is closed.
func (h *Hub) Next(id party.ID) <-chan *protocol.Message {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	mb, ok := h.mailboxes[id]
	if !ok {
		return h.closedChan
	}
	return mb.messages
}

// Send delivers msg to every party other than its sender that is still in the hub.
// It blocks while a receiving buffer is full, until ctx is done or the hub is closed.
func (h *Hub) Send(ctx context.Context, msg *protocol.Message) error {
	if msg == nil {
		return protocol.ErrNilMessage
	}
	if !h.parties.Contains(msg.From) {
		return fmt.Errorf("%w: %s", ErrUnknownSender, msg.From)
	}
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	for _, id := range h.parties {
		if !msg.IsFor(id) {
			continue
		}
		h.mtx.Lock()
		mb, ok := h.mailboxes[id]
		h.mtx.Unlock()
		if !ok {
			continue
		}
		select {
		case mb.messages <- msg:
		case <-mb.gone:
		case <-h.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Leave removes id from the hub. Messages sent afterwards are not delivered to it.
func (h *Hub) Leave(id party.ID) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if mb, ok := h.mailboxes[id]; ok {
		close(mb.gone)
		delete(h.mailboxes, id)
	}
}

// Close stops all deliveries. Pending and future calls to Send return ErrClosed.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
