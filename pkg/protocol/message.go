package protocol

import (
	"fmt"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/party"
)

// Message is the envelope of a broadcast message exchanged between handlers.
// It must be delivered reliably to every party other than the sender.
type Message struct {
	// SSID is a byte string which uniquely identifies the session this message belongs to.
	SSID []byte
	// From is the party.ID of the sender
	From party.ID
	// Protocol identifies the protocol this message belongs to
	Protocol string
	// RoundNumber is the index of the round this message belongs to
	RoundNumber round.Number
	// Data is the actual content consumed by the round.
	Data []byte
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("message: round %d, from: %s, protocol: %s", m.RoundNumber, m.From, m.Protocol)
}

// IsFor returns true if the message is intended for the designated party.
func (m Message) IsFor(id party.ID) bool {
	return m.From != id
}
