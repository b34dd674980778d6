package round

import (
	"errors"

	"github.com/ringpake/gka/pkg/party"
)

var (
	ErrInvalidContent = errors.New("round: content is not the right type")
	ErrNilFields      = errors.New("round: message contained empty fields")
	ErrOutChanFull    = errors.New("round: out channel is full")
)

// Session represents the current execution of a round-based protocol.
// It embeds the current round, and provides additional information about the execution.
type Session interface {
	// Round is the current round being executed.
	Round
	// ProtocolID is an identifier for this protocol.
	ProtocolID() string
	// FinalRoundNumber is the number of rounds before the output round.
	FinalRoundNumber() Number
	// SSID the unique identifier for this protocol execution.
	SSID() []byte
	// SelfID is this party's ID.
	SelfID() party.ID
	// PartyIDs is a sorted slice of participating parties in this protocol.
	PartyIDs() party.IDSlice
	// OtherPartyIDs returns a sorted list of parties that does not contain SelfID.
	OtherPartyIDs() party.IDSlice
	// N returns the total number of parties participating in the protocol.
	N() int
}

type Round interface {
	// VerifyMessage handles an incoming Message and validates its content with regard to the protocol specification.
	// The content argument can be cast to the appropriate type for this round without error check.
	// In the first round, this function returns nil.
	// This function should not modify any saved state as it may be running concurrently.
	VerifyMessage(msg Message) error

	// StoreMessage should be called after VerifyMessage and should only store the appropriate fields from the
	// content.
	StoreMessage(msg Message) error

	// Finalize is called after the messages of all other parties have been stored for the current round.
	// This is the barrier of the round: nothing broadcast in the current round is used before it.
	// Messages for the next round are sent out through the out channel.
	// If a non-critical error occurs (like a failure to sample or send a message), the current round can be
	// returned so that the caller may try to finalize again.
	//
	// In the last round, Finalize returns the result of Helper.ResultRound or Helper.AbortRound.
	Finalize(out chan<- *Message) (Session, error)

	// MessageContent returns an uninitialized Content for this round.
	//
	// The first round of a protocol should return nil.
	MessageContent() Content

	// Number returns the index of the round.
	Number() Number
}
