package protocol

import (
	"fmt"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/party"
)

// Error is a custom error for protocols which contains information about the responsible round in which it occurred,
// and the parties responsible.
type Error struct {
	// RoundNumber where the error occurred
	RoundNumber round.Number
	// Culprits is empty if the identity of the misbehaving party cannot be known.
	Culprits []party.ID
	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e Error) Error() string {
	if len(e.Culprits) == 0 {
		return fmt.Sprintf("protocol: round %d: %s", e.RoundNumber, e.Err)
	}
	return fmt.Sprintf("protocol: round %d: culprits %v: %s", e.RoundNumber, e.Culprits, e.Err)
}

// Unwrap implements errors.Wrapper.
func (e Error) Unwrap() error {
	return e.Err
}

// MessageError indicates that a message does not pass validation.
type MessageError string

const (
	ErrDuplicate          MessageError = "message was already handled"
	ErrUnknownSender      MessageError = "unknown sender"
	ErrNilMessage         MessageError = "message is nil"
	ErrWrongSSID          MessageError = "SSID mismatch"
	ErrWrongProtocolID    MessageError = "wrong protocol ID"
	ErrInvalidRoundNumber MessageError = "round number is invalid for this protocol"
	ErrFirstRound         MessageError = "no message expected in first round"
	ErrInvalidContent     MessageError = "content could not be decoded"
)

// Error implements error.
func (err MessageError) Error() string {
	return "message: " + string(err)
}
