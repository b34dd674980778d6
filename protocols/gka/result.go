package gka

import (
	"github.com/ringpake/gka/pkg/ladder"
	"github.com/ringpake/gka/pkg/party"
)

// Result is the output of a successful run for one participant.
// Every participant of the same run obtains the same SessionKey, SessionID and MasterKey.
type Result struct {
	ID party.ID
	// SessionKey is the hex encoded group key.
	SessionKey string
	// SessionID is the hex encoded identifier of the session.
	SessionID string

	Accepted         bool
	RingClosed       bool
	CommitmentsValid bool

	MasterKey *ladder.MasterKey
}
