package round

import "github.com/ringpake/gka/pkg/party"

// Content represents the body of a message broadcast by a round during finalization.
type Content interface {
	RoundNumber() Number
}

// Message is a broadcast message as seen by a round: every message is delivered to all other parties.
type Message struct {
	From    party.ID
	Content Content
}
