package gka

import (
	"fmt"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/party"
)

var _ round.Round = (*round2)(nil)

type round2 struct {
	*round1

	// commitments holds the commitment of every party, ourselves included.
	commitments map[party.ID]hash.Commitment
}

type broadcast2 struct {
	// Commitment = SHA-256(xor key ‖ opening value)
	Commitment hash.Commitment
}

// VerifyMessage implements round.Round.
//
// - check that the commitment is a well formed digest.
func (r *round2) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast2)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	if err := body.Commitment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}

// StoreMessage implements round.Round.
func (r *round2) StoreMessage(msg round.Message) error {
	from, body := msg.From, msg.Content.(*broadcast2)
	r.commitments[from] = body.Commitment
	return nil
}

// Finalize implements round.Round
//
// - seal the commitment phase, now that every commitment is known
// - broadcast the xor key and opening value.
func (r *round2) Finalize(out chan<- *round.Message) (round.Session, error) {
	board, err := r.board.WithCommitments(r.commitments)
	if err != nil {
		abort(r.participant)
		return r.AbortRound(err, r.missing()...), nil
	}

	rev, err := reveal(r.participant, board)
	if err != nil {
		abort(r.participant)
		return r.AbortRound(err), nil
	}

	if err = r.BroadcastMessage(out, &broadcast3{
		XORKey: rev.XORKey.Bytes(),
		Value:  rev.Value.Bytes(),
	}); err != nil {
		return r, err
	}

	return &round3{
		round2: r,
		board:  board,
		reveals: map[party.ID]Reveal{
			r.SelfID(): rev,
		},
	}, nil
}

func (r *round2) missing() []party.ID {
	var missing []party.ID
	for _, id := range r.PartyIDs() {
		if _, ok := r.commitments[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// RoundNumber implements round.Content.
func (broadcast2) RoundNumber() round.Number { return 2 }

// MessageContent implements round.Round.
func (round2) MessageContent() round.Content { return &broadcast2{} }

// Number implements round.Round.
func (round2) Number() round.Number { return 2 }
