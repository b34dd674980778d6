package gka

import (
	"io"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/party"
)

var _ round.Round = (*round1)(nil)

type round1 struct {
	*round.Helper

	participant *Participant
	board       *Board

	rand           io.Reader
	commitmentBits int
}

// VerifyMessage implements round.Round.
func (round1) VerifyMessage(round.Message) error { return nil }

// StoreMessage implements round.Round.
func (round1) StoreMessage(round.Message) error { return nil }

// Finalize implements round.Round
//
// - sample the opening value and commit to the xor key
// - broadcast the commitment.
func (r *round1) Finalize(out chan<- *round.Message) (round.Session, error) {
	commitment, err := commit(r.participant, r.rand, r.commitmentBits)
	if err != nil {
		abort(r.participant)
		return r.AbortRound(err), nil
	}

	if err = r.BroadcastMessage(out, &broadcast2{Commitment: commitment}); err != nil {
		return r, err
	}

	return &round2{
		round1: r,
		commitments: map[party.ID]hash.Commitment{
			r.SelfID(): commitment,
		},
	}, nil
}

// MessageContent implements round.Round.
func (round1) MessageContent() round.Content { return nil }

// Number implements round.Round.
func (round1) Number() round.Number { return 1 }
