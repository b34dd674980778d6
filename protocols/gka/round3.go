package gka

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/party"
)

var _ round.Round = (*round3)(nil)

type round3 struct {
	*round2

	// board has the commitment phase sealed. It shadows round1.board.
	board *Board
	// reveals holds the xor key and opening value of every party, ourselves included.
	reveals map[party.ID]Reveal
}

type broadcast3 struct {
	// XORKey is the big-endian encoding of the sender's xor key. It is empty when the key is 0.
	XORKey []byte
	// Value is the big-endian encoding of the opening value of the sender's commitment.
	Value []byte
}

// VerifyMessage implements round.Round.
//
// - check that the opening value is present.
func (r *round3) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast3)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	if len(body.Value) == 0 || new(big.Int).SetBytes(body.Value).Sign() == 0 {
		return fmt.Errorf("%w: empty opening value", ErrMalformedInput)
	}
	return nil
}

// StoreMessage implements round.Round.
func (r *round3) StoreMessage(msg round.Message) error {
	from, body := msg.From, msg.Content.(*broadcast3)
	r.reveals[from] = Reveal{
		XORKey: new(big.Int).SetBytes(body.XORKey),
		Value:  new(big.Int).SetBytes(body.Value),
	}
	return nil
}

// Finalize implements round.Round
//
// - seal the reveal phase, now that every reveal is known
// - check that the xor keys cancel around the ring
// - check that every reveal opens the sender's commitment
// - derive the master key, session key and session id.
func (r *round3) Finalize(chan<- *round.Message) (round.Session, error) {
	board, err := r.board.WithReveals(r.reveals)
	if err != nil {
		abort(r.participant)
		return r.AbortRound(err), nil
	}

	result, err := verify(r.participant, board, r.Pool)
	if err != nil {
		var verificationErr *VerificationError
		if errors.As(err, &verificationErr) {
			return r.AbortRound(err, verificationErr.Mismatched...), nil
		}
		return r.AbortRound(err), nil
	}
	return r.ResultRound(result), nil
}

// RoundNumber implements round.Content.
func (broadcast3) RoundNumber() round.Number { return 3 }

// MessageContent implements round.Round.
func (round3) MessageContent() round.Content { return &broadcast3{} }

// Number implements round.Round.
func (round3) Number() round.Number { return 3 }
