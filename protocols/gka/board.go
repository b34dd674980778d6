package gka

import (
	"fmt"
	"math/big"

	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/party"
)

// Reveal is what a party publishes once every commitment is known.
type Reveal struct {
	XORKey *big.Int
	Value  *big.Int
}

// Board is an immutable snapshot of everything broadcast so far in a run.
//
// Each phase is sealed at once with an entry for every party: WithCommitments and WithReveals
// return a new Board and leave the receiver unchanged. Revealed values can only be read from a board
// whose reveal phase is sealed, and reveals can only be added after the commitment phase.
type Board struct {
	ring        party.IDSlice
	commitments map[party.ID]hash.Commitment
	reveals     map[party.ID]Reveal
}

// NewBoard returns an empty board for ring.
func NewBoard(ring party.IDSlice) *Board {
	return &Board{ring: party.NewIDSlice(ring)}
}

// Ring returns the ring the board was created for.
func (b *Board) Ring() party.IDSlice { return b.ring }

// CommitmentsSealed returns true once the commitment of every party is on the board.
func (b *Board) CommitmentsSealed() bool { return b.commitments != nil }

// RevealsSealed returns true once the reveal of every party is on the board.
func (b *Board) RevealsSealed() bool { return b.reveals != nil }

// WithCommitments closes the commitment phase.
// It fails with ErrMissingParticipant if a party of the ring has no commitment.
func (b *Board) WithCommitments(commitments map[party.ID]hash.Commitment) (*Board, error) {
	if b.CommitmentsSealed() {
		return nil, fmt.Errorf("gka: commitment phase already sealed")
	}
	sealed := make(map[party.ID]hash.Commitment, len(b.ring))
	for _, id := range b.ring {
		c, ok := commitments[id]
		if !ok {
			return nil, fmt.Errorf("%w: no commitment from party %s", ErrMissingParticipant, id)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: party %s: %v", ErrMalformedInput, id, err)
		}
		sealed[id] = c
	}
	return &Board{
		ring:        b.ring,
		commitments: sealed,
	}, nil
}

// WithReveals closes the reveal phase.
// It fails if the commitment phase is still open, and with ErrMissingParticipant if a party of the ring has
// not revealed.
func (b *Board) WithReveals(reveals map[party.ID]Reveal) (*Board, error) {
	if !b.CommitmentsSealed() {
		return nil, fmt.Errorf("gka: reveals cannot be published before the commitment phase is sealed")
	}
	if b.RevealsSealed() {
		return nil, fmt.Errorf("gka: reveal phase already sealed")
	}
	sealed := make(map[party.ID]Reveal, len(b.ring))
	for _, id := range b.ring {
		r, ok := reveals[id]
		if !ok {
			return nil, fmt.Errorf("%w: no reveal from party %s", ErrMissingParticipant, id)
		}
		if r.XORKey == nil || r.Value == nil || r.XORKey.Sign() < 0 || r.Value.Sign() <= 0 {
			return nil, fmt.Errorf("%w: incomplete reveal from party %s", ErrMalformedInput, id)
		}
		sealed[id] = Reveal{
			XORKey: new(big.Int).Set(r.XORKey),
			Value:  new(big.Int).Set(r.Value),
		}
	}
	return &Board{
		ring:        b.ring,
		commitments: b.commitments,
		reveals:     sealed,
	}, nil
}

// Commitment returns the commitment published by id.
func (b *Board) Commitment(id party.ID) (hash.Commitment, error) {
	if !b.CommitmentsSealed() {
		return "", fmt.Errorf("gka: commitment phase is not sealed")
	}
	c, ok := b.commitments[id]
	if !ok {
		return "", fmt.Errorf("%w: party %s", ErrMissingParticipant, id)
	}
	return c, nil
}

// XORKeys returns a copy of the revealed xor keys in ring order.
func (b *Board) XORKeys() ([]*big.Int, error) {
	if !b.RevealsSealed() {
		return nil, fmt.Errorf("gka: reveal phase is not sealed")
	}
	keys := make([]*big.Int, len(b.ring))
	for i, id := range b.ring {
		keys[i] = new(big.Int).Set(b.reveals[id].XORKey)
	}
	return keys, nil
}

// Openings returns, in ring order, each party's commitment together with the values it revealed.
func (b *Board) Openings() ([]hash.Opening, error) {
	if !b.RevealsSealed() {
		return nil, fmt.Errorf("gka: reveal phase is not sealed")
	}
	openings := make([]hash.Opening, len(b.ring))
	for i, id := range b.ring {
		r := b.reveals[id]
		openings[i] = hash.Opening{
			Commitment: b.commitments[id],
			Key:        new(big.Int).Set(r.XORKey),
			Value:      new(big.Int).Set(r.Value),
		}
	}
	return openings, nil
}
