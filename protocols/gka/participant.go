package gka

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/ladder"
	"github.com/ringpake/gka/pkg/pairwise"
	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/pool"
)

// Participant is the local state of one ring member during a run.
// It only ever holds its own secrets, and it is only modified by the functions of this file,
// in the order given by State.
type Participant struct {
	id    party.ID
	ring  party.IDSlice
	state State

	// leftKey is shared with ring.Left(id), rightKey with ring.Right(id).
	leftKey, rightKey *big.Int
	// xorKey = leftKey ⊕ rightKey
	xorKey *big.Int

	// commitmentKey is the xor key at commitment time.
	commitmentKey   *big.Int
	commitmentValue *big.Int
	commitment      hash.Commitment

	// xorKeys holds the revealed xor key of every party, in ring order.
	xorKeys []*big.Int

	ringClosed       bool
	commitmentsValid bool

	masterKey  *ladder.MasterKey
	sessionKey string
	sessionID  string
	accepted   bool
}

// NewParticipant returns the participant id of ring, in state StateInit.
func NewParticipant(id party.ID, ring party.IDSlice) (*Participant, error) {
	ring = party.NewIDSlice(ring)
	if err := ring.ValidateRing(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if !ring.Contains(id) {
		return nil, fmt.Errorf("%w: party %s is not in the ring", ErrMalformedInput, id)
	}
	return &Participant{
		id:    id,
		ring:  ring,
		state: StateInit,
	}, nil
}

// ID is the participant's position in the ring.
func (p *Participant) ID() party.ID { return p.id }

// Ring is the full ring membership.
func (p *Participant) Ring() party.IDSlice { return p.ring }

// State is the participant's current state.
func (p *Participant) State() State { return p.state }

// Accepted is true only once the session key was derived after every check passed.
func (p *Participant) Accepted() bool { return p.accepted }

func transition(p *Participant, next State) error {
	if !p.state.CanTransition(next) {
		return fmt.Errorf("gka: party %s cannot go from %s to %s", p.id, p.state, next)
	}
	p.state = next
	return nil
}

// abort moves p to StateAborted. It is a no-op for a terminal participant.
func abort(p *Participant) {
	if p.state.Terminal() {
		return
	}
	p.accepted = false
	p.state = StateAborted
}

// setSecrets stores the secrets shared with both neighbours and derives the xor key.
func setSecrets(p *Participant, secrets pairwise.Secrets) error {
	if err := secrets.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := transition(p, StatePairwiseDone); err != nil {
		return err
	}
	p.leftKey = secrets.LeftKey()
	p.rightKey = secrets.RightKey()
	p.xorKey = ladder.XOR(p.leftKey, p.rightKey)
	return nil
}

// sampleOpening returns a uniform value in [1, 2ᵇⁱᵗˢ).
func sampleOpening(random io.Reader, bits int) (*big.Int, error) {
	bound := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	for {
		v, err := rand.Int(random, bound)
		if err != nil {
			return nil, fmt.Errorf("gka: failed to sample opening value: %w", err)
		}
		if v.Sign() > 0 {
			return v, nil
		}
	}
}

// commit samples a fresh opening value and commits to the xor key.
func commit(p *Participant, random io.Reader, bits int) (hash.Commitment, error) {
	if p.state != StatePairwiseDone {
		return "", fmt.Errorf("gka: party %s cannot commit in state %s", p.id, p.state)
	}
	value, err := sampleOpening(random, bits)
	if err != nil {
		return "", err
	}
	if err = transition(p, StateCommitted); err != nil {
		return "", err
	}
	p.commitmentKey = new(big.Int).Set(p.xorKey)
	p.commitmentValue = value
	p.commitment = hash.Commit(p.commitmentKey, p.commitmentValue)
	return p.commitment, nil
}

// reveal returns the values that open p's commitment.
// The commitment phase must be closed on board, so that no xor key is revealed before every commitment is known.
func reveal(p *Participant, board *Board) (Reveal, error) {
	if p.state != StateCommitted {
		return Reveal{}, fmt.Errorf("gka: party %s cannot reveal in state %s", p.id, p.state)
	}
	if !board.CommitmentsSealed() {
		return Reveal{}, fmt.Errorf("gka: party %s cannot reveal before every commitment is published", p.id)
	}
	return Reveal{
		XORKey: new(big.Int).Set(p.commitmentKey),
		Value:  new(big.Int).Set(p.commitmentValue),
	}, nil
}

// verify runs the ring closure and commitment checks over every party on the sealed board.
// If both pass, it derives the master key and the session key and id, and accepts the run.
// Otherwise p is aborted and a *VerificationError is returned.
func verify(p *Participant, board *Board, pl *pool.Pool) (*Result, error) {
	xorKeys, err := board.XORKeys()
	if err != nil {
		abort(p)
		return nil, err
	}
	openings, err := board.Openings()
	if err != nil {
		abort(p)
		return nil, err
	}
	if err = transition(p, StateRevealed); err != nil {
		return nil, err
	}
	p.xorKeys = xorKeys

	p.ringClosed = ladder.Closure(xorKeys)

	opened := pl.Parallelize(len(openings), func(i int) interface{} {
		return hash.Open(openings[i])
	})
	var mismatched party.IDSlice
	for i, ok := range opened {
		if !ok.(bool) {
			mismatched = append(mismatched, p.ring[i])
		}
	}
	p.commitmentsValid = len(mismatched) == 0

	if !p.ringClosed || !p.commitmentsValid {
		abort(p)
		return nil, &VerificationError{
			RingClosed:       p.ringClosed,
			CommitmentsValid: p.commitmentsValid,
			Mismatched:       mismatched,
		}
	}

	masterKey, err := ladder.Derive(p.leftKey, xorKeys, p.id, p.ring)
	if err != nil {
		abort(p)
		return nil, err
	}
	if err = transition(p, StateKeyDerived); err != nil {
		return nil, err
	}
	p.masterKey = masterKey
	p.sessionKey = masterKey.SessionKey()
	p.sessionID = masterKey.SessionID()
	p.accepted = true

	return &Result{
		ID:               p.id,
		SessionKey:       p.sessionKey,
		SessionID:        p.sessionID,
		Accepted:         p.accepted,
		RingClosed:       p.ringClosed,
		CommitmentsValid: p.commitmentsValid,
		MasterKey:        p.masterKey,
	}, nil
}
