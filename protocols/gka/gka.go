// Package gka implements a group key agreement for a ring of parties, each sharing a PAKE secret with
// its two neighbours.
//
// Every party publishes the xor of its two secrets. The published values let any party recover every
// pairwise secret of the ring (see package ladder), from which the group key is hashed.
// To prevent the last party to speak from choosing its value after seeing the others, each party first
// commits to its xor key, and only reveals it once every commitment is known:
//
//	round 1: commit to the xor key with a fresh random opening value
//	round 2: once all commitments are in, reveal the xor key and opening value
//	round 3: once all reveals are in, check that the xor keys cancel around the ring and that every
//	         reveal opens its commitment, then derive the session key and id
//
// A run either succeeds for every honest party with the same key, or aborts.
package gka

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/config"
	"github.com/ringpake/gka/pkg/pairwise"
	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/pool"
	"github.com/ringpake/gka/pkg/protocol"
)

const (
	// ProtocolID identifies the messages of this protocol.
	ProtocolID = "gka/ring"
	// protocolRounds is the number of rounds before the output.
	protocolRounds round.Number = 3
)

// Options tunes a run. The zero value is usable.
type Options struct {
	// Rand is the source of the commitment opening values. Defaults to crypto/rand.
	// It must be safe for concurrent use if it is shared between parties.
	Rand io.Reader
	// CommitmentBits is the bit length of the opening values. Defaults to config.DefaultCommitmentBits.
	CommitmentBits int
	// Pool parallelizes the opening checks. May be nil.
	Pool *pool.Pool
}

// Start returns a protocol.StartFunc for selfID, holding secrets with its neighbours in ring.
// The ring must be exactly the ids 0, …, n-1 with n >= 3.
func Start(selfID party.ID, ring []party.ID, secrets pairwise.Secrets, opts Options) protocol.StartFunc {
	return func(sessionID []byte) (round.Session, error) {
		opts := opts
		if opts.Rand == nil {
			opts.Rand = rand.Reader
		}
		if opts.CommitmentBits == 0 {
			opts.CommitmentBits = config.DefaultCommitmentBits
		}
		if opts.CommitmentBits < config.MinCommitmentBits {
			return nil, fmt.Errorf("gka: %w: commitment bits must be at least %d, got %d",
				ErrMalformedInput, config.MinCommitmentBits, opts.CommitmentBits)
		}

		p, err := NewParticipant(selfID, ring)
		if err != nil {
			return nil, err
		}
		if err = setSecrets(p, secrets); err != nil {
			return nil, err
		}

		helper, err := round.NewSession(round.Info{
			ProtocolID:       ProtocolID,
			FinalRoundNumber: protocolRounds,
			SelfID:           selfID,
			PartyIDs:         p.Ring(),
		}, sessionID, opts.Pool)
		if err != nil {
			return nil, fmt.Errorf("gka: %w", err)
		}

		return &round1{
			Helper:         helper,
			participant:    p,
			board:          NewBoard(p.Ring()),
			rand:           opts.Rand,
			commitmentBits: opts.CommitmentBits,
		}, nil
	}
}
