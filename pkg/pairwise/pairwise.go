// Package pairwise provides the pairwise secrets a ring needs before a group key agreement.
//
// The secrets come from a two-party PAKE run between every pair of ring neighbours. The PAKE
// itself is abstracted as an Oracle; this package only arranges the exchanges along the ring and
// hands each party its left and right secret.
package pairwise

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ringpake/gka/pkg/party"
	"golang.org/x/sync/errgroup"
)

// Oracle runs a two-party PAKE between a and b and returns the shared secret.
// The result must not depend on the order of a and b.
type Oracle interface {
	Exchange(ctx context.Context, a, b party.ID) ([]byte, error)
}

// Secrets holds the secrets a party shares with its two ring neighbours.
type Secrets struct {
	// Left is shared with the party before this one in the ring.
	Left []byte
	// Right is shared with the party after this one in the ring.
	Right []byte
}

// Validate checks that both secrets are present and that they have the same length.
func (s Secrets) Validate() error {
	if len(s.Left) == 0 || len(s.Right) == 0 {
		return errors.New("pairwise: empty secret")
	}
	if len(s.Left) != len(s.Right) {
		return fmt.Errorf("pairwise: secrets have different lengths (%d and %d)", len(s.Left), len(s.Right))
	}
	return nil
}

// LeftKey returns the left secret as a big-endian unsigned integer.
func (s Secrets) LeftKey() *big.Int {
	return new(big.Int).SetBytes(s.Left)
}

// RightKey returns the right secret as a big-endian unsigned integer.
func (s Secrets) RightKey() *big.Int {
	return new(big.Int).SetBytes(s.Right)
}

// Ring runs one exchange per ring edge (i-1, i), concurrently, and returns the secrets of every party.
//
// The secret of edge (i-1, i) is the left secret of i and the right secret of i-1.
func Ring(ctx context.Context, ring party.IDSlice, oracle Oracle) (map[party.ID]Secrets, error) {
	if err := ring.ValidateRing(); err != nil {
		return nil, err
	}

	var (
		mtx   sync.Mutex
		edges = make(map[party.ID][]byte, len(ring))
	)
	errGroup, ctx := errgroup.WithContext(ctx)
	for _, id := range ring {
		id := id
		left := ring.Left(id)
		errGroup.Go(func() error {
			secret, err := oracle.Exchange(ctx, left, id)
			if err != nil {
				return fmt.Errorf("pairwise: exchange between %s and %s: %w", left, id, err)
			}
			if len(secret) == 0 {
				return fmt.Errorf("pairwise: exchange between %s and %s returned an empty secret", left, id)
			}
			mtx.Lock()
			edges[id] = secret
			mtx.Unlock()
			return nil
		})
	}
	if err := errGroup.Wait(); err != nil {
		return nil, err
	}

	secrets := make(map[party.ID]Secrets, len(ring))
	for _, id := range ring {
		s := Secrets{
			Left:  edges[id],
			Right: edges[ring.Right(id)],
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("pairwise: party %s: %w", id, err)
		}
		secrets[id] = s
	}
	return secrets, nil
}
