// Package test contains fixtures and a lock-step runner for protocol tests.
package test

import (
	"io"
	"math/big"

	"github.com/ringpake/gka/pkg/pairwise"
	"github.com/ringpake/gka/pkg/party"
)

// PartyIDs returns the ring 0, …, n-1.
func PartyIDs(n int) party.IDSlice {
	return party.Ring(n)
}

// RingSecrets hands party i the left secret keys[i] and the right secret keys[i+1 mod n],
// encoded big-endian on size bytes.
func RingSecrets(keys []*big.Int, size int) map[party.ID]pairwise.Secrets {
	n := len(keys)
	secrets := make(map[party.ID]pairwise.Secrets, n)
	for i := range keys {
		secrets[party.ID(i)] = pairwise.Secrets{
			Left:  keys[i].FillBytes(make([]byte, size)),
			Right: keys[(i+1)%n].FillBytes(make([]byte, size)),
		}
	}
	return secrets
}

// RandomSecrets draws one size byte secret per ring edge from rand.
func RandomSecrets(n, size int, rand io.Reader) (map[party.ID]pairwise.Secrets, error) {
	keys := make([]*big.Int, n)
	buf := make([]byte, size)
	for i := range keys {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, err
		}
		keys[i] = new(big.Int).SetBytes(buf)
	}
	return RingSecrets(keys, size), nil
}
