// Package ladder implements the XOR ladder used to turn pairwise ring secrets into a group key.
//
// In a ring of n parties, party i shares K_i with its left neighbour i-1 and K_{i+1} with its
// right neighbour i+1, and publishes X_i = K_i ⊕ K_{i+1}. Since every K appears in exactly two
// consecutive X values, the X values cancel around the ring, and any party holding one K can
// walk the ring to recover all of them:
//
//	K_j = K_i ⊕ X_{i-1} ⊕ X_{i-2} ⊕ … ⊕ X_j
package ladder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/party"
)

const (
	sessionKeySuffix = "0"
	sessionIDSuffix  = "1"
)

// XOR returns a ⊕ b as a new big.Int.
func XOR(a, b *big.Int) *big.Int {
	return new(big.Int).Xor(a, b)
}

// XORChain returns the left secret of party j, as seen from party self which holds the left
// secret key. It XORs the (self - j) mod n published values xorKeys[self-1], xorKeys[self-2], …,
// xorKeys[j] into key. When j == self, this is key itself.
func XORChain(key *big.Int, xorKeys []*big.Int, self, j int) *big.Int {
	n := len(xorKeys)
	result := new(big.Int).Set(key)
	count := mod(self-j, n)
	for i := 0; i < count; i++ {
		result.Xor(result, xorKeys[mod(self-i-1, n)])
	}
	return result
}

// Closure returns true if the XOR of all xorKeys is 0, which holds for any set of
// honestly computed values since each pairwise secret appears exactly twice.
func Closure(xorKeys []*big.Int) bool {
	acc := new(big.Int)
	for _, x := range xorKeys {
		acc.Xor(acc, x)
	}
	return acc.Sign() == 0
}

// MasterKey is the ordered list of every left secret K_0, …, K_{n-1} followed by the ring itself.
// The ring is part of the key so that a permuted ring with the same secrets yields a different key.
type MasterKey struct {
	Secrets []*big.Int
	Ring    party.IDSlice
}

// Derive reconstructs the master key from the party's own left secret and the published
// ring-ordered xorKeys.
func Derive(leftKey *big.Int, xorKeys []*big.Int, self party.ID, ring party.IDSlice) (*MasterKey, error) {
	if leftKey == nil {
		return nil, errors.New("ladder: nil left key")
	}
	if len(xorKeys) != len(ring) {
		return nil, fmt.Errorf("ladder: got %d xor keys for a ring of %d", len(xorKeys), len(ring))
	}
	for j, x := range xorKeys {
		if x == nil {
			return nil, fmt.Errorf("ladder: xor key %d is nil", j)
		}
	}
	selfIdx := ring.GetIndex(self)
	if selfIdx < 0 {
		return nil, fmt.Errorf("ladder: party %s is not in the ring", self)
	}

	secrets := make([]*big.Int, len(ring))
	for j := range ring {
		secrets[j] = XORChain(leftKey, xorKeys, selfIdx, j)
	}
	return &MasterKey{
		Secrets: secrets,
		Ring:    ring.Copy(),
	}, nil
}

// String returns the concatenation of the base 10 representation of every element of the master key.
func (mk *MasterKey) String() string {
	var b strings.Builder
	for _, k := range mk.Secrets {
		b.WriteString(k.String())
	}
	for _, id := range mk.Ring {
		b.WriteString(id.String())
	}
	return b.String()
}

// SessionKey returns SHA-256(mk || "0") in hex.
func (mk *MasterKey) SessionKey() string {
	return hash.HexDigest([]byte(mk.String() + sessionKeySuffix))
}

// SessionID returns SHA-256(mk || "1") in hex.
func (mk *MasterKey) SessionID() string {
	return hash.HexDigest([]byte(mk.String() + sessionIDSuffix))
}

// Equal returns true if both master keys hold the same secrets for the same ring.
func (mk *MasterKey) Equal(other *MasterKey) bool {
	if mk == nil || other == nil {
		return mk == other
	}
	if len(mk.Secrets) != len(other.Secrets) || !mk.Ring.Equal(other.Ring) {
		return false
	}
	for i := range mk.Secrets {
		if mk.Secrets[i].Cmp(other.Secrets[i]) != 0 {
			return false
		}
	}
	return true
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
