package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HexDigestLength is the length of a hex encoded SHA-256 digest.
const HexDigestLength = 2 * sha256.Size

// HexDigest returns the lowercase hex encoding of SHA-256(b).
func HexDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Commitment is a hex encoded SHA-256 digest binding a key to a secret opening value.
type Commitment string

// Validate checks that the commitment is a lowercase hex SHA-256 digest.
func (c Commitment) Validate() error {
	if l := len(c); l != HexDigestLength {
		return fmt.Errorf("commitment: incorrect length (got %d, expected %d)", l, HexDigestLength)
	}
	for _, r := range c {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("commitment: invalid character %q", r)
		}
	}
	return nil
}

// Commit returns SHA-256(dec(key) || dec(value)) where dec is the base 10 representation.
//
// The two decimal strings are concatenated without any separator, so that
// (12, 345) and (123, 45) commit to the same digest.
// This format is kept as is since changing it changes every commitment.
func Commit(key, value *big.Int) Commitment {
	return Commitment(HexDigest([]byte(key.String() + value.String())))
}

// Opening is a commitment together with the key and value it is claimed to bind.
type Opening struct {
	Commitment Commitment
	Key        *big.Int
	Value      *big.Int
}

// Open returns true if o.Commitment = Commit(o.Key, o.Value).
// A malformed opening (missing key or value, negative numbers, or an invalid commitment) never opens.
func Open(o Opening) bool {
	if o.Key == nil || o.Value == nil || o.Key.Sign() < 0 || o.Value.Sign() < 0 {
		return false
	}
	if err := o.Commitment.Validate(); err != nil {
		return false
	}
	computed := Commit(o.Key, o.Value)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(o.Commitment)) == 1
}
