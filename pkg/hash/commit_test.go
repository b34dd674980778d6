package hash

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexDigest(t *testing.T) {
	// SHA-256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HexDigest([]byte("abc")))
}

func TestCommit_Format(t *testing.T) {
	c := Commit(big.NewInt(12), big.NewInt(5))
	assert.Equal(t, Commitment(HexDigest([]byte("125"))), c)
	assert.NoError(t, c.Validate())

	// no separator between key and value
	assert.Equal(t, Commit(big.NewInt(12), big.NewInt(345)), Commit(big.NewInt(123), big.NewInt(45)))
}

func TestOpen(t *testing.T) {
	limit := new(big.Int).Lsh(big.NewInt(1), 256)
	for i := 0; i < 20; i++ {
		key, err := rand.Int(rand.Reader, limit)
		require.NoError(t, err)
		value, err := rand.Int(rand.Reader, limit)
		require.NoError(t, err)

		c := Commit(key, value)
		assert.True(t, Open(Opening{Commitment: c, Key: key, Value: value}))

		// flip a single bit in each of the low bytes of the key and the value
		for bit := 0; bit < 64; bit += 8 {
			otherKey := new(big.Int).SetBit(key, bit, key.Bit(bit)^1)
			assert.False(t, Open(Opening{Commitment: c, Key: otherKey, Value: value}))
			otherValue := new(big.Int).SetBit(value, bit, value.Bit(bit)^1)
			assert.False(t, Open(Opening{Commitment: c, Key: key, Value: otherValue}))
		}
	}
}

func TestOpen_Malformed(t *testing.T) {
	key, value := big.NewInt(12), big.NewInt(99)
	c := Commit(key, value)

	tests := []struct {
		name    string
		opening Opening
	}{
		{"nil key", Opening{Commitment: c, Value: value}},
		{"nil value", Opening{Commitment: c, Key: key}},
		{"negative key", Opening{Commitment: c, Key: big.NewInt(-12), Value: value}},
		{"empty commitment", Opening{Key: key, Value: value}},
		{"short commitment", Opening{Commitment: c[:10], Key: key, Value: value}},
		{"uppercase commitment", Opening{Commitment: Commitment("A" + string(c[1:])), Key: key, Value: value}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Open(tt.opening))
		})
	}
}
