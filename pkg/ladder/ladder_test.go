package ladder

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ringpake/gka/pkg/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ringXORKeys returns X_i = K_i ⊕ K_{i+1} for every i.
func ringXORKeys(secrets []*big.Int) []*big.Int {
	n := len(secrets)
	xorKeys := make([]*big.Int, n)
	for i := range secrets {
		xorKeys[i] = XOR(secrets[i], secrets[(i+1)%n])
	}
	return xorKeys
}

func randomSecrets(t *testing.T, n int) []*big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 256)
	secrets := make([]*big.Int, n)
	for i := range secrets {
		s, err := rand.Int(rand.Reader, limit)
		require.NoError(t, err)
		secrets[i] = s
	}
	return secrets
}

func TestXORChain_Telescoping(t *testing.T) {
	K := []*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(12)}
	xorKeys := ringXORKeys(K)
	assert.Equal(t, []*big.Int{big.NewInt(12), big.NewInt(5), big.NewInt(9)}, xorKeys)

	assert.Equal(t, K[0], XORChain(K[1], xorKeys, 1, 0))
	assert.Equal(t, K[1], XORChain(K[1], xorKeys, 1, 1))
	assert.Equal(t, K[2], XORChain(K[1], xorKeys, 1, 2))

	for self := range K {
		for j := range K {
			assert.Equal(t, K[j], XORChain(K[self], xorKeys, self, j), "self %d, j %d", self, j)
		}
	}
}

func TestXORChain_DoesNotModifyKey(t *testing.T) {
	key := big.NewInt(9)
	XORChain(key, []*big.Int{big.NewInt(12), big.NewInt(5), big.NewInt(9)}, 1, 0)
	assert.Equal(t, big.NewInt(9), key)
}

func TestClosure(t *testing.T) {
	for n := party.MinRingSize; n <= 16; n++ {
		xorKeys := ringXORKeys(randomSecrets(t, n))
		assert.True(t, Closure(xorKeys), "ring of %d", n)

		xorKeys[n/2] = XOR(xorKeys[n/2], big.NewInt(1))
		assert.False(t, Closure(xorKeys), "ring of %d with tampered key", n)
	}
}

func TestDerive_Agreement(t *testing.T) {
	for n := party.MinRingSize; n <= 16; n++ {
		secrets := randomSecrets(t, n)
		xorKeys := ringXORKeys(secrets)
		ring := party.Ring(n)

		var first *MasterKey
		for _, id := range ring {
			mk, err := Derive(secrets[id], xorKeys, id, ring)
			require.NoError(t, err)
			assert.Equal(t, secrets, mk.Secrets)
			if first == nil {
				first = mk
				continue
			}
			assert.True(t, first.Equal(mk))
			assert.Equal(t, first.SessionKey(), mk.SessionKey())
			assert.Equal(t, first.SessionID(), mk.SessionID())
		}
		assert.NotEqual(t, first.SessionKey(), first.SessionID())
	}
}

func TestDerive_Vector(t *testing.T) {
	K := []*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(12)}
	xorKeys := ringXORKeys(K)
	ring := party.Ring(3)

	sha := func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}

	for _, id := range ring {
		mk, err := Derive(K[id], xorKeys, id, ring)
		require.NoError(t, err)
		assert.Equal(t, "5912012", mk.String())
		assert.Equal(t, sha("59120120"), mk.SessionKey())
		assert.Equal(t, sha("59120121"), mk.SessionID())
	}
}

func TestDerive_Errors(t *testing.T) {
	ring := party.Ring(3)
	xorKeys := []*big.Int{big.NewInt(12), big.NewInt(5), big.NewInt(9)}

	_, err := Derive(nil, xorKeys, 0, ring)
	assert.Error(t, err)
	_, err = Derive(big.NewInt(5), xorKeys[:2], 0, ring)
	assert.Error(t, err)
	_, err = Derive(big.NewInt(5), []*big.Int{big.NewInt(12), nil, big.NewInt(9)}, 0, ring)
	assert.Error(t, err)
	_, err = Derive(big.NewInt(5), xorKeys, 3, ring)
	assert.Error(t, err)
}

func TestMasterKey_BindsRing(t *testing.T) {
	secrets := []*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(12)}
	a := &MasterKey{Secrets: secrets, Ring: party.IDSlice{0, 1, 2}}
	b := &MasterKey{Secrets: secrets, Ring: party.IDSlice{0, 2, 1}}
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.SessionKey(), b.SessionKey())
}
