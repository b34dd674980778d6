package pairwise

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/ringpake/gka/pkg/party"
	"golang.org/x/crypto/hkdf"
)

// DefaultSecretSize is the length in bytes of the secrets derived by HKDF when Size is 0.
const DefaultSecretSize = 32

// HKDF simulates a completed PAKE run by expanding a password shared by the whole ring into a
// secret for each pair of parties. It stands in for a real PAKE in tests and local simulations.
type HKDF struct {
	Password []byte
	// Salt should be fresh for every run, so that two runs never reuse pairwise secrets.
	Salt []byte
	// Size is the length of the secret, DefaultSecretSize if 0.
	Size int
}

// Exchange implements Oracle.
func (o HKDF) Exchange(ctx context.Context, a, b party.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(o.Password) == 0 {
		return nil, errors.New("pairwise: empty password")
	}
	if a == b {
		return nil, errors.New("pairwise: exchange with self")
	}
	if b < a {
		a, b = b, a
	}
	size := o.Size
	if size <= 0 {
		size = DefaultSecretSize
	}

	info := append([]byte("ring pairwise secret"), a.Bytes()...)
	info = append(info, b.Bytes()...)
	secret := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, o.Password, o.Salt, info), secret); err != nil {
		return nil, err
	}
	return secret, nil
}
