package file

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// Sealed layout: magic | salt | nonce | secretbox(ciphertext).
var sealMagic = []byte("RCS1")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var errBadPassphrase = errors.New("cannot decrypt credentials (wrong passphrase or corrupt file)")

// sealer encrypts the credentials file with a key derived from a passphrase.
// The derived key is cached per salt since argon2 is deliberately slow.
type sealer struct {
	passphrase []byte
	salt       []byte
	key        *[keySize]byte
}

func newSealer(passphrase string) *sealer {
	return &sealer{passphrase: []byte(passphrase)}
}

func (s *sealer) keyFor(salt []byte) *[keySize]byte {
	if s.key != nil && bytes.Equal(s.salt, salt) {
		return s.key
	}
	var key [keySize]byte
	copy(key[:], argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, keySize))
	s.salt = append([]byte(nil), salt...)
	s.key = &key
	return s.key
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	salt := s.salt
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	key := s.keyFor(salt)

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	header := len(sealMagic) + saltSize + nonceSize
	if len(sealed) < header+secretbox.Overhead || !bytes.HasPrefix(sealed, sealMagic) {
		return nil, errBadPassphrase
	}
	salt := sealed[len(sealMagic) : len(sealMagic)+saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[len(sealMagic)+saltSize:header])

	plain, ok := secretbox.Open(nil, sealed[header:], &nonce, s.keyFor(salt))
	if !ok {
		return nil, errBadPassphrase
	}
	return plain, nil
}
