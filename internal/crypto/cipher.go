// Package crypto provides the payload cipher used to encrypt asset contents
// at rest. ChaCha20-Poly1305 with a random nonce prefixed to the ciphertext.
package crypto

import (
	crand "crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals and opens asset payloads with a single service-wide key.
type Cipher struct {
	key []byte
}

// NewCipher parses a hex-encoded 256-bit key.
func NewCipher(keyHex string) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, errors.Wrap(err, "payload key is not valid hex")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("payload key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: key}, nil
}

// Seal encrypts plaintext. The nonce is generated per call and prepended to
// the returned ciphertext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := crand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal.
func (c *Cipher) Open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "payload decryption failed")
	}
	return plaintext, nil
}

// NewKeyHex generates a fresh random key in the format NewCipher accepts.
func NewKeyHex() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := crand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
