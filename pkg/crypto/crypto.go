// Package crypto encrypts secrets stored in the database (OAuth tokens and
// IMAP app passwords).
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "enc:v1:"

var ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

func aead(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	return chacha20poly1305.NewX(sum[:])
}

// Encrypt seals plaintext with a key derived from key. Empty input stays
// empty.
func Encrypt(plaintext, key string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	a, err := aead(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, a.NonceSize(), a.NonceSize()+len(plaintext)+a.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := a.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the version
// prefix are returned as they are, so rows written before encryption was
// enabled keep working.
func Decrypt(value, key string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	a, err := aead(key)
	if err != nil {
		return "", err
	}
	if len(raw) < a.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:a.NonceSize()], raw[a.NonceSize():]
	plain, err := a.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
