// Package templatecrypto encrypts fingerprint templates at rest.
//
// The key is derived from the server secret with PBKDF2-SHA256 over a fixed
// salt and re-derived on every call.
package templatecrypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters. Changing any of them makes stored templates unreadable.
const (
	KeyLen     = 32
	Iterations = 100_000
)

// Salt is fixed so that every server sharing the secret derives the same key.
var Salt = []byte("gym_fingerprint_salt")

// ErrCiphertext is returned when a blob is too short, tampered, or sealed under another key.
var ErrCiphertext = errors.New("template ciphertext invalid")

// Service seals and opens template blobs with a key derived from a secret.
type Service struct {
	secret []byte
}

// New constructs a Service for the given server secret.
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}
	return &Service{secret: []byte(secret)}, nil
}

// DeriveKey runs PBKDF2 over the secret and returns the key URL-safe base64 encoded.
func (s *Service) DeriveKey() string {
	raw := pbkdf2.Key(s.secret, Salt, Iterations, KeyLen, sha256.New)
	return base64.URLEncoding.EncodeToString(raw)
}

func (s *Service) aead() (cipher.AEAD, error) {
	key, err := base64.URLEncoding.DecodeString(s.DeriveKey())
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under a random nonce.
// Output layout: nonce || ciphertext+tag.
func (s *Service) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt.
func (s *Service) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, ErrCiphertext
	}
	aead, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrCiphertext
	}
	return pt, nil
}
