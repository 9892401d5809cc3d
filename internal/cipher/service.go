// Package cipher seals short UTF-8 texts with one process-lifetime key.
//
// A sealed token is URL-safe base64 of a version byte, a random 24-byte
// nonce and the XChaCha20-Poly1305 ciphertext. Tokens are bound to the key
// that produced them and to a scope string authenticated with them; a token
// only opens under the scope it was sealed with. Rotating or regenerating
// the key makes every earlier token undecryptable.
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	tokenVersion byte = 0x01
	minTokenLen       = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
)

// ErrDecryption is matched by every DecryptionError.
var ErrDecryption = errors.New("decryption failed")

// SealedText is an opaque token produced by Encrypt. It is safe to log,
// display and transmit.
type SealedText string

func (s SealedText) String() string { return string(s) }

// DecryptionError reports a token that could not be opened. Reason is safe
// to surface; it never contains key material or plaintext.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Reason == "" {
		return ErrDecryption.Error()
	}
	return ErrDecryption.Error() + ": " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

type Service struct {
	aead      stdcipher.AEAD
	key       []byte
	generated bool
}

// New loads encodedKey, a URL-safe base64 32-byte key. An empty key makes
// New generate a fresh one; Generated then reports true.
func New(encodedKey string) (*Service, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	generated := false
	var key []byte
	if encodedKey == "" {
		k, err := randomKey()
		if err != nil {
			return nil, err
		}
		key = k
		generated = true
	} else {
		k, err := decodeKey(encodedKey)
		if err != nil {
			return nil, err
		}
		key = k
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Service{aead: aead, key: key, generated: generated}, nil
}

// GenerateKey returns a new encoded key suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	k, err := randomKey()
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(k), nil
}

// Generated reports whether the key was created at startup rather than
// loaded. Sealed text does not survive a restart in that case.
func (s *Service) Generated() bool { return s.generated }

// EncodedKey returns the key in the ENCRYPTION_KEY format.
func (s *Service) EncodedKey() string {
	return base64.URLEncoding.EncodeToString(s.key)
}

// Encrypt seals plaintext under scope. Decrypt must be given the same scope.
func (s *Service) Encrypt(plaintext, scope string) (SealedText, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, tokenVersion)
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, []byte(plaintext), additionalData(scope))
	return SealedText(base64.RawURLEncoding.EncodeToString(out)), nil
}

// Decrypt opens token. A token sealed under another scope or key fails
// with a DecryptionError reporting "authentication failed".
func (s *Service) Decrypt(token SealedText, scope string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(token), "="))
	if err != nil {
		return "", &DecryptionError{Reason: "malformed token", Err: err}
	}
	if len(raw) < minTokenLen {
		return "", &DecryptionError{Reason: "token too short"}
	}
	if raw[0] != tokenVersion {
		return "", &DecryptionError{Reason: fmt.Sprintf("unsupported token version %d", raw[0])}
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	plain, err := s.aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], additionalData(scope))
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plain), nil
}

// LooksSealed reports whether text has the shape of a token: unpadded
// url-safe base64 carrying the current version byte and at least a nonce
// and tag. Human-readable sentences never do.
func LooksSealed(text string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return false
	}
	return len(raw) >= minTokenLen && raw[0] == tokenVersion
}

func additionalData(scope string) []byte {
	ad := make([]byte, 0, 1+len(scope))
	ad = append(ad, tokenVersion)
	return append(ad, scope...)
}

func randomKey() ([]byte, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return k, nil
}

func decodeKey(encoded string) ([]byte, error) {
	k, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		k, err = base64.RawURLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be url-safe base64: %w", err)
	}
	if len(k) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", chacha20poly1305.KeySize, len(k))
	}
	return k, nil
}
