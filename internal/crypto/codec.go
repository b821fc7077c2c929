// Package crypto provides the symmetric codec used to encrypt credential
// fields at rest. The codec is a pure string-to-string transform with no
// knowledge of providers or field names.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrKeyMissing is returned by NewCodec when no encryption key is available.
// Startup must treat this as fatal: the store never operates unencrypted.
var ErrKeyMissing = errors.New("encryption key not configured: set AGENTVAULT_ENCRYPTION_KEY")

// ErrDecryptFailed is returned by Decrypt when the ciphertext is malformed
// or was produced under a different key.
var ErrDecryptFailed = errors.New("decrypt failed")

// Codec encrypts and decrypts strings with AES-256-GCM. Ciphertexts are
// base64-encoded nonce || ciphertext || tag; a fresh nonce is drawn per call,
// so encrypting the same plaintext twice yields different ciphertexts.
type Codec struct {
	gcm cipher.AEAD
}

// NewCodec creates a Codec from a base64-encoded 32-byte key.
// An empty key returns ErrKeyMissing.
func NewCodec(encodedKey string) (*Codec, error) {
	if encodedKey == "" {
		return nil, ErrKeyMissing
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Codec{gcm: gcm}, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded ciphertext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed input or authentication failure is
// reported as ErrDecryptFailed (wrapped with detail).
func (c *Codec) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrDecryptFailed, err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	return string(plaintext), nil
}

// GenerateKey returns a fresh base64-encoded 32-byte key, suitable for
// ephemeral databases (CI runs) where the key does not outlive the process.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("rand key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
