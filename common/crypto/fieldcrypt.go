// Package crypto encrypts integration secrets (access tokens, webhook
// secrets) before they are written to Postgres.
//
// Stored values look like "enc:v1:<base64(nonce|ciphertext)>". The owning
// row id is bound as associated data, so a ciphertext copied onto another
// integration row fails to open.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const prefix = "enc:v1:"

const (
	PurposeAccessToken   = "repository-access-token"
	PurposeWebhookSecret = "repository-webhook-secret"
)

var ErrMalformed = errors.New("crypto: malformed ciphertext")

// FieldEncryptor is safe for concurrent use.
type FieldEncryptor struct {
	gcm cipher.AEAD
}

// DeriveFieldEncryptor derives a purpose-specific AES-256 key from the
// service master secret.
func DeriveFieldEncryptor(masterSecret []byte, purpose string) (*FieldEncryptor, error) {
	if len(masterSecret) == 0 {
		return nil, errors.New("crypto: master secret is empty")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterSecret, []byte("notra-field-encryption"), []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &FieldEncryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext for the row identified by rowID.
func (fe *FieldEncryptor) Encrypt(plaintext, rowID string) (string, error) {
	nonce := make([]byte, fe.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := fe.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(rowID))
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt for the same rowID. Values
// without the prefix predate encryption and are returned unchanged.
func (fe *FieldEncryptor) Decrypt(stored, rowID string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, prefix)
	if !ok {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nonceSize := fe.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: too short", ErrMalformed)
	}

	plaintext, err := fe.gcm.Open(nil, data[:nonceSize], data[nonceSize:], []byte(rowID))
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: %w", err)
	}
	return string(plaintext), nil
}

func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}
