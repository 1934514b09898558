// Package vault seals and opens credential blobs for the account
// repository. AES-256-GCM with a per-blob key derived via argon2id
// from a machine-local secret; the blobs are opaque everywhere else in
// the program.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedBlob indicates a blob too short to contain its envelope
// or one that fails authentication.
var ErrMalformedBlob = errors.New("vault: malformed blob")

const (
	secretLen = 32
	saltLen   = 16
	nonceLen  = 12
)

// Vault seals byte blobs against a machine-local secret file.
type Vault struct {
	secretPath string
}

// New creates a Vault whose secret lives at secretPath. The secret is
// created on first use.
func New(secretPath string) *Vault {
	return &Vault{secretPath: secretPath}
}

// secret loads the machine secret, creating it on first use.
func (v *Vault) secret() ([]byte, error) {
	data, err := os.ReadFile(v.secretPath)
	if err == nil {
		if len(data) != secretLen {
			return nil, fmt.Errorf("vault: secret file %s has wrong length %d", v.secretPath, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading vault secret: %w", err)
	}

	data = make([]byte, secretLen)
	if _, err := rand.Read(data); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(v.secretPath), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(v.secretPath, data, 0600); err != nil {
		return nil, fmt.Errorf("writing vault secret: %w", err)
	}
	return data, nil
}

// deriveKey stretches the machine secret with a per-blob salt.
func deriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Seal encrypts plain and returns an envelope of salt, nonce, and
// ciphertext.
func (v *Vault) Seal(plain []byte) ([]byte, error) {
	secret, err := v.secret()
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltLen+nonceLen+len(plain)+aesgcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plain, nil), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(blob []byte) ([]byte, error) {
	if len(blob) < saltLen+nonceLen {
		return nil, ErrMalformedBlob
	}
	secret, err := v.secret()
	if err != nil {
		return nil, err
	}

	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+nonceLen]
	ciphertext := blob[saltLen+nonceLen:]

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plain, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	return plain, nil
}
