package bank

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrDecrypt = errors.New("credentials: decryption failed")
	// ErrNoKey is returned by a nil Vault, used when no key is configured.
	ErrNoKey = errors.New("credentials: no encryption key configured")
)

// Credentials are the secrets needed to call a bank API. Token is sent as a
// bearer token; the remaining fields are passed through for banks that need
// them.
type Credentials struct {
	Token    string            `json:"token"`
	Username string            `json:"username,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Vault seals credentials with a fixed key. The output is base64 of the
// random nonce followed by the sealed box.
type Vault struct {
	key [32]byte
}

func NewVault(key [32]byte) *Vault {
	return &Vault{key: key}
}

func (v *Vault) Encrypt(c Credentials) (string, error) {
	if v == nil {
		return "", ErrNoKey
	}
	plain, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(text string) (Credentials, error) {
	if v == nil {
		return Credentials{}, ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return Credentials{}, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return Credentials{}, ErrDecrypt
	}
	var c Credentials
	if err := json.Unmarshal(plain, &c); err != nil {
		return Credentials{}, ErrDecrypt
	}
	return c, nil
}
