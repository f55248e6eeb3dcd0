package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const keySize = 32 // AES-256

// Manager encrypts and decrypts stored exchange credentials with a
// process-wide symmetric key. The key is created once on first start,
// persisted to a 0600 file and loaded on every subsequent start; it is
// never rotated without re-encrypting the stored credentials.
type Manager struct {
	aead cipher.AEAD
}

// NewManager loads the symmetric key from keyFile, generating and persisting
// a fresh one if the file does not exist yet.
func NewManager(keyFile string) (*Manager, error) {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Manager{aead: aead}, nil
}

func loadOrCreateKey(keyFile string) ([]byte, error) {
	key, err := os.ReadFile(keyFile)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s has invalid length %d", keyFile, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if dir := filepath.Dir(keyFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist key: %w", err)
	}
	return key, nil
}

// Encrypt seals the plaintext and returns it base64-encoded with the nonce
// prepended.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("nothing to encrypt")
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (m *Manager) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", errors.New("nothing to decrypt")
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(sealed) < m.aead.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	nonce, ciphertext := sealed[:m.aead.NonceSize()], sealed[m.aead.NonceSize():]
	plaintext, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
