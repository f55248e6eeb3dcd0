package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "encryption.key")
	m, err := NewManager(keyFile)
	assert.NoError(t, err)

	ciphertext, err := m.Encrypt("super-secret-api-key")
	assert.NoError(t, err)
	assert.NotEqual(t, "super-secret-api-key", ciphertext)

	plaintext, err := m.Decrypt(ciphertext)
	assert.NoError(t, err)
	assert.Equal(t, "super-secret-api-key", plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "encryption.key"))
	assert.NoError(t, err)

	first, err := m.Encrypt("same input")
	assert.NoError(t, err)
	second, err := m.Encrypt("same input")
	assert.NoError(t, err)

	// A fresh nonce per call means identical plaintexts never repeat.
	assert.NotEqual(t, first, second)
}

func TestKeyPersistsAcrossRestarts(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keys", "encryption.key")

	first, err := NewManager(keyFile)
	assert.NoError(t, err)
	ciphertext, err := first.Encrypt("survives restart")
	assert.NoError(t, err)

	info, err := os.Stat(keyFile)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second manager over the same file must decrypt the first one's output.
	second, err := NewManager(keyFile)
	assert.NoError(t, err)
	plaintext, err := second.Decrypt(ciphertext)
	assert.NoError(t, err)
	assert.Equal(t, "survives restart", plaintext)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "encryption.key"))
	assert.NoError(t, err)

	_, err = m.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = m.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)

	_, err = m.Decrypt("")
	assert.Error(t, err)
}

func TestCorruptKeyFileRejected(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "encryption.key")
	assert.NoError(t, os.WriteFile(keyFile, []byte("too short"), 0o600))

	_, err := NewManager(keyFile)
	assert.Error(t, err)
}
