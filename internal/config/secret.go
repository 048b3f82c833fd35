package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// Scrypt parameters for deriving the at-rest encryption key for
// auth_token, matching the teacher's secrets storage
// (internal/secrets/storage.go) scrypt(N, r, p) triple, scaled down from
// a full multi-secret Fernet store to a single scalar this config persists.
const (
	scryptN      = 1 << 15 // lighter than the teacher's 2^18: this protects one field on a CLI tool, not an interactive secrets vault
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltSize     = 16
)

// saltPath returns the per-user path to the salt backing auth_token
// encryption, analogous to the teacher's saltFile() under its own XDG
// secrets directory.
func saltPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rhizos", ".auth_salt"), nil
}

func loadOrCreateSalt() ([]byte, error) {
	path, err := saltPath()
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(path); err == nil && len(data) == saltSize {
		return data, nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate auth_token salt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist auth_token salt: %w", err)
	}
	return salt, nil
}

func deriveKey() ([]byte, error) {
	salt, err := loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	return scrypt.Key(nil, salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

// encryptAuthToken seals plaintext with AES-GCM under a key derived from a
// per-machine salt, so the TOML config file never holds auth_token in the
// clear. Empty input encrypts to empty output; there's nothing to protect
// on a node that hasn't registered yet.
func encryptAuthToken(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	key, err := deriveKey()
	if err != nil {
		return "", fmt.Errorf("failed to derive auth_token encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM mode: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decryptAuthToken reverses encryptAuthToken. A ciphertext that fails to
// decrypt (e.g. salt lost or file copied to another machine) is treated as
// absent rather than a fatal error, since auth_token is re-issued by the
// register subcommand.
func decryptAuthToken(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	key, err := deriveKey()
	if err != nil {
		return ""
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return ""
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return ""
	}
	if len(sealed) < gcm.NonceSize() {
		return ""
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}
