package security

import (
	"crypto/sha256"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	SecretPrefix = "whsec_"
	KeyPrefix    = "dc_"
	Alphabet     = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateSecret creates a webhook signing secret for a new subscriber.
func GenerateSecret() (string, error) {
	id, err := gonanoid.Generate(Alphabet, 32)
	if err != nil {
		return "", err
	}
	return SecretPrefix + id, nil
}

// GenerateKey creates an API key for the management API.
func GenerateKey() (string, error) {
	id, err := gonanoid.Generate(Alphabet, 32)
	if err != nil {
		return "", err
	}
	return KeyPrefix + id, nil
}

// HashKey returns a SHA-256 hash of the provided key. Only the hash is
// stored alongside the subscriber.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}
