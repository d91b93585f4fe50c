package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/docuflow/backend/pkg/utils"
)

// APIKeyPrefix starts every API key.
const APIKeyPrefix = "df"

// NewAPIKey generates a key of the form df_<prefix>_<secret> and its bcrypt hash.
func NewAPIKey() (plaintext, prefix, hash string, err error) {
	b := make([]byte, 6)
	if _, err = rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("read random: %w", err)
	}
	prefix = hex.EncodeToString(b)
	secret, err := utils.RandomToken(24)
	if err != nil {
		return "", "", "", err
	}
	hash, err = utils.HashSecret(secret)
	if err != nil {
		return "", "", "", fmt.Errorf("hash api key: %w", err)
	}
	return APIKeyPrefix + "_" + prefix + "_" + secret, prefix, hash, nil
}

// ParseAPIKey splits a key into its lookup prefix and secret.
func ParseAPIKey(key string) (prefix, secret string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(key), "_", 3)
	if len(parts) != 3 || parts[0] != APIKeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", false
	}
	return parts[1], parts[2], true
}
