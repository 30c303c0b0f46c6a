package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type keyFile struct {
	Address string `json:"address"`
}

// ReadAddress returns the 0x-prefixed address stored in a keyfile.
func ReadAddress(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read keyfile: %w", err)
	}

	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return "", fmt.Errorf("parse keyfile %s: %w", path, err)
	}

	address := strings.TrimPrefix(strings.ToLower(kf.Address), "0x")
	if b, err := hex.DecodeString(address); err != nil || len(b) != 20 {
		return "", fmt.Errorf("keyfile %s: invalid address %q", path, kf.Address)
	}
	return "0x" + address, nil
}

// Digest is the hex SHA-256 of a file's content.
func Digest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
