package config

import (
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

// DefaultKeyName is the file name of the signing key inside the keys directory
const DefaultKeyName = "client.pem"

// GetKeysDir returns the directory that holds signing keys
func GetKeysDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, keysDirName), nil
}

// EnsureKeysDir creates the keys directory with owner-only permissions
func EnsureKeysDir() (string, error) {
	if _, err := EnsureConfigDir(); err != nil {
		return "", err
	}
	dir, err := GetKeysDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create keys directory: %w", err)
	}
	return dir, nil
}

// ResolveKeyPath returns the signing key path for cfg.
// An explicit KeyPath wins; otherwise the default key in the keys directory is used.
func ResolveKeyPath(cfg Config) (string, error) {
	if cfg.KeyPath != "" {
		return cfg.KeyPath, nil
	}
	dir, err := GetKeysDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultKeyName), nil
}

// ReadKey reads PEM data from path and checks that it holds a private key block.
func ReadKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s. Import one first:\n  streamchat import-key <path-to-key.pem>", apierrors.ErrNoKey, path)
		}
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	if err := validatePEM(data); err != nil {
		return nil, err
	}
	return data, nil
}

func validatePEM(data []byte) error {
	block, _ := pem.Decode(data)
	if block == nil {
		return fmt.Errorf("invalid key format: no PEM block found")
	}
	switch block.Type {
	case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
		return nil
	}
	return fmt.Errorf("invalid key format: unexpected PEM block %q", block.Type)
}

// SaveKey writes PEM data as the default signing key and returns its path.
func SaveKey(data []byte) (string, error) {
	if err := validatePEM(data); err != nil {
		return "", err
	}
	dir, err := EnsureKeysDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, DefaultKeyName)
	// Owner read/write only
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write signing key: %w", err)
	}
	return path, nil
}

// ImportKey copies a PEM private key from sourcePath into the keys directory
func ImportKey(sourcePath string) (string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("source file not found: %s", sourcePath)
		}
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return SaveKey(data)
}
