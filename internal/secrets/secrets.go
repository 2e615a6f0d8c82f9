// Package secrets resolves credentials in the configuration from
// environment variables and secret files (Docker or Kubernetes secrets).
// Secret values are never logged or included in errors.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxSecretFileSize limits secret file reads; tokens and passwords are small
	maxSecretFileSize = 64 * 1024

	// groupOtherPerms are the permission bits a secret file should not carry
	groupOtherPerms = 0o077
)

// Warnings receives notices about insecure secret files. The logger is not
// set up yet when the configuration loads, so it defaults to stderr.
var Warnings io.Writer = os.Stderr

// ExpandString resolves ${VAR} and ${VAR:-default} references in s. A
// referenced variable that is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missingVars []string
	expanded := os.Expand(s, func(key string) string {
		varName, defaultValue, hasDefault := strings.Cut(key, ":-")

		value := os.Getenv(varName)
		if value == "" {
			if hasDefault {
				return defaultValue
			}
			missingVars = append(missingVars, varName)
		}
		return value
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missingVars, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret file. Trailing newlines are trimmed and an empty
// file is an error. Files readable by group or others are accepted with a
// warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}
	if perm := info.Mode().Perm(); perm&groupOtherPerms != 0 && Warnings != nil {
		fmt.Fprintf(Warnings, "WARNING: secret file has group/other permissions (perms: %04o): %s\n", perm, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file: %w", err)
		}
		return secret, nil
	}
	return ExpandString(value)
}

// ResolveField is Resolve with the config key named in errors.
func ResolveField(field, filePath, value string) (string, error) {
	secret, err := Resolve(filePath, value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return secret, nil
}
