package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir стандартный путь Docker Secrets.
var SecretsDir = "/run/secrets"

// ReadSecret читает секрет из файла в каталоге Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// ReadOptionalSecret как ReadSecret, но отсутствующий файл дает fallback без ошибки.
func ReadOptionalSecret(secretName, fallback string) (string, error) {
	secret, err := ReadSecret(secretName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, nil
		}
		return "", err
	}
	return secret, nil
}
