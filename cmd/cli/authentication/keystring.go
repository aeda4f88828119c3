package authentication

// Credentials of the logged-in user, kept in the OS keyring. Machines
// without a keyring (headless Linux, containers) fall back to a file only
// the user can read.
import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "roomchat-cli"
	tokenKey    = "auth_tokens"
)

var ErrNotLoggedIn = errors.New("not logged in, run 'roomchat auth login' first")

type StoredCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	APIURL       string `json:"api_url"`
	ExpiresAt    int64  `json:"expires_at"`
}

func fallbackPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "roomchat", "credentials.json"), nil
}

func StoreTokens(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := keyring.Set(serviceName, tokenKey, string(data)); err == nil {
		return nil
	}

	path, err := fallbackPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func GetTokens() (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, tokenKey)
	if err != nil {
		path, pathErr := fallbackPath()
		if pathErr != nil {
			return nil, ErrNotLoggedIn
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, ErrNotLoggedIn
		}
		value = string(data)
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func DeleteTokens() error {
	err := keyring.Delete(serviceName, tokenKey)
	if path, pathErr := fallbackPath(); pathErr == nil {
		if rmErr := os.Remove(path); rmErr == nil {
			return nil
		}
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
