package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionFileName is the file 'fixline login' writes the session token to,
// inside the config directory.
const SessionFileName = "session"

// LoadSessionToken reads the session token written by 'fixline login' from
// dir.
//
//	token, err := client.LoadSessionToken(os.ExpandEnv("$HOME/.fixline"))
func LoadSessionToken(dir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, SessionFileName))
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("session file %q is empty; run 'fixline login'", filepath.Join(dir, SessionFileName))
	}
	return token, nil
}

// SaveSessionToken writes the session token to dir, creating the directory
// if needed. The file is user-readable only.
func SaveSessionToken(dir, token string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(dir, SessionFileName)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}
	return nil
}

// NewFromSessionDir creates an authenticated SDK client by loading the
// session token written by 'fixline login' from dir.
//
//	c, err := client.NewFromSessionDir(
//	    "https://fixline.example.gov",
//	    os.ExpandEnv("$HOME/.fixline"),
//	)
func NewFromSessionDir(serverBase, dir string, opts ...Option) (*Client, error) {
	token, err := LoadSessionToken(dir)
	if err != nil {
		return nil, err
	}
	return New(serverBase, append([]Option{WithBearerToken(token)}, opts...)...)
}

// WithSessionDir is the functional-option form of NewFromSessionDir.
// Use it when token loading needs combining with other New() options:
//
//	c, err := client.New(serverURL,
//	    client.WithSessionDir(cfgDir),
//	    client.WithInsecureSkipVerify(),
//	)
func WithSessionDir(dir string) Option {
	return func(c *Client) error {
		token, err := LoadSessionToken(dir)
		if err != nil {
			return err
		}
		return WithBearerToken(token)(c)
	}
}
