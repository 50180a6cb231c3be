package client

import (
	"fmt"
	"os"
	"strings"
)

// LoadToken reads a service token from path, trimming surrounding
// whitespace. 'equi token --out' writes files in this format.
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// WithTokenFile loads the service token from a file on disk.
func WithTokenFile(path string) Option {
	return func(c *Client) error {
		token, err := LoadToken(path)
		if err != nil {
			return err
		}
		c.token = token
		return nil
	}
}
