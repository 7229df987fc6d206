package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL    string
	Username     string
	Password     string
	PasswordFile string
	Output       string
	Verbose      bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:    getEnvOrDefault("TOWNCTL_SERVER", "http://localhost:8080"),
		Username:     os.Getenv("TOWNCTL_USER"),
		Password:     os.Getenv("TOWNCTL_PASSWORD"),
		PasswordFile: getEnvOrDefault("TOWNCTL_PASSWORD_FILE", defaultPasswordFile()),
		Output:       "text",
		Verbose:      false,
	}
}

// LoadPassword loads the moderator password from file if not already set
func (c *Config) LoadPassword() error {
	if c.Password != "" {
		return nil
	}

	data, err := os.ReadFile(c.PasswordFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Public commands need no credentials
		}
		return err
	}

	c.Password = strings.TrimSpace(string(data))
	return nil
}

func defaultPasswordFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".townctl/password"
	}
	return filepath.Join(home, ".townctl", "password")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
