package types

import (
	"strings"
	"time"
)

type ProviderID string

const (
	ProviderSerper ProviderID = "serper"
)

// ProviderConfig represents upstream search provider configuration
type ProviderConfig struct {
	ID   ProviderID `json:"id" yaml:"id"`
	Name string     `json:"name" yaml:"name"`

	// API settings
	APIHost string `json:"api_host" yaml:"api_host"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // comma-separated for rotation

	// Optional settings
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"` // network errors only
	UserAgent  string        `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// Validate validates the provider configuration
func (c *ProviderConfig) Validate() error {
	if c.ID == "" {
		return ErrInvalidProviderID
	}
	if c.Name == "" {
		return ErrInvalidProviderName
	}
	if c.APIHost == "" {
		return ErrInvalidAPIHost
	}
	if strings.TrimSpace(strings.ReplaceAll(c.APIKey, ",", "")) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
