package config

import "os"

// Environment variables holding provider API keys. Keys never appear in
// config.yaml or session state; they are read from the environment at
// startup and held in memory only.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// Credentials reports which provider credentials are present in the
// environment.
type Credentials struct {
	anthropic string
	openai    string
}

// DiscoverCredentials reads provider API keys from the environment.
func DiscoverCredentials() *Credentials {
	return &Credentials{
		anthropic: os.Getenv(EnvAnthropicAPIKey),
		openai:    os.Getenv(EnvOpenAIAPIKey),
	}
}

// Has reports whether a credential for the named provider is present.
func (c *Credentials) Has(provider string) bool {
	return c.APIKey(provider) != ""
}

// APIKey returns the credential for the named provider, or empty.
func (c *Credentials) APIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.anthropic
	case "openai":
		return c.openai
	default:
		return ""
	}
}
