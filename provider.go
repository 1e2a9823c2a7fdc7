package converse

import (
	"fmt"
	"strings"
)

// Provider selects the language model the server routes a message to.
// It is chosen per send and is not part of a session's identity.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderClaude   Provider = "claude"
	ProviderDeepSeek Provider = "deepseek"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderOpenAI

// Providers lists the known providers in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderClaude, ProviderDeepSeek}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderDeepSeek:
		return true
	default:
		return false
	}
}

// Next returns the provider following p in Providers, wrapping around.
func (p Provider) Next() Provider {
	all := Providers()
	for i, q := range all {
		if q == p {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// ParseProvider converts s to a Provider, ignoring case and surrounding
// whitespace.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q: must be one of openai, claude, deepseek: %w", s, ErrValidation)
	}
	return p, nil
}
