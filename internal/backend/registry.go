package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMistral   = "mistral"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

var (
	ErrUnknownProvider = errors.New("unknown backend provider")
	ErrMissingAPIKey   = errors.New("missing API key")
)

var (
	baseExtensions     = []string{".jpg", ".jpeg", ".png"}
	extendedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

var aliases = map[string]string{
	"claude":  ProviderAnthropic,
	"google":  ProviderGemini,
	"pixtral": ProviderMistral,
}

type provider struct {
	needsKey   bool
	extensions []string
	build      func(opts Options, client *http.Client) Backend
}

var providers = map[string]provider{
	ProviderAnthropic: {
		needsKey:   true,
		extensions: extendedExtensions,
		build: func(opts Options, client *http.Client) Backend {
			return &AnthropicAdapter{BaseURL: opts.BaseURL, APIKey: opts.APIKey, Model: opts.Model, Client: client}
		},
	},
	ProviderGemini: {
		needsKey:   true,
		extensions: extendedExtensions,
		build: func(opts Options, client *http.Client) Backend {
			return &GeminiAdapter{BaseURL: opts.BaseURL, APIKey: opts.APIKey, Model: opts.Model, Client: client}
		},
	},
	ProviderMistral: {
		needsKey:   true,
		extensions: baseExtensions,
		build: func(opts Options, client *http.Client) Backend {
			return &MistralAdapter{BaseURL: opts.BaseURL, APIKey: opts.APIKey, Model: opts.Model, Client: client, Logger: opts.Logger}
		},
	},
	ProviderOllama: {
		extensions: baseExtensions,
		build: func(opts Options, client *http.Client) Backend {
			return &OllamaAdapter{BaseURL: opts.BaseURL, Model: opts.Model, Client: client}
		},
	},
	ProviderMock: {
		extensions: extendedExtensions,
		build: func(opts Options, _ *http.Client) Backend {
			return &MockAdapter{Delay: opts.MockDelay}
		},
	},
}

// Options selects and configures one provider for a run.
type Options struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MockDelay time.Duration
	Logger    *slog.Logger
}

// New builds the adapter named by opts.Provider. Configuration problems wrap ErrUnknownProvider or
// ErrMissingAPIKey.
func New(opts Options) (Backend, error) {
	name := Canonical(opts.Provider)
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, opts.Provider, strings.Join(Providers(), ", "))
	}
	if p.needsKey && strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return p.build(opts, &http.Client{Timeout: timeout}), nil
}

// Canonical resolves aliases and case to a provider name. Unknown names are returned lower-cased.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}

// Extensions lists the file extensions the provider accepts, or the base set for unknown providers.
func Extensions(name string) []string {
	p, ok := providers[Canonical(name)]
	if !ok {
		return append([]string(nil), baseExtensions...)
	}
	return append([]string(nil), p.extensions...)
}

// RequiresAPIKey reports whether the provider is a hosted service that needs credentials.
func RequiresAPIKey(name string) bool {
	return providers[Canonical(name)].needsKey
}

func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
