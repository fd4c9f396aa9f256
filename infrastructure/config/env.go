package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
)

// bracketPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)

// envExpander expands environment variables in configuration text.
type envExpander struct {
	// strict fails if a referenced variable without a default is unset.
	strict  bool
	lookup  func(string) (string, bool)
	missing []string
}

// Expand expands environment variables in the input string.
// Supported patterns:
//   - ${VAR} expands to the value of VAR
//   - ${VAR:-default} expands to VAR or "default" if unset or empty
//   - ${VAR:?message} fails if VAR is unset or empty
//
// A bare $VAR is left alone so secrets containing '$' survive.
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := bracketPattern.FindStringSubmatch(match)
		name, modifier := sub[1], sub[2]
		value, exists := lookup(name)

		switch {
		case strings.HasPrefix(modifier, ":-"):
			if !exists || value == "" {
				return modifier[2:]
			}
		case strings.HasPrefix(modifier, ":?"):
			if !exists || value == "" {
				e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, modifier[2:]))
				return match
			}
		default:
			if !exists && e.strict {
				e.missing = append(e.missing, name)
			}
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return result, nil
}

// ExpandEnv expands environment variables, leaving unset ones empty.
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, err := e.Expand(input)
	if err != nil {
		return input
	}
	return result
}

// ExpandEnvStrict expands environment variables and reports unset ones.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}

// Environment overrides applied after the file is parsed.
const (
	EnvLogLevel       = "RAGENT_LOG_LEVEL"
	EnvStorageBackend = "RAGENT_STORAGE_BACKEND"
	EnvLLMProvider    = "RAGENT_LLM_PROVIDER"
	EnvLLMModel       = "RAGENT_LLM_MODEL"
	EnvLLMAPIKey      = "RAGENT_LLM_API_KEY"
)

// ApplyEnvOverrides lets a few well-known variables override cfg.
func ApplyEnvOverrides(cfg *domainconfig.AppConfig) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvLogLevel, &cfg.Logging.Level},
		{EnvStorageBackend, &cfg.Storage.Backend},
		{EnvLLMProvider, &cfg.LLM.Provider},
		{EnvLLMModel, &cfg.LLM.Model},
		{EnvLLMAPIKey, &cfg.LLM.APIKey},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}
