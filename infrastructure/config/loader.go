// Package config loads, expands and watches the runtime configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// Format names a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var decoders = map[Format]func([]byte, any) error{
	FormatYAML: yaml.Unmarshal,
	FormatJSON: json.Unmarshal,
}

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedFormat, ext)
	}
}

// Loader turns a configuration file into an AppConfig. The file is decoded
// on top of config.Default(), so absent sections keep their defaults; then
// RAGENT_* overrides are applied and the result is validated.
type Loader struct {
	expandEnv    bool
	strictEnv    bool
	validate     bool
	envOverrides bool
}

// LoaderOption toggles one loading stage.
type LoaderOption func(*Loader)

func WithEnvExpansion(on bool) LoaderOption { return func(l *Loader) { l.expandEnv = on } }

// WithStrictEnv fails the load when a ${VAR} reference has no value and no
// default.
func WithStrictEnv(on bool) LoaderOption { return func(l *Loader) { l.strictEnv = on } }

func WithValidation(on bool) LoaderOption { return func(l *Loader) { l.validate = on } }

func WithEnvOverrides(on bool) LoaderOption { return func(l *Loader) { l.envOverrides = on } }

// NewLoader expands ${VAR} references, applies overrides and validates.
func NewLoader() *Loader {
	return NewLoaderWithOptions()
}

func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := &Loader{expandEnv: true, validate: true, envOverrides: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadOrDefault loads path, or the defaults plus overrides when path is empty.
func (l *Loader) LoadOrDefault(path string) (*config.AppConfig, error) {
	if path == "" {
		return l.finish(config.Default())
	}
	return l.LoadFile(path)
}

func (l *Loader) LoadFile(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	case err != nil:
		// Directories land here too.
		return nil, fmt.Errorf("%w: %s: %v", config.ErrInvalidFormat, path, err)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return l.decode(data, format)
}

func (l *Loader) Load(r io.Reader, format Format) (*config.AppConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.decode(data, format)
}

func (l *Loader) LoadString(content string, format Format) (*config.AppConfig, error) {
	return l.decode([]byte(content), format)
}

func (l *Loader) decode(data []byte, format Format) (*config.AppConfig, error) {
	unmarshal, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}
	if l.expandEnv {
		expanded, err := (&envExpander{strict: l.strictEnv}).Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	cfg := config.Default()
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}
	return l.finish(cfg)
}

func (l *Loader) finish(cfg *config.AppConfig) (*config.AppConfig, error) {
	if l.envOverrides {
		ApplyEnvOverrides(cfg)
	}
	if !l.validate {
		return cfg, nil
	}
	if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
	}
	return cfg, nil
}
