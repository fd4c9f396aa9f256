package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/ragent/infrastructure/config"
)

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a ragent configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Required fields (name, version)
  - Backend, provider and exporter names
  - Evaluation thresholds and weights
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  ragent validate -c ragent.yaml

  # Strict validation (fail on missing env vars)
  ragent validate -c ragent.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(strict bool) error {
	if a.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}
	if err := infraconfig.LoadDotEnv(a.configPath); err != nil {
		return err
	}

	loader := infraconfig.NewLoaderWithOptions(
		infraconfig.WithValidation(true),
		infraconfig.WithStrictEnv(strict),
	)
	cfg, err := loader.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settings := cfg.Evaluation.Settings()
	return a.render(map[string]any{
		"valid":      true,
		"name":       cfg.Name,
		"version":    cfg.Version,
		"storage":    cfg.Storage.Backend,
		"events":     cfg.Events.Backend,
		"llm":        cfg.LLM.Provider,
		"retrieval":  cfg.Retrieval.Backend,
		"evaluation": settings,
	}, func(w io.Writer) {
		fmt.Fprintf(w, "Configuration is valid\n")
		fmt.Fprintf(w, "  Name: %s\n", cfg.Name)
		fmt.Fprintf(w, "  Version: %s\n", cfg.Version)

		fmt.Fprintf(w, "\nConfiguration summary:\n")
		fmt.Fprintf(w, "  Storage: %s\n", cfg.Storage.Backend)
		if cfg.Storage.CacheSize > 0 {
			fmt.Fprintf(w, "  Agent cache: %d entries\n", cfg.Storage.CacheSize)
		}
		fmt.Fprintf(w, "  Events: %s\n", cfg.Events.Backend)
		fmt.Fprintf(w, "  LLM: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(w, "  Retrieval: %s (%d documents)\n", cfg.Retrieval.Backend, len(cfg.Retrieval.Documents))
		fmt.Fprintf(w, "  Planning: %s, up to %d concurrent steps\n", cfg.Planning.FailurePolicy, cfg.Planning.MaxConcurrentSteps)
		fmt.Fprintf(w, "  Overall threshold: %.2f\n", settings.OverallThreshold)
		if cfg.Telemetry.Tracing.Enabled {
			fmt.Fprintf(w, "  Tracing: %s\n", cfg.Telemetry.Tracing.Exporter)
		}
	})
}
