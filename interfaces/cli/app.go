// Package cli provides the ragent command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent"
	"github.com/felixgeelhaar/ragent/domain/config"
	infraconfig "github.com/felixgeelhaar/ragent/infrastructure/config"
	api "github.com/felixgeelhaar/ragent/interfaces/api"
)

// Version information set at build time.
var (
	Version   = ragent.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	jsonOutput bool

	runtimeOpts []api.Option
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "ragent",
		Short: "Retrieval-augmented agent runtime",
		Long: `ragent runs retrieval-augmented agents that answer queries from a
knowledge base, plan multi-step tasks, and judge and revise their own answers.

Every command builds a runtime from the configuration file. With the default
in-memory storage nothing outlives the command; configure sqlite, postgres or
redis storage to keep agents between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (defaults are used when empty)")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&app.jsonOutput, "json", false, "Output results as JSON")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newActionsCmd(),
		app.newAgentCmd(),
		app.newQueryCmd(),
		app.newPlanCmd(),
		app.newEvaluateCmd(),
		app.newEvaluationCmd(),
		app.newImprovementCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithRuntimeOptions passes extra options to every runtime the commands build.
func (a *App) WithRuntimeOptions(opts ...api.Option) *App {
	a.runtimeOpts = append(a.runtimeOpts, opts...)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "ragent version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

// loadConfig reads .env files and the configuration file, then applies the
// --log-level override.
func (a *App) loadConfig() (*config.AppConfig, error) {
	if err := infraconfig.LoadDotEnv(a.configPath); err != nil {
		return nil, err
	}
	cfg, err := infraconfig.NewLoader().LoadOrDefault(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	return cfg, nil
}

// withRuntime builds a runtime for the duration of fn. Logs go to stderr so
// stdout carries only command output.
func (a *App) withRuntime(ctx context.Context, fn func(rt *api.Runtime) error) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	opts := append([]api.Option{api.WithLogOutput(a.stderr), api.WithTraceWriter(a.stderr)}, a.runtimeOpts...)
	rt, err := api.New(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}
	defer func() {
		if closeErr := rt.Close(); err == nil {
			err = closeErr
		}
	}()

	return fn(rt)
}

// render writes v as indented JSON when --json is set, otherwise calls text.
func (a *App) render(v any, text func(w io.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.stdout)
	return nil
}
