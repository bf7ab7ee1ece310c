package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/credstore/internal/config"
	"github.com/semmy-space/credstore/internal/credstore"
	"github.com/semmy-space/credstore/internal/output"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
	Mode      string
}

// CLI is the root command structure
type CLI struct {
	Globals

	Get      GetCmd      `cmd:"" help:"Print a stored secret"`
	Set      SetCmd      `cmd:"" help:"Add or update a secret"`
	Rm       RmCmd       `cmd:"" help:"Remove a stored secret"`
	Git      GitCmd      `cmd:"" help:"git credential helper (credential.helper = 'credstore git')"`
	Token    TokenCmd    `cmd:"" help:"OAuth2 token storage"`
	Backends BackendsCmd `cmd:"" help:"List storage backends available on this host"`
	Config   ConfigCmd   `cmd:"" help:"Configuration commands"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" name:"install-completions" help:"Install shell completions"`

	registry *prometheus.Registry
}

// AfterApply runs once flags are parsed and before the command executes.
// It loads config, merges it under the flags, creates the formatter and
// binds dependencies.
func (c *CLI) AfterApply(ctx *kong.Context) error {
	// Load config from XDG path (returns defaults if missing)
	cfg, err := config.Load()
	if err != nil {
		return &output.CLIError{
			ExitCode: output.ExitConfigError,
			Message:  err.Error(),
			Err:      err,
		}
	}

	// Output: flag > config > auto
	if (c.Output == "" || c.Output == "auto") && cfg.DefaultOutput != "" {
		c.Output = cfg.DefaultOutput
	}
	if c.MetricsFile == "" {
		c.MetricsFile = cfg.MetricsFile
	}

	mode := c.ResolvedOutput()
	formatter := &FormatterProvider{
		Formatter: output.New(mode),
		Mode:      mode,
	}

	log := c.Logger()
	c.registry = prometheus.NewRegistry()
	stores := NewStoreProvider(&c.Globals, cfg, credstore.NewMetrics(c.registry), log)

	// Bind dependencies to kong context
	ctx.Bind(cfg)
	ctx.Bind(formatter)
	ctx.Bind(&c.Globals)
	ctx.Bind(stores)
	ctx.Bind(stdStreams())

	return nil
}

// Flush writes collected metrics when --metrics-file is set.
func (c *CLI) Flush() error {
	if c.MetricsFile == "" || c.registry == nil {
		return nil
	}
	if err := credstore.WriteMetrics(c.MetricsFile, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context, st *Streams) error {
	version := ctx.Model.Vars()["version"]
	fmt.Fprintln(st.Out, "credstore version "+version)
	return nil
}
