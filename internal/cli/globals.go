package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Output      string `help:"Output format" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"CREDSTORE_OUTPUT"`
	Verbose     bool   `help:"Verbose output (debug logging on stderr)" short:"v" env:"CREDSTORE_VERBOSE"`
	Backend     string `help:"Storage backend" default:"" enum:"auto,keychain,wincred,secretservice,keyring," predictor:"backend" env:"CREDSTORE_BACKEND"`
	Namespace   string `help:"Prefix applied to every service name" short:"n" env:"CREDSTORE_NAMESPACE"`
	AccessGroup string `help:"Access group scoping stored entries" name:"access-group" env:"CREDSTORE_ACCESS_GROUP"`
	MetricsFile string `help:"Write operation metrics to this file in Prometheus text format" name:"metrics-file" type:"path" env:"CREDSTORE_METRICS_FILE"`
	NoInput     bool   `help:"Disable interactive prompts (fail instead)" name:"no-input" env:"CREDSTORE_NO_INPUT"`
}

// ResolvedOutput returns the effective output mode
// "auto" detects TTY: if stdout is TTY -> rich, else -> plain
func (g *Globals) ResolvedOutput() string {
	if g.Output != "auto" && g.Output != "" {
		return g.Output
	}

	// Detect if stdout is a TTY
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}

// Logger returns the stderr logger. Verbose enables debug records.
func (g *Globals) Logger() *slog.Logger {
	level := slog.LevelWarn
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// interactive reports whether prompts may be shown.
func (g *Globals) interactive() bool {
	return !g.NoInput && term.IsTerminal(int(os.Stdin.Fd()))
}
