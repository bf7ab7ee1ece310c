package cli

import (
	"fmt"
	"os"

	"github.com/semmy-space/credstore/internal/config"
	"github.com/semmy-space/credstore/internal/output"
)

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., backend, namespace)"`
}

// Run executes the get command
func (cmd *ConfigGetCmd) Run(cfg *config.Config, st *Streams) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return unknownKey(cmd.Key, output.ExitNotFound)
	}

	fmt.Fprintln(st.Out, value)
	return nil
}

func unknownKey(key string, code int) error {
	return output.NewCLIError(code, fmt.Sprintf("Unknown config key: %s", key)).
		WithHint("Run: credstore config list")
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(cfg *config.Config, st *Streams) error {
	if _, err := cfg.Get(cmd.Key); err != nil {
		return unknownKey(cmd.Key, output.ExitUsage)
	}

	if config.Secret(cmd.Key) {
		fmt.Fprintf(st.Err, "Note: %s is stored in the config file in plain text.\n", cmd.Key)
	}

	if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to set config: %v", err),
			ExitCode: output.ExitConfigError,
			Err:      err,
		}
	}

	value := cmd.Value
	if config.Secret(cmd.Key) {
		value = maskSecret(value)
	}
	fmt.Fprintf(st.Err, "Set %s = %s\n", cmd.Key, value)
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(cfg *config.Config, st *Streams) error {
	if _, err := cfg.Get(cmd.Key); err != nil {
		return unknownKey(cmd.Key, output.ExitUsage)
	}

	if err := cfg.Unset(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to unset config: %v", err),
			ExitCode: output.ExitConfigError,
			Err:      err,
		}
	}

	fmt.Fprintf(st.Err, "Unset %s\n", cmd.Key)
	return nil
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	type ConfigItem struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	var items []ConfigItem
	for _, key := range config.Keys() {
		value, _ := cfg.Get(key)
		if config.Secret(key) {
			value = maskSecret(value)
		}
		items = append(items, ConfigItem{Key: key, Value: value})
	}

	cols := []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	}

	return fp.Formatter.PrintList(items, cols)
}

// maskSecret masks sensitive values, showing only last 4 characters
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(cfg *config.Config, st *Streams) error {
	path := cfg.Path()

	fmt.Fprintln(st.Out, path)

	// Print existence hint to stderr
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(st.Err, "(file does not exist yet - will be created on first write)\n")
	} else {
		fmt.Fprintf(st.Err, "(file exists)\n")
	}

	return nil
}
