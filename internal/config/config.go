package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Config holds the CLI configuration
type Config struct {
	Backend         string `json:"backend,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
	AccessGroup     string `json:"access_group,omitempty"`
	KeyringDir      string `json:"keyring_dir,omitempty"`
	KeyringBackends string `json:"keyring_backends,omitempty"`
	DefaultOutput   string `json:"default_output,omitempty"`
	MetricsFile     string `json:"metrics_file,omitempty"`

	OAuthClientID     string `json:"oauth_client_id,omitempty"`
	OAuthClientSecret string `json:"oauth_client_secret,omitempty"`
	OAuthTokenURL     string `json:"oauth_token_url,omitempty"`

	path string
}

// Allowed values for enumerated keys. Empty is always allowed.
var allowed = map[string][]string{
	"backend":        {"auto", "keychain", "wincred", "secretservice", "keyring"},
	"default_output": {"auto", "json", "plain", "rich"},
}

// Secret reports whether the key holds a value that should be masked.
func Secret(key string) bool {
	return key == "oauth_client_secret"
}

// Load reads config from XDG path, returns defaults if file doesn't exist
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, returning defaults if it doesn't exist.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{path: path}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Config{path: path}
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Path returns the file the config is saved to.
func (c *Config) Path() string {
	if c.path == "" {
		return ConfigPath()
	}
	return c.path
}

// Save writes the config. Concurrent writers are serialised by a lock file
// next to it.
func (c *Config) Save() error {
	path := c.Path()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock config: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock config: timeout")
	}
	defer lock.Unlock()

	// JSON is valid JSON5
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Keys returns every config key in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Config{})
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		if name := jsonName(t.Field(i)); name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// field finds the string field tagged with key.
func (c *Config) field(key string) (reflect.Value, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if jsonName(t.Field(i)) == key {
			return v.Field(i), nil
		}
	}

	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

// Get retrieves a config value by key name
func (c *Config) Get(key string) (string, error) {
	f, err := c.field(key)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// Set validates and sets a config value by key name and saves
func (c *Config) Set(key, value string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	if values, ok := allowed[key]; ok && value != "" && !slices.Contains(values, value) {
		return fmt.Errorf("invalid %s %q: valid values are %s", key, value, strings.Join(values, ", "))
	}
	f.SetString(value)
	return c.Save()
}

// Unset sets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	f.SetString("")
	return c.Save()
}

// Backends splits keyring_backends into its names.
func (c *Config) Backends() []string {
	var out []string
	for _, b := range strings.Split(c.KeyringBackends, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
