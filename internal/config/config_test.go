package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Backend)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // comments are allowed
  backend: "keyring",
  namespace: 'work',
  keyring_backends: "file, pass",
}`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "keyring", cfg.Backend)
	assert.Equal(t, "work", cfg.Namespace)
	assert.Equal(t, []string{"file", "pass"}, cfg.Backends())
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{backend: `), 0600))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSetGetUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json5")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("namespace", "work"))
	require.NoError(t, cfg.Set("backend", "secretservice"))

	reloaded, err := LoadFrom(path)
	require.NoError(t, err)
	v, err := reloaded.Get("namespace")
	require.NoError(t, err)
	assert.Equal(t, "work", v)
	assert.Equal(t, "secretservice", reloaded.Backend)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, reloaded.Unset("namespace"))
	reloaded, err = LoadFrom(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Namespace)
}

func TestSetValidation(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.Set("backend", "vault"), "valid values are")
	assert.ErrorContains(t, cfg.Set("default_output", "xml"), "valid values are")
	assert.ErrorContains(t, cfg.Set("region", "us"), "unknown config key")
	_, err = cfg.Get("nope")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Equal(t, "backend", keys[0])
	assert.Contains(t, keys, "oauth_token_url")
	assert.NotContains(t, keys, "path")
	assert.True(t, Secret("oauth_client_secret"))
	assert.False(t, Secret("namespace"))
}

func TestConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := LoadFrom(path)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, cfg.Set("namespace", "ns"))
		}()
	}
	wg.Wait()

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "ns", cfg.Namespace)
}

func TestConfigPathOverride(t *testing.T) {
	t.Setenv("CREDSTORE_CONFIG", "/tmp/elsewhere.json5")
	assert.Equal(t, "/tmp/elsewhere.json5", ConfigPath())
}
