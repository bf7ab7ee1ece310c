package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/99designs/keyring"

	"github.com/semmy-space/credstore/internal/config"
	"github.com/semmy-space/credstore/internal/credstore"
	"github.com/semmy-space/credstore/internal/secrets"
)

// StoreProvider lazily opens and caches the credential store, so commands
// that never touch it (config, version) do not pay for backend detection.
type StoreProvider struct {
	cfg     credstore.Config
	metrics *credstore.Metrics
	log     *slog.Logger
	open    func(credstore.Config) (secrets.Store, string, error)

	once    sync.Once
	store   secrets.Store
	backend string
	err     error
}

// NewStoreProvider creates a StoreProvider from the merged flags and config.
func NewStoreProvider(g *Globals, cfg *config.Config, metrics *credstore.Metrics, log *slog.Logger) *StoreProvider {
	backend := g.Backend
	if backend == "" {
		backend = cfg.Backend
	}
	namespace := g.Namespace
	if namespace == "" {
		namespace = cfg.Namespace
	}
	accessGroup := g.AccessGroup
	if accessGroup == "" {
		accessGroup = cfg.AccessGroup
	}

	return &StoreProvider{
		cfg: credstore.Config{
			Backend: backend,
			Options: secrets.Options{
				Namespace:   namespace,
				AccessGroup: accessGroup,
				Logger:      log,
			},
			Keyring: secrets.KeyringConfig{
				Dir:          cfg.KeyringDir,
				Backends:     cfg.Backends(),
				PasswordFunc: keyringPassword(g.NoInput),
			},
		},
		metrics: metrics,
		log:     log,
		open:    credstore.Open,
	}
}

// keyringPassword unlocks the file backend from CREDSTORE_KEYRING_PASSWORD
// when set, and otherwise prompts unless prompts are disabled.
func keyringPassword(noInput bool) keyring.PromptFunc {
	if pw, ok := os.LookupEnv("CREDSTORE_KEYRING_PASSWORD"); ok {
		return keyring.FixedStringPrompt(pw)
	}
	if noInput {
		return func(string) (string, error) {
			return "", errors.New("keyring file backend is locked; set CREDSTORE_KEYRING_PASSWORD or drop --no-input")
		}
	}
	return keyring.TerminalPrompt
}

// Store returns the instrumented store, opening it on first call.
func (sp *StoreProvider) Store() (secrets.Store, error) {
	sp.once.Do(func() {
		store, backend, err := sp.open(sp.cfg)
		sp.backend = backend
		if err != nil {
			sp.err = storeErr(fmt.Errorf("failed to open %s backend: %w", describeBackend(backend, sp.cfg.Backend), err))
			return
		}
		sp.log.Debug("credential store opened", "backend", backend, "namespace", sp.cfg.Options.Namespace)
		if sp.metrics != nil {
			store = credstore.Instrument(store, backend, sp.metrics, sp.log)
		}
		sp.store = store
	})
	return sp.store, sp.err
}

// Backend returns the name of the backend opened, or "" before Store.
func (sp *StoreProvider) Backend() string {
	return sp.backend
}

func describeBackend(chosen, requested string) string {
	switch {
	case chosen != "":
		return chosen
	case requested != "":
		return requested
	}
	return credstore.BackendAuto
}
