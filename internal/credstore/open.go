// Package credstore picks the secure storage backend for this host and wraps
// it with instrumentation.
package credstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"golang.org/x/time/rate"

	"github.com/semmy-space/credstore/internal/secrets"
	"github.com/semmy-space/credstore/internal/secrets/credman"
	"github.com/semmy-space/credstore/internal/secrets/keychain"
	"github.com/semmy-space/credstore/internal/secrets/secretservice"
)

// Backend names accepted by Open.
const (
	BackendAuto          = "auto"
	BackendKeychain      = "keychain"
	BackendWincred       = "wincred"
	BackendSecretService = "secretservice"
	BackendKeyring       = "keyring"
)

// Names lists every backend name, auto first.
var Names = []string{BackendAuto, BackendKeychain, BackendWincred, BackendSecretService, BackendKeyring}

// ErrUnknownBackend is returned for a backend name Open does not know.
var ErrUnknownBackend = errors.New("unknown backend")

// Config selects and configures a backend.
type Config struct {
	// Backend is one of the Backend* names. Empty means auto.
	Backend string
	Options secrets.Options
	Keyring secrets.KeyringConfig
	// Warnings receives fallback notices. Nil means stderr.
	Warnings io.Writer
	// Quiet suppresses fallback notices.
	Quiet bool
	// MarkerPath records that the fallback notice was shown on this machine.
	// Defaults to a file in the XDG data directory.
	MarkerPath string
}

type host struct {
	goos     string
	wsl      bool
	headless bool
}

func currentHost() host {
	return host{goos: runtime.GOOS, wsl: secrets.IsWSL(), headless: secrets.IsHeadless()}
}

type openFunc func(cfg Config) (secrets.Store, error)

type openers struct {
	keychain      openFunc
	wincred       openFunc
	secretservice openFunc
	keyring       openFunc
}

var system = openers{
	keychain: func(cfg Config) (secrets.Store, error) {
		return store(keychain.Open(cfg.Options))
	},
	wincred: func(cfg Config) (secrets.Store, error) {
		return store(credman.Open(cfg.Options))
	},
	secretservice: func(cfg Config) (secrets.Store, error) {
		return store(secretservice.Open(cfg.Options))
	},
	keyring: func(cfg Config) (secrets.Store, error) {
		return store(secrets.NewKeyringStore(cfg.Options, cfg.Keyring))
	},
}

// store keeps a typed nil from a failed constructor out of the interface.
func store(s secrets.Store, err error) (secrets.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open returns the store for cfg.Backend and the name of the backend chosen.
func Open(cfg Config) (secrets.Store, string, error) {
	return open(cfg, currentHost(), system)
}

func open(cfg Config, h host, o openers) (secrets.Store, string, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "", BackendAuto:
		return openAuto(cfg, h, o)
	case BackendKeychain:
		s, err := o.keychain(cfg)
		return s, name, err
	case BackendWincred:
		s, err := o.wincred(cfg)
		return s, name, err
	case BackendSecretService:
		s, err := o.secretservice(cfg)
		return s, name, err
	case BackendKeyring:
		s, err := o.keyring(cfg)
		return s, name, err
	}
	return nil, "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownBackend, cfg.Backend, strings.Join(Names, ", "))
}

func openAuto(cfg Config, h host, o openers) (secrets.Store, string, error) {
	switch {
	case h.goos == "darwin":
		s, err := o.keychain(cfg)
		return s, BackendKeychain, err
	case h.goos == "windows":
		s, err := o.wincred(cfg)
		return s, BackendWincred, err
	case !secrets.UnixDesktop(h.goos):
		s, err := o.keyring(cfg)
		return s, BackendKeyring, err
	}

	if h.wsl || h.headless {
		shown := cfg.warn("Detected WSL/headless environment, using the keyring file backend")
		return fallback(cfg, o, shown)
	}

	s, err := o.secretservice(cfg)
	if err != nil {
		shown := cfg.warn(fmt.Sprintf("Secret Service unavailable (%v), falling back to the keyring file backend", err))
		return fallback(cfg, o, shown)
	}
	return s, BackendSecretService, nil
}

// fallback opens the keyring store. The marker is written only once the
// notice has actually been shown.
func fallback(cfg Config, o openers, shown bool) (secrets.Store, string, error) {
	if len(cfg.Keyring.Backends) == 0 {
		cfg.Keyring.Backends = []string{"file"}
	}
	s, err := o.keyring(cfg)
	if err != nil {
		return nil, BackendKeyring, err
	}
	if shown {
		cfg.markWarned()
	}
	return s, BackendKeyring, nil
}

// notices limits fallback notices to one per process.
var notices = &rate.Sometimes{First: 1}

// warn prints msg unless notices are suppressed, and reports whether it did.
func (cfg Config) warn(msg string) bool {
	if cfg.Quiet || quietEnv() || fileExists(cfg.markerPath()) {
		return false
	}
	shown := false
	notices.Do(func() {
		w := cfg.Warnings
		if w == nil {
			w = os.Stderr
		}
		fmt.Fprintln(w, "Warning: "+msg)
		shown = true
	})
	return shown
}

// markWarned persists the marker so future commands stay quiet.
func (cfg Config) markWarned() {
	path := cfg.markerPath()
	if fileExists(path) {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	_ = os.WriteFile(path, []byte("1"), 0600)
}

func (cfg Config) markerPath() string {
	if cfg.MarkerPath != "" {
		return cfg.MarkerPath
	}
	return filepath.Join(xdg.DataHome, secrets.AppName, ".fallback-warning-shown")
}

func quietEnv() bool {
	v := os.Getenv("CREDSTORE_QUIET")
	return v == "1" || v == "true"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// BackendInfo describes one backend on this host.
type BackendInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Backends reports which backends can be used here. Secret Service
// availability is probed over D-Bus.
func Backends() []BackendInfo {
	h := currentHost()
	return backends(h, func() error {
		_, err := secretservice.Open(secrets.Options{})
		return err
	})
}

func backends(h host, probeSecretService func() error) []BackendInfo {
	var out []BackendInfo

	kc := BackendInfo{Name: BackendKeychain, Available: h.goos == "darwin"}
	if h.goos == "darwin" {
		if err := keychain.Supported(); err != nil {
			kc.Available, kc.Detail = false, err.Error()
		} else {
			kc.Detail = "macOS Keychain"
		}
	}
	out = append(out, kc)

	wc := BackendInfo{Name: BackendWincred, Available: h.goos == "windows"}
	if wc.Available {
		wc.Detail = "Windows Credential Manager"
	}
	out = append(out, wc)

	ss := BackendInfo{Name: BackendSecretService}
	switch {
	case !secrets.UnixDesktop(h.goos):
	case h.wsl || h.headless:
		ss.Detail = "no desktop session"
	default:
		if err := probeSecretService(); err != nil {
			ss.Detail = err.Error()
		} else {
			ss.Available, ss.Detail = true, "org.freedesktop.secrets"
		}
	}
	out = append(out, ss)

	kr := secrets.KeyringBackends()
	out = append(out, BackendInfo{
		Name:      BackendKeyring,
		Available: len(kr) > 0,
		Detail:    strings.Join(kr, ", "),
	})
	return out
}
