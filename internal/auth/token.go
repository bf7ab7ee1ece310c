package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"

	"github.com/semmy-space/credstore/internal/output"
	"github.com/semmy-space/credstore/internal/secrets"
)

// DefaultService is the service name tokens are stored under when the
// caller does not pick one.
const DefaultService = "oauth2"

// refreshWindow is how long before expiry a token is refreshed.
const refreshWindow = 5 * time.Minute

// ErrNoToken is returned by Load when nothing is stored for the account.
var ErrNoToken = errors.New("no token stored")

// TokenStore persists an oauth2.Token as JSON in a secrets.Store. Writers
// are serialised through a lock file so concurrent processes do not race a
// refresh.
type TokenStore struct {
	store    secrets.Store
	service  string
	account  string
	lockPath string
	log      *slog.Logger
}

// NewTokenStore creates a token store for service/account. lockPath is the
// file used to serialise refreshes; its directory is created on first use.
func NewTokenStore(store secrets.Store, service, account, lockPath string, log *slog.Logger) *TokenStore {
	if service == "" {
		service = DefaultService
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TokenStore{
		store:    store,
		service:  service,
		account:  account,
		lockPath: lockPath,
		log:      log,
	}
}

// lock acquires the refresh lock, waiting at most 10 seconds.
func (ts *TokenStore) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(ts.lockPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(ts.lockPath)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, &output.CLIError{
			ExitCode: output.ExitTimeout,
			Message:  fmt.Sprintf("failed to acquire token lock: %v", err),
			Err:      err,
		}
	}
	if !locked {
		return nil, output.NewCLIError(output.ExitTimeout, "failed to acquire token lock: timeout")
	}
	return func() { _ = lock.Unlock() }, nil
}

// Load reads the stored token.
func (ts *TokenStore) Load() (*oauth2.Token, error) {
	cred, err := ts.store.Get(ts.service, ts.account)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNoToken
	}

	var tok oauth2.Token
	if err := json.Unmarshal(cred.Secret, &tok); err != nil {
		return nil, fmt.Errorf("stored token for %s is not valid JSON: %w", ts.service, err)
	}
	return &tok, nil
}

// Save stores tok, replacing any previous token.
func (ts *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	unlock, err := ts.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return ts.save(tok)
}

func (ts *TokenStore) save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return ts.store.AddOrUpdate(ts.service, ts.account, data)
}

// Clear removes the stored token. It reports whether a token was present.
func (ts *TokenStore) Clear(ctx context.Context) (bool, error) {
	unlock, err := ts.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()
	return ts.store.Remove(ts.service, ts.account)
}

// TokenSource returns a source that serves the stored token and refreshes it
// through cfg once it is within five minutes of expiry. Rotated tokens are
// written back.
func (ts *TokenStore) TokenSource(ctx context.Context, cfg *oauth2.Config) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, &refresher{ctx: ctx, cfg: cfg, ts: ts}, refreshWindow)
}

type refresher struct {
	ctx context.Context
	cfg *oauth2.Config
	ts  *TokenStore
}

func (r *refresher) Token() (*oauth2.Token, error) {
	unlock, err := r.ts.lock(r.ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another process may have refreshed while we waited for the lock.
	tok, err := r.ts.Load()
	if errors.Is(err, ErrNoToken) {
		return nil, output.NewCLIError(output.ExitAuth, "no token stored").
			WithHint("Run: credstore token save")
	}
	if err != nil {
		return nil, err
	}
	if tok.Expiry.IsZero() || time.Until(tok.Expiry) > refreshWindow {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, output.NewCLIError(output.ExitAuth, "stored token has expired and carries no refresh token").
			WithHint("Run: credstore token save")
	}

	r.ts.log.Debug("refreshing oauth2 token", "service", r.ts.service, "expiry", tok.Expiry)
	stale := *tok
	stale.AccessToken = ""
	fresh, err := r.cfg.TokenSource(r.ctx, &stale).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, (&output.CLIError{
				ExitCode: output.ExitAuth,
				Message:  "refresh token expired or revoked",
				Err:      err,
			}).WithHint("Run: credstore token save")
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	if err := r.ts.save(fresh); err != nil {
		// The caller still gets a working token.
		r.ts.log.Warn("failed to store refreshed token", "service", r.ts.service, "error", err)
	}
	return fresh, nil
}
