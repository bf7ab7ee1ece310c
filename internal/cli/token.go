package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/semmy-space/credstore/internal/auth"
	"github.com/semmy-space/credstore/internal/config"
	"github.com/semmy-space/credstore/internal/output"
)

// TokenCmd holds OAuth2 token subcommands
type TokenCmd struct {
	Save  TokenSaveCmd  `cmd:"" help:"Store an OAuth2 token read as JSON from standard input"`
	Get   TokenGetCmd   `cmd:"" help:"Print a valid access token, refreshing it when needed"`
	Clear TokenClearCmd `cmd:"" help:"Remove the stored token"`
}

// TokenTarget names where a token lives.
type TokenTarget struct {
	Service string `help:"Service the token is stored under" default:"oauth2"`
	Account string `arg:"" help:"Account the token belongs to"`
}

func (t TokenTarget) open(sp *StoreProvider) (*auth.TokenStore, error) {
	store, err := sp.Store()
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(config.CacheDir(), "token.lock")
	return auth.NewTokenStore(store, t.Service, t.Account, lockPath, sp.log), nil
}

// TokenSaveCmd implements token save
type TokenSaveCmd struct {
	TokenTarget `embed:""`
}

// Run executes the token save command
func (cmd *TokenSaveCmd) Run(sp *StoreProvider, st *Streams) error {
	var tok oauth2.Token
	if err := json.NewDecoder(st.In).Decode(&tok); err != nil {
		return output.Wrap(output.ExitUsage, err, "invalid token JSON")
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return output.NewCLIError(output.ExitUsage, "token has neither access_token nor refresh_token")
	}
	// expires_in is relative to when the token was issued, which is now.
	if tok.Expiry.IsZero() && tok.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	ts, err := cmd.open(sp)
	if err != nil {
		return err
	}
	if err := ts.Save(context.Background(), &tok); err != nil {
		return storeErr(err)
	}
	fmt.Fprintf(st.Err, "Stored token for %s\n", cmd.Account)
	return nil
}

// TokenGetCmd implements token get
type TokenGetCmd struct {
	TokenTarget `embed:""`
}

// Run executes the token get command
func (cmd *TokenGetCmd) Run(cfg *config.Config, fp *FormatterProvider, sp *StoreProvider, st *Streams) error {
	ts, err := cmd.open(sp)
	if err != nil {
		return err
	}

	var tok *oauth2.Token
	if cfg.OAuthTokenURL == "" {
		tok, err = ts.Load()
		if err == nil && !tok.Valid() {
			return output.NewCLIError(output.ExitAuth, "stored token has expired").
				WithHint("Run: credstore config set oauth_token_url <url> to enable refresh")
		}
	} else {
		oc := &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuthTokenURL},
		}
		tok, err = ts.TokenSource(context.Background(), oc).Token()
	}
	if errors.Is(err, auth.ErrNoToken) {
		return output.NewCLIError(output.ExitNotFound, "no token stored for "+cmd.Account).
			WithHint("Run: credstore token save " + cmd.Account)
	}
	if err != nil {
		return storeErr(err)
	}

	if fp.Mode == "json" {
		return fp.Formatter.Print(map[string]any{
			"access_token": tok.AccessToken,
			"token_type":   tok.Type(),
			"expiry":       tok.Expiry,
		})
	}
	_, err = fmt.Fprintln(st.Out, tok.AccessToken)
	return err
}

// TokenClearCmd implements token clear
type TokenClearCmd struct {
	TokenTarget `embed:""`
}

// Run executes the token clear command
func (cmd *TokenClearCmd) Run(sp *StoreProvider, st *Streams) error {
	ts, err := cmd.open(sp)
	if err != nil {
		return err
	}
	removed, err := ts.Clear(context.Background())
	if err != nil {
		return storeErr(err)
	}
	if removed {
		fmt.Fprintf(st.Err, "Removed token for %s\n", cmd.Account)
	} else {
		fmt.Fprintf(st.Err, "No token stored for %s\n", cmd.Account)
	}
	return nil
}
