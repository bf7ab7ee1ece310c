package secrets_test

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/semmy-space/credstore/internal/secrets"
	"github.com/semmy-space/credstore/internal/secrets/secretstest"
)

func TestKeyringStoreContract(t *testing.T) {
	secretstest.RunContract(t, func(t *testing.T) secretstest.Opener {
		ring := keyring.NewArrayKeyring(nil)
		return func(opts secrets.Options) secrets.Store {
			return secrets.NewKeyringStoreWith(ring, opts)
		}
	})
}
