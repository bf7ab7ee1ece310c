package secretstest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/credstore/internal/secrets"
)

// Opener constructs a store over one shared backing service.
type Opener func(opts secrets.Options) secrets.Store

// Factory returns an Opener bound to a fresh, empty backing service. Stores
// opened from the same Opener must observe each other's writes.
type Factory func(t *testing.T) Opener

// Seeder writes a second entry for service and account next to one already
// stored through open, as another program sharing the backing service could.
type Seeder func(t *testing.T, open Opener, service, account string, secret []byte)

// SeedInAccessGroup returns a Seeder that writes the duplicate under group.
// It suits backends that keep the access group as an item attribute, so the
// same service and account may exist once per group.
func SeedInAccessGroup(group string) Seeder {
	return func(t *testing.T, open Opener, service, account string, secret []byte) {
		t.Helper()
		require.NoError(t, open(secrets.Options{AccessGroup: group}).AddOrUpdate(service, account, secret))
	}
}

// Option adjusts RunContract.
type Option func(*suite)

type suite struct {
	duplicate Seeder
}

// WithDuplicates enables the cases that need two entries for one service and
// account. Backends whose native key admits only one such entry leave it out.
func WithDuplicates(seed Seeder) Option {
	return func(s *suite) { s.duplicate = seed }
}

// RunContract runs the store contract suite against a backend.
//
//	secretstest.RunContract(t, func(t *testing.T) secretstest.Opener {
//	    native := newFakeNative()
//	    return func(opts secrets.Options) secrets.Store { return New(native, opts) }
//	})
func RunContract(t *testing.T, factory Factory, opts ...Option) {
	t.Helper()

	var cfg suite
	for _, o := range opts {
		o(&cfg)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("pw1")))

		cred, err := store.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "svc", cred.Service)
		assert.Equal(t, "alice", cred.Account)
		assert.Equal(t, []byte("pw1"), cred.Secret)
	})

	t.Run("UpsertKeepsOneEntry", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("pw1")))
		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("pw2")))

		cred, err := store.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, []byte("pw2"), cred.Secret)

		removed, err := store.Remove("svc", "alice")
		require.NoError(t, err)
		assert.True(t, removed)

		// A second entry for the same key would surface here.
		cred, err = store.Get("svc", "alice")
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		removed, err := store.Remove("svc", "alice")
		require.NoError(t, err)
		assert.False(t, removed, "remove of a never-added key")

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("pw")))

		removed, err = store.Remove("svc", "alice")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.Remove("svc", "alice")
		require.NoError(t, err)
		assert.False(t, removed, "second remove")

		cred, err := store.Get("svc", "alice")
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("GetMissingIsNotAnError", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		cred, err := store.Get("nothing-here", "nobody")
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		open := factory(t)
		ns1 := open(secrets.Options{Namespace: "ns1"})
		ns2 := open(secrets.Options{Namespace: "ns2"})

		require.NoError(t, ns1.AddOrUpdate("svc", "alice", []byte("X")))
		require.NoError(t, ns2.AddOrUpdate("svc", "alice", []byte("Y")))

		c1, err := ns1.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, c1)
		assert.Equal(t, []byte("X"), c1.Secret)
		assert.Equal(t, "svc", c1.Service)

		c2, err := ns2.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, c2)
		assert.Equal(t, []byte("Y"), c2.Secret)

		removed, err := ns1.Remove("svc", "alice")
		require.NoError(t, err)
		assert.True(t, removed)

		c2, err = ns2.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, c2, "removing in ns1 must not touch ns2")
	})

	t.Run("EmptyAccountMatchesAny", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("pw")))

		cred, err := store.Get("svc", "")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "alice", cred.Account)
		assert.Equal(t, []byte("pw"), cred.Secret)
	})

	t.Run("BlankAccountUpdatesExistingEntry", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("a")))
		require.NoError(t, store.AddOrUpdate("svc", "", []byte("b")))

		cred, err := store.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, []byte("b"), cred.Secret)

		removed, err := store.Remove("svc", "alice")
		require.NoError(t, err)
		assert.True(t, removed)

		// An entry added for the blank account would surface here.
		cred, err = store.Get("svc", "")
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("BlankAccountUpdatesOneEntry", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("a")))
		require.NoError(t, store.AddOrUpdate("svc", "bob", []byte("b")))
		require.NoError(t, store.AddOrUpdate("svc", "", []byte("new")))

		changed := 0
		for _, account := range []string{"alice", "bob"} {
			cred, err := store.Get("svc", account)
			require.NoError(t, err)
			require.NotNil(t, cred, account)
			if string(cred.Secret) == "new" {
				changed++
			}
		}
		assert.Equal(t, 1, changed)
	})

	t.Run("AmbiguousMatchIsContractViolation", func(t *testing.T) {
		if cfg.duplicate == nil {
			t.Skip("backend keeps one entry per service and account")
		}
		open := factory(t)
		store := open(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("first")))
		cfg.duplicate(t, open, "svc", "alice", []byte("second"))

		cred, err := store.Get("svc", "alice")
		assert.Nil(t, cred)
		assert.True(t, errors.Is(err, secrets.ErrContractViolation), "get: %v", err)

		err = store.AddOrUpdate("svc", "alice", []byte("third"))
		assert.Equal(t, secrets.ContractViolation, secrets.KindOf(err), "add-or-update: %v", err)

		// A blank account filter still resolves to one entry.
		cred, err = store.Get("svc", "")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "alice", cred.Account)
		assert.NotEqual(t, []byte("third"), cred.Secret)
	})

	t.Run("AccountsStayDistinct", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		require.NoError(t, store.AddOrUpdate("svc", "alice", []byte("a")))
		require.NoError(t, store.AddOrUpdate("svc", "bob", []byte("b")))

		alice, err := store.Get("svc", "alice")
		require.NoError(t, err)
		require.NotNil(t, alice)
		assert.Equal(t, []byte("a"), alice.Secret)

		bob, err := store.Get("svc", "bob")
		require.NoError(t, err)
		require.NotNil(t, bob)
		assert.Equal(t, []byte("b"), bob.Secret)
	})

	t.Run("BinarySecretSurvives", func(t *testing.T) {
		store := factory(t)(secrets.Options{})
		secret := []byte{0x00, 0xff, 0xfe, 'p', 0x80, 0x00}

		require.NoError(t, store.AddOrUpdate("svc", "bin", secret))

		cred, err := store.Get("svc", "bin")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, secret, cred.Secret)
	})

	t.Run("BlankServiceRejected", func(t *testing.T) {
		store := factory(t)(secrets.Options{})

		for _, service := range []string{"", "   ", "\t"} {
			err := store.AddOrUpdate(service, "alice", []byte("pw"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, secrets.ErrInvalidArgument), "service %q: %v", service, err)
			assert.Equal(t, secrets.InvalidArgument, secrets.KindOf(err))
		}
	})
}
