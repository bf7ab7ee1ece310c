package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
)

// KeyringConfig tunes the portable keyring backend.
type KeyringConfig struct {
	// Dir holds the encrypted file backend. Defaults to the XDG data dir.
	Dir string
	// Backends restricts which keyring backends may be used, in preference
	// order ("file", "pass", "kwallet", "keyctl", ...). Empty lets the
	// library choose.
	Backends []string
	// PasswordFunc unlocks the file backend. Defaults to a terminal prompt.
	PasswordFunc keyring.PromptFunc
}

// KeyringStore implements Store on top of github.com/99designs/keyring. It is
// the fallback for hosts without a usable native store (WSL, headless, CI).
//
// The library only offers a single key dimension, so the qualified service
// and account are folded into one key with FlatKey. The access group selects
// the keyring service name.
type KeyringStore struct {
	ring keyring.Keyring
	opts Options
	log  *slog.Logger
}

// NewKeyringStore opens a keyring-backed credential store.
// Returns an error if no keyring backend is usable on this platform.
func NewKeyringStore(opts Options, kc KeyringConfig) (*KeyringStore, error) {
	dir := kc.Dir
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, AppName, "keyring")
	}
	prompt := kc.PasswordFunc
	if prompt == nil {
		prompt = keyring.TerminalPrompt
	}

	cfg := keyring.Config{
		ServiceName:              keyringServiceName(opts.AccessGroup),
		KeychainTrustApplication: true, // macOS: don't prompt every access
		FileDir:                  dir,
		FilePasswordFunc:         prompt,
		LibSecretCollectionName:  AppName,
		KWalletAppID:             AppName,
		KWalletFolder:            AppName,
	}
	for _, b := range kc.Backends {
		cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.BackendType(b))
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return NewKeyringStoreWith(ring, opts), nil
}

// NewKeyringStoreWith wraps an already opened keyring.
func NewKeyringStoreWith(ring keyring.Keyring, opts Options) *KeyringStore {
	return &KeyringStore{ring: ring, opts: opts, log: opts.Log()}
}

// KeyringBackends lists the keyring backends compiled in for this platform.
func KeyringBackends() []string {
	var names []string
	for _, b := range keyring.AvailableBackends() {
		names = append(names, string(b))
	}
	return names
}

func keyringServiceName(accessGroup string) string {
	if accessGroup == "" {
		return AppName
	}
	return accessGroup
}

// Get retrieves the first credential matching service and account.
func (s *KeyringStore) Get(service, account string) (*Credential, error) {
	q := s.opts.Lookup(service, account)

	key, err := s.match(q)
	if err != nil {
		return nil, s.nativeErr(OpGet, q, err)
	}
	if key == "" {
		return nil, nil
	}

	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, s.nativeErr(OpGet, q, err)
	}

	qualified, acct, _ := SplitFlatKey(item.Key)
	return &Credential{
		Service: Unqualify(s.opts.Namespace, qualified),
		Account: acct,
		Secret:  item.Data,
		Label:   item.Label,
	}, nil
}

// AddOrUpdate stores secret, replacing the secret of an existing match.
func (s *KeyringStore) AddOrUpdate(service, account string, secret []byte) error {
	if IsBlank(service) {
		return Invalid(OpAddOrUpdate, service, account, "service must not be blank")
	}
	q := s.opts.Lookup(service, account)

	key, err := s.match(q)
	if err != nil {
		return s.nativeErr(OpAddOrUpdate, q, err)
	}

	if key == "" {
		s.log.Debug("keyring add", "service", q.QualifiedService(), "account", account)
		item := keyring.Item{
			Key:  FlatKey(q.QualifiedService(), account),
			Data: secret,
		}
		if err := s.ring.Set(item); err != nil {
			return s.nativeErr(OpAddOrUpdate, q, err)
		}
		return nil
	}

	existing, err := s.ring.Get(key)
	if err != nil {
		return s.nativeErr(OpAddOrUpdate, q, err)
	}
	s.log.Debug("keyring update", "key", key)
	existing.Data = secret
	if err := s.ring.Set(existing); err != nil {
		return s.nativeErr(OpAddOrUpdate, q, err)
	}
	return nil
}

// Remove deletes the first credential matching service and account.
func (s *KeyringStore) Remove(service, account string) (bool, error) {
	q := s.opts.Lookup(service, account)

	key, err := s.match(q)
	if err != nil {
		return false, s.nativeErr(OpRemove, q, err)
	}
	if key == "" {
		return false, nil
	}

	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return false, nil
		}
		return false, s.nativeErr(OpRemove, q, err)
	}
	return true, nil
}

// match resolves q to a stored key. Fully specified lookups are answered from
// the key listing alone so no secret is read. Partial lookups return the
// lexically first match.
func (s *KeyringStore) match(q LookupQuery) (string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return "", err
	}

	if q.Exact() {
		key := FlatKey(q.QualifiedService(), q.Account)
		if slices.Contains(keys, key) {
			return key, nil
		}
		return "", nil
	}

	sort.Strings(keys)
	for _, key := range keys {
		qualified, account, ok := SplitFlatKey(key)
		if !ok {
			continue
		}
		if !IsBlank(q.Service) && qualified != q.QualifiedService() {
			continue
		}
		if IsBlank(q.Service) && q.Namespace != "" && !strings.HasPrefix(qualified, q.Namespace+":") {
			continue
		}
		if !IsBlank(q.Account) && account != q.Account {
			continue
		}
		return key, nil
	}
	return "", nil
}

func (s *KeyringStore) nativeErr(op string, q LookupQuery, err error) error {
	return &StoreError{
		Kind:    NativeFailure,
		Op:      op,
		Service: q.QualifiedService(),
		Account: q.Account,
		Err:     err,
	}
}

var _ Store = (*KeyringStore)(nil)
