package keychain

import (
	"log/slog"
	"sync"

	"github.com/semmy-space/credstore/internal/secrets"
)

// Store implements secrets.Store against a Native keychain.
type Store struct {
	native Native
	query  queryBuilder
	opts   secrets.Options
	log    *slog.Logger
}

// New creates a store driving native.
func New(native Native, opts secrets.Options) *Store {
	return &Store{
		native: native,
		query:  queryBuilder{namespace: opts.Namespace, accessGroup: opts.AccessGroup},
		opts:   opts,
		log:    opts.Log(),
	}
}

var platformCheck = sync.OnceValue(checkPlatform)

// Supported reports whether the macOS Keychain is usable in this process.
// The check runs once per process.
func Supported() error {
	return platformCheck()
}

// Open creates a store on the system keychain, failing fast with
// secrets.ErrUnsupportedPlatform anywhere else.
func Open(opts secrets.Options) (*Store, error) {
	if err := Supported(); err != nil {
		return nil, err
	}
	return New(systemNative(), opts), nil
}

// Get returns the credential matching service and account, or nil if there
// is none.
func (s *Store) Get(service, account string) (*secrets.Credential, error) {
	sc := newScope(s.native)
	defer sc.Close()

	query, status := s.query.build(sc, modeSearch, service, account)
	if status != StatusSuccess {
		return nil, s.nativeErr(secrets.OpGet, service, account, status)
	}

	result, status := s.native.CopyMatching(query)
	sc.hold(result)

	switch classify(status) {
	case outcomeNotFound:
		return nil, nil
	case outcomeFailure:
		return nil, s.nativeErr(secrets.OpGet, service, account, status)
	}

	cred, err := decode(s.native, result)
	if err != nil {
		return nil, s.violationErr(secrets.OpGet, service, account, err)
	}
	cred.Service = secrets.Unqualify(s.opts.Namespace, cred.Service)
	return cred, nil
}

// AddOrUpdate probes for an existing item and then either adds a new one or
// replaces the secret of the match. A probe failure aborts before anything
// is written.
func (s *Store) AddOrUpdate(service, account string, secret []byte) error {
	if secrets.IsBlank(service) {
		return secrets.Invalid(secrets.OpAddOrUpdate, service, account, "service must not be blank")
	}

	sc := newScope(s.native)
	defer sc.Close()

	probe, status := s.query.build(sc, modeProbe, service, account)
	if status != StatusSuccess {
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}

	ref, status := s.native.CopyMatching(probe)
	sc.hold(ref)

	switch classify(status) {
	case outcomeNotFound:
		return s.add(sc, service, account, secret)
	case outcomeFailure:
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}

	if s.native.TypeOf(ref) == TypeArray {
		return s.violationErr(secrets.OpAddOrUpdate, service, account,
			violationf("probe limited to one item returned a collection"))
	}
	target, err := s.matched(sc, service, account, ref)
	if err != nil {
		return err
	}
	return s.update(sc, service, account, target, secret)
}

// matched builds the update target for the item the lookup found. An
// account filter names that item already. Without one, the account and
// access group come from the returned attributes so no other item of the
// service is rewritten.
func (s *Store) matched(sc *scope, service, account string, found Ref) (Ref, error) {
	if !secrets.IsBlank(account) {
		target, status := s.query.build(sc, modeTarget, service, account)
		if status != StatusSuccess {
			return 0, s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
		}
		return target, nil
	}

	if t := s.native.TypeOf(found); t != TypeDictionary {
		return 0, s.violationErr(secrets.OpAddOrUpdate, service, account,
			violationf("lookup without an account returned a %s instead of an attribute dictionary", t))
	}
	owner, err := stringAttr(s.native, found, AttrAccount)
	if err != nil {
		return 0, s.violationErr(secrets.OpAddOrUpdate, service, account, err)
	}
	group, err := stringAttr(s.native, found, AttrAccessGroup)
	if err != nil {
		return 0, s.violationErr(secrets.OpAddOrUpdate, service, account, err)
	}

	target, status := s.query.exact(sc, secrets.Qualify(s.opts.Namespace, service), owner, group)
	if status != StatusSuccess {
		return 0, s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}
	return target, nil
}

func (s *Store) add(sc *scope, service, account string, secret []byte) error {
	attrs, status := s.query.item(sc, service, account, secret)
	if status != StatusSuccess {
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}

	s.log.Debug("keychain add", "service", secrets.Qualify(s.opts.Namespace, service), "account", account)
	if status := s.native.Add(attrs); status != StatusSuccess {
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}
	return nil
}

func (s *Store) update(sc *scope, service, account string, target Ref, secret []byte) error {
	attrs, status := s.query.secretOnly(sc, secret)
	if status != StatusSuccess {
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}

	s.log.Debug("keychain update", "service", secrets.Qualify(s.opts.Namespace, service), "account", account)
	// An item removed between probe and update surfaces as a native failure;
	// the probe-then-write race is not papered over.
	if status := s.native.Update(target, attrs); status != StatusSuccess {
		return s.nativeErr(secrets.OpAddOrUpdate, service, account, status)
	}
	return nil
}

// Remove deletes every item matching the filter. It reports false when
// nothing matched. A filter with a blank field may delete several items.
func (s *Store) Remove(service, account string) (bool, error) {
	sc := newScope(s.native)
	defer sc.Close()

	target, status := s.query.build(sc, modeTarget, service, account)
	if status != StatusSuccess {
		return false, s.nativeErr(secrets.OpRemove, service, account, status)
	}

	status = s.native.Delete(target)
	switch classify(status) {
	case outcomeOK:
		return true, nil
	case outcomeNotFound:
		return false, nil
	default:
		return false, s.nativeErr(secrets.OpRemove, service, account, status)
	}
}

func (s *Store) nativeErr(op, service, account string, status Status) error {
	return &secrets.StoreError{
		Kind:    secrets.NativeFailure,
		Op:      op,
		Service: secrets.Qualify(s.opts.Namespace, service),
		Account: account,
		Code:    int(status),
		Message: describe(s.native, status),
	}
}

func (s *Store) violationErr(op, service, account string, err error) error {
	return &secrets.StoreError{
		Kind:    secrets.ContractViolation,
		Op:      op,
		Service: secrets.Qualify(s.opts.Namespace, service),
		Account: account,
		Message: err.Error(),
		Err:     err,
	}
}

var _ secrets.Store = (*Store)(nil)
