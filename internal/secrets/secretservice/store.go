package secretservice

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"github.com/godbus/dbus/v5"

	"github.com/semmy-space/credstore/internal/secrets"
)

// Item attribute names. Schema marks items written by this package so a
// search never touches credentials other programs stored.
const (
	Schema = "io.github.semmy-space.credstore.Password"

	attrSchema      = "xdg:schema"
	attrService     = "service"
	attrAccount     = "account"
	attrNamespace   = "namespace"
	attrAccessGroup = "access_group"
)

// ErrUnavailable is returned by Open when no Secret Service answers on the
// session bus.
var ErrUnavailable = errors.New("secret service is not available")

// Connector opens a Service. The store connects once per operation.
type Connector func() (Service, error)

// Store implements secrets.Store over the Secret Service.
type Store struct {
	connect Connector
	opts    secrets.Options
	log     *slog.Logger
}

// New creates a store that dials through connect.
func New(connect Connector, opts secrets.Options) *Store {
	return &Store{connect: connect, opts: opts, log: opts.Log()}
}

// Open checks that a Secret Service is reachable, retrying briefly for
// daemons that are activated on first use, and returns a store on it.
func Open(opts secrets.Options) (*Store, error) {
	if err := ping(Connect, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return New(Connect, opts), nil
}

func ping(connect Connector, b backoff.BackOff) error {
	return backoff.Retry(func() error {
		svc, err := connect()
		if err != nil {
			// No session bus at all; retrying will not create one.
			return backoff.Permanent(err)
		}
		defer svc.Close()
		return svc.Ping()
	}, b)
}

// call runs fn with an open connection and session and releases both on
// every return path.
func (s *Store) call(fn func(svc Service, session dbus.ObjectPath) error) error {
	svc, err := s.connect()
	if err != nil {
		return err
	}
	defer svc.Close()

	session, err := svc.OpenSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.CloseSession(session); err != nil {
			s.log.Debug("secret service session close failed", "session", session, "error", err)
		}
	}()

	return fn(svc, session)
}

func (s *Store) filter(q secrets.LookupQuery) map[string]string {
	attrs := map[string]string{attrSchema: Schema}
	if !secrets.IsBlank(q.Service) {
		attrs[attrService] = q.QualifiedService()
	}
	if !secrets.IsBlank(q.Account) {
		attrs[attrAccount] = q.Account
	}
	if q.Namespace != "" {
		attrs[attrNamespace] = q.Namespace
	}
	if q.AccessGroup != "" {
		attrs[attrAccessGroup] = q.AccessGroup
	}
	return attrs
}

type match struct {
	path  dbus.ObjectPath
	attrs map[string]string
}

// find returns the first matching item in (service, account) order. Locked
// matches are unlocked first. An exact query matching several items is a
// contract violation.
func (s *Store) find(svc Service, op string, q secrets.LookupQuery) (*match, error) {
	unlocked, locked, err := svc.SearchItems(s.filter(q))
	if err != nil {
		return nil, err
	}
	if len(locked) > 0 {
		s.log.Debug("unlocking secret service items", "count", len(locked))
		more, err := svc.Unlock(locked)
		if err != nil {
			return nil, err
		}
		unlocked = append(unlocked, more...)
	}

	var hits []match
	for _, path := range unlocked {
		attrs, err := svc.Attributes(path)
		if isNoSuchObject(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, match{path: path, attrs: attrs})
	}
	if len(hits) == 0 {
		return nil, nil
	}
	if q.Exact() && len(hits) > 1 {
		return nil, secrets.Ambiguous(op, q.QualifiedService(), q.Account, len(hits))
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i].attrs, hits[j].attrs
		if a[attrService] != b[attrService] {
			return a[attrService] < b[attrService]
		}
		return a[attrAccount] < b[attrAccount]
	})
	return &hits[0], nil
}

func (s *Store) Get(service, account string) (*secrets.Credential, error) {
	q := s.opts.Lookup(service, account)
	var cred *secrets.Credential

	err := s.call(func(svc Service, session dbus.ObjectPath) error {
		m, err := s.find(svc, secrets.OpGet, q)
		if err != nil || m == nil {
			return err
		}
		secret, err := svc.GetSecret(m.path, session)
		if isNoSuchObject(err) {
			return nil
		}
		if err != nil {
			return err
		}
		label, err := svc.Label(m.path)
		if err != nil && !isNoSuchObject(err) {
			return err
		}
		cred = &secrets.Credential{
			Service: secrets.Unqualify(s.opts.Namespace, m.attrs[attrService]),
			Account: m.attrs[attrAccount],
			Secret:  secret.Value,
			Label:   label,
		}
		return nil
	})
	if err != nil {
		return nil, s.nativeErr(secrets.OpGet, q, err)
	}
	return cred, nil
}

func (s *Store) AddOrUpdate(service, account string, secret []byte) error {
	if secrets.IsBlank(service) {
		return secrets.Invalid(secrets.OpAddOrUpdate, service, account, "service must not be blank")
	}
	q := s.opts.Lookup(service, account)

	err := s.call(func(svc Service, session dbus.ObjectPath) error {
		value := Secret{Session: session, Value: secret, ContentType: "application/octet-stream"}

		m, err := s.find(svc, secrets.OpAddOrUpdate, q)
		if err != nil {
			return err
		}
		if m != nil {
			s.log.Debug("secret service update", "item", m.path)
			return svc.SetSecret(m.path, value)
		}

		attrs := s.filter(q)
		attrs[attrAccount] = account
		label := q.QualifiedService()
		if account != "" {
			label += " (" + account + ")"
		}
		path, err := svc.CreateItem(label, attrs, value)
		if err != nil {
			return err
		}
		s.log.Debug("secret service add", "item", path)
		return nil
	})
	if err != nil {
		return s.nativeErr(secrets.OpAddOrUpdate, q, err)
	}
	return nil
}

func (s *Store) Remove(service, account string) (bool, error) {
	q := s.opts.Lookup(service, account)
	var removed bool

	err := s.call(func(svc Service, _ dbus.ObjectPath) error {
		m, err := s.find(svc, secrets.OpRemove, q)
		if err != nil || m == nil {
			return err
		}
		err = svc.Delete(m.path)
		if isNoSuchObject(err) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, s.nativeErr(secrets.OpRemove, q, err)
	}
	return removed, nil
}

// nativeErr classifies err as a native failure. Errors that already carry a
// kind pass through unchanged.
func (s *Store) nativeErr(op string, q secrets.LookupQuery, err error) error {
	var classified *secrets.StoreError
	if errors.As(err, &classified) {
		return classified
	}
	se := &secrets.StoreError{
		Kind:    secrets.NativeFailure,
		Op:      op,
		Service: q.QualifiedService(),
		Account: q.Account,
		Err:     err,
	}
	if de, ok := asDBusError(err); ok {
		se.Message = de.Name
		if len(de.Body) > 0 {
			se.Message = fmt.Sprintf("%s: %v", de.Name, de.Body[0])
		}
	}
	return se
}

var _ secrets.Store = (*Store)(nil)
