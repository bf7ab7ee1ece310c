// Package credman stores credentials in the Windows Credential Manager as
// generic credentials.
//
// Credential Manager has a single lookup key, the target name. Service and
// account are folded into it with secrets.FlatKey behind an application
// prefix, and partial lookups list by prefix and filter locally.
package credman

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"syscall"

	"github.com/semmy-space/credstore/internal/secrets"
)

// MaxBlobSize is the largest secret Credential Manager accepts
// (CRED_MAX_CREDENTIAL_BLOB_SIZE).
const MaxBlobSize = 5 * 512

// accessGroupAttr names the credential attribute holding the access group.
const accessGroupAttr = "credstore.access_group"

// targetPrefix keeps credstore entries apart from every other credential on
// the machine.
const targetPrefix = secrets.AppName + ":"

// errorAlreadyExists is ERROR_ALREADY_EXISTS.
const errorAlreadyExists = 183

// ErrNotFound is returned by a Vault when no credential has the target.
var ErrNotFound = errors.New("element not found")

// Entry is a generic credential as Credential Manager stores it.
type Entry struct {
	Target  string
	User    string
	Comment string
	Blob    []byte
	Attrs   map[string][]byte
}

// Vault is the Credential Manager surface the store uses.
type Vault interface {
	Read(target string) (*Entry, error)
	// List returns entries whose target matches filter, which may end in
	// "*". No match is an empty result.
	List(filter string) ([]*Entry, error)
	Write(e *Entry) error
	Delete(target string) error
}

// Store implements secrets.Store over a Vault.
type Store struct {
	vault Vault
	opts  secrets.Options
	log   *slog.Logger
}

// New creates a store over vault.
func New(vault Vault, opts secrets.Options) *Store {
	return &Store{vault: vault, opts: opts, log: opts.Log()}
}

// Open creates a store on the system Credential Manager.
func Open(opts secrets.Options) (*Store, error) {
	vault, err := systemVault()
	if err != nil {
		return nil, err
	}
	return New(vault, opts), nil
}

func target(qualified, account string) string {
	return targetPrefix + secrets.FlatKey(qualified, account)
}

func (s *Store) Get(service, account string) (*secrets.Credential, error) {
	q := s.opts.Lookup(service, account)
	e, err := s.find(q)
	if err != nil {
		return nil, s.nativeErr(secrets.OpGet, q, err)
	}
	if e == nil {
		return nil, nil
	}
	qualified, acct, _ := split(e.Target)
	return &secrets.Credential{
		Service: secrets.Unqualify(s.opts.Namespace, qualified),
		Account: acct,
		Secret:  e.Blob,
		Label:   e.Comment,
	}, nil
}

func (s *Store) AddOrUpdate(service, account string, secret []byte) error {
	if secrets.IsBlank(service) {
		return secrets.Invalid(secrets.OpAddOrUpdate, service, account, "service must not be blank")
	}
	if len(secret) > MaxBlobSize {
		return secrets.Invalid(secrets.OpAddOrUpdate, service, account,
			fmt.Sprintf("secret is %d bytes, credential manager allows %d", len(secret), MaxBlobSize))
	}

	q := s.opts.Lookup(service, account)
	t := target(q.QualifiedService(), account)

	existing, err := s.current(q, t)
	if err != nil {
		return s.nativeErr(secrets.OpAddOrUpdate, q, err)
	}

	if existing == nil {
		e := &Entry{Target: t, User: account, Blob: secret}
		if q.AccessGroup != "" {
			e.Attrs = map[string][]byte{accessGroupAttr: []byte(q.AccessGroup)}
		}
		s.log.Debug("credman add", "target", t)
		if err := s.vault.Write(e); err != nil {
			return s.nativeErr(secrets.OpAddOrUpdate, q, err)
		}
		return nil
	}

	if q.AccessGroup != "" && group(existing) != q.AccessGroup {
		return &secrets.StoreError{
			Kind:    secrets.NativeFailure,
			Op:      secrets.OpAddOrUpdate,
			Service: q.QualifiedService(),
			Account: account,
			Code:    errorAlreadyExists,
			Message: fmt.Sprintf("target is owned by access group %q", group(existing)),
		}
	}

	s.log.Debug("credman update", "target", existing.Target)
	existing.Blob = secret
	if err := s.vault.Write(existing); err != nil {
		return s.nativeErr(secrets.OpAddOrUpdate, q, err)
	}
	return nil
}

// current returns the entry AddOrUpdate replaces, or nil. A blank account
// takes the first match for the service before falling back to the target
// the new entry would get.
func (s *Store) current(q secrets.LookupQuery, t string) (*Entry, error) {
	if secrets.IsBlank(q.Account) {
		e, err := s.find(q)
		if err != nil || e != nil {
			return e, err
		}
	}
	e, err := s.vault.Read(t)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func (s *Store) Remove(service, account string) (bool, error) {
	q := s.opts.Lookup(service, account)
	e, err := s.find(q)
	if err != nil {
		return false, s.nativeErr(secrets.OpRemove, q, err)
	}
	if e == nil {
		return false, nil
	}

	s.log.Debug("credman delete", "target", e.Target)
	err = s.vault.Delete(e.Target)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, s.nativeErr(secrets.OpRemove, q, err)
	}
	return true, nil
}

// find returns the first entry matching q in (service, account) order, or
// nil. A fully specified query is a direct read.
func (s *Store) find(q secrets.LookupQuery) (*Entry, error) {
	if q.Exact() {
		e, err := s.vault.Read(target(q.QualifiedService(), q.Account))
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case err != nil:
			return nil, err
		}
		if q.AccessGroup != "" && group(e) != q.AccessGroup {
			return nil, nil
		}
		return e, nil
	}

	entries, err := s.vault.List(filter(q))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	type hit struct {
		qualified, account string
		e                  *Entry
	}
	var hits []hit
	for _, e := range entries {
		qualified, account, ok := split(e.Target)
		if !ok {
			continue
		}
		if !secrets.IsBlank(q.Service) && qualified != q.QualifiedService() {
			continue
		}
		if secrets.IsBlank(q.Service) && q.Namespace != "" && !strings.HasPrefix(qualified, q.Namespace+":") {
			continue
		}
		if !secrets.IsBlank(q.Account) && account != q.Account {
			continue
		}
		if q.AccessGroup != "" && group(e) != q.AccessGroup {
			continue
		}
		hits = append(hits, hit{qualified, account, e})
	}
	if len(hits) == 0 {
		return nil, nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].qualified != hits[j].qualified {
			return hits[i].qualified < hits[j].qualified
		}
		return hits[i].account < hits[j].account
	})
	return hits[0].e, nil
}

// filter narrows a listing as far as the target prefix allows.
func filter(q secrets.LookupQuery) string {
	switch {
	case !secrets.IsBlank(q.Service):
		return targetPrefix + secrets.FlatPrefix(q.QualifiedService()) + "*"
	case q.Namespace != "":
		return targetPrefix + url.PathEscape(q.Namespace+":") + "*"
	default:
		return targetPrefix + "*"
	}
}

func split(t string) (qualified, account string, ok bool) {
	rest, found := strings.CutPrefix(t, targetPrefix)
	if !found {
		return "", "", false
	}
	return secrets.SplitFlatKey(rest)
}

func group(e *Entry) string {
	return string(e.Attrs[accessGroupAttr])
}

func (s *Store) nativeErr(op string, q secrets.LookupQuery, err error) error {
	se := &secrets.StoreError{
		Kind:    secrets.NativeFailure,
		Op:      op,
		Service: q.QualifiedService(),
		Account: q.Account,
		Err:     err,
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		se.Code = int(errno)
	}
	return se
}

var _ secrets.Store = (*Store)(nil)
