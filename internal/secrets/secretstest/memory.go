// Package secretstest provides an in-memory secrets.Store and a contract test
// suite shared by every backend.
package secretstest

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"github.com/semmy-space/credstore/internal/secrets"
)

// Memory is a secrets.Store held in process memory. It follows the same
// matching rules as the native backends and is meant for tests only.
type Memory struct {
	opts secrets.Options
	s    *shared
}

type shared struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	qualified   string
	account     string
	accessGroup string
	label       string
	secret      []byte
}

// NewMemory returns an empty store.
func NewMemory(opts secrets.Options) *Memory {
	return &Memory{opts: opts, s: &shared{}}
}

// View returns a store sharing m's entries under different options, the way
// two processes configured with different namespaces share one keychain.
func (m *Memory) View(opts secrets.Options) *Memory {
	return &Memory{opts: opts, s: m.s}
}

// Len returns the total number of stored entries across all views.
func (m *Memory) Len() int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.entries)
}

// SetLabel sets the label of the entry matching service and account.
func (m *Memory) SetLabel(service, account, label string) bool {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	i, err := m.find(secrets.OpAddOrUpdate, m.opts.Lookup(service, account))
	if err != nil || i < 0 {
		return false
	}
	m.s.entries[i].label = label
	return true
}

func (m *Memory) Get(service, account string) (*secrets.Credential, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	i, err := m.find(secrets.OpGet, m.opts.Lookup(service, account))
	if err != nil || i < 0 {
		return nil, err
	}
	e := m.s.entries[i]
	return &secrets.Credential{
		Service: secrets.Unqualify(m.opts.Namespace, e.qualified),
		Account: e.account,
		Secret:  bytes.Clone(e.secret),
		Label:   e.label,
	}, nil
}

func (m *Memory) AddOrUpdate(service, account string, secret []byte) error {
	if secrets.IsBlank(service) {
		return secrets.Invalid(secrets.OpAddOrUpdate, service, account, "service must not be blank")
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	q := m.opts.Lookup(service, account)
	i, err := m.find(secrets.OpAddOrUpdate, q)
	if err != nil {
		return err
	}
	if i >= 0 {
		m.s.entries[i].secret = bytes.Clone(secret)
		return nil
	}
	m.s.entries = append(m.s.entries, entry{
		qualified:   q.QualifiedService(),
		account:     account,
		accessGroup: q.AccessGroup,
		secret:      bytes.Clone(secret),
	})
	return nil
}

func (m *Memory) Remove(service, account string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	i, err := m.find(secrets.OpRemove, m.opts.Lookup(service, account))
	if err != nil || i < 0 {
		return false, err
	}
	m.s.entries = append(m.s.entries[:i], m.s.entries[i+1:]...)
	return true, nil
}

// find returns the index of the first match in (qualified, account) order,
// or -1. An exact query with several matches is an error.
func (m *Memory) find(op string, q secrets.LookupQuery) (int, error) {
	var hits []int
	for i, e := range m.s.entries {
		if !secrets.IsBlank(q.Service) && e.qualified != q.QualifiedService() {
			continue
		}
		if secrets.IsBlank(q.Service) && q.Namespace != "" && !strings.HasPrefix(e.qualified, q.Namespace+":") {
			continue
		}
		if !secrets.IsBlank(q.Account) && e.account != q.Account {
			continue
		}
		if q.AccessGroup != "" && e.accessGroup != q.AccessGroup {
			continue
		}
		hits = append(hits, i)
	}
	if len(hits) == 0 {
		return -1, nil
	}
	if q.Exact() && len(hits) > 1 {
		return -1, secrets.Ambiguous(op, q.QualifiedService(), q.Account, len(hits))
	}
	sort.Slice(hits, func(a, b int) bool {
		ea, eb := m.s.entries[hits[a]], m.s.entries[hits[b]]
		if ea.qualified != eb.qualified {
			return ea.qualified < eb.qualified
		}
		return ea.account < eb.account
	})
	return hits[0], nil
}

var _ secrets.Store = (*Memory)(nil)
