package secrets

import (
	"io"
	"log/slog"
)

// Store is the credential storage contract every platform backend implements.
//
// A lookup that matches nothing is not an error: Get returns a nil Credential
// and Remove returns false. An empty account matches any account stored for
// the service.
type Store interface {
	Get(service, account string) (*Credential, error)
	AddOrUpdate(service, account string, secret []byte) error
	Remove(service, account string) (bool, error)
}

// Credential is one stored secret.
type Credential struct {
	Service string `json:"service"`
	Account string `json:"account,omitempty"`
	Secret  []byte `json:"-"`
	Label   string `json:"label,omitempty"`
}

// LookupQuery is a filter set. An empty field matches any value for that
// attribute.
type LookupQuery struct {
	Service     string
	Account     string
	Namespace   string
	AccessGroup string
}

// QualifiedService returns the namespaced service name used as the native key.
func (q LookupQuery) QualifiedService() string {
	if IsBlank(q.Service) {
		return ""
	}
	return Qualify(q.Namespace, q.Service)
}

// Exact reports whether both service and account are set. Such a query
// names at most one entry; more than one match is a contract violation.
func (q LookupQuery) Exact() bool {
	return !IsBlank(q.Service) && !IsBlank(q.Account)
}

// Options are the construction-time settings shared by all backends.
type Options struct {
	// Namespace prefixes every service name ("ns:service").
	Namespace string
	// AccessGroup scopes visibility of stored entries. Empty means the
	// platform default.
	AccessGroup string
	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// Lookup builds the filter set for service and account under these options.
func (o Options) Lookup(service, account string) LookupQuery {
	return LookupQuery{
		Service:     service,
		Account:     account,
		Namespace:   o.Namespace,
		AccessGroup: o.AccessGroup,
	}
}

// Log returns the configured logger or one that discards everything.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AppName is the application identifier used for keyring service names and
// data directories.
const AppName = "credstore"
