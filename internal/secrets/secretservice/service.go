// Package secretservice stores credentials through the freedesktop.org
// Secret Service API (GNOME Keyring, KWallet 5.97+, KeePassXC).
package secretservice

import (
	"errors"

	"github.com/godbus/dbus/v5"
)

// D-Bus names from the Secret Service specification.
const (
	busName         = "org.freedesktop.secrets"
	servicePath     = dbus.ObjectPath("/org/freedesktop/secrets")
	defaultAlias    = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	serviceIface    = "org.freedesktop.Secret.Service"
	collectionIface = "org.freedesktop.Secret.Collection"
	itemIface       = "org.freedesktop.Secret.Item"
	sessionIface    = "org.freedesktop.Secret.Session"
	promptIface     = "org.freedesktop.Secret.Prompt"

	errNoSuchObject  = "org.freedesktop.Secret.Error.NoSuchObject"
	errUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
)

// noPrompt is the path returned when an operation needs no user prompt.
const noPrompt = dbus.ObjectPath("/")

// Secret is the (oayays) struct the API passes secrets in.
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// ErrPromptDismissed is returned when the user dismisses an unlock prompt.
var ErrPromptDismissed = errors.New("secret service prompt dismissed")

// Service is one connection to the Secret Service. Sessions returned by
// OpenSession must be closed with CloseSession, and the Service itself with
// Close.
type Service interface {
	Ping() error
	OpenSession() (dbus.ObjectPath, error)
	CloseSession(session dbus.ObjectPath) error

	// SearchItems returns unlocked and locked items whose attributes
	// include every pair in attrs.
	SearchItems(attrs map[string]string) (unlocked, locked []dbus.ObjectPath, err error)
	// Unlock unlocks items, prompting the user if the daemon asks to.
	Unlock(items []dbus.ObjectPath) ([]dbus.ObjectPath, error)

	Attributes(item dbus.ObjectPath) (map[string]string, error)
	Label(item dbus.ObjectPath) (string, error)
	GetSecret(item, session dbus.ObjectPath) (Secret, error)
	SetSecret(item dbus.ObjectPath, secret Secret) error
	// CreateItem creates an item in the default collection.
	CreateItem(label string, attrs map[string]string, secret Secret) (dbus.ObjectPath, error)
	Delete(item dbus.ObjectPath) error

	Close() error
}

// asDBusError finds a D-Bus error reply in err's chain. godbus returns
// replies by value, but some call paths hand back a pointer.
func asDBusError(err error) (dbus.Error, bool) {
	var de dbus.Error
	if errors.As(err, &de) {
		return de, true
	}
	var dep *dbus.Error
	if errors.As(err, &dep) && dep != nil {
		return *dep, true
	}
	return dbus.Error{}, false
}

// isNoSuchObject reports whether err says the object vanished.
func isNoSuchObject(err error) bool {
	de, ok := asDBusError(err)
	return ok && (de.Name == errNoSuchObject || de.Name == errUnknownObject)
}
