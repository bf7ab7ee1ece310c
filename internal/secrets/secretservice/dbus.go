package secretservice

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// promptTimeout bounds how long an unlock prompt may stay open.
const promptTimeout = 2 * time.Minute

type dbusService struct {
	conn *dbus.Conn
}

// Connect opens a private session bus connection.
func Connect() (Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &dbusService{conn: conn}, nil
}

func (d *dbusService) service() dbus.BusObject {
	return d.conn.Object(busName, servicePath)
}

func (d *dbusService) Ping() error {
	return d.service().Call("org.freedesktop.DBus.Peer.Ping", 0).Err
}

func (d *dbusService) OpenSession() (dbus.ObjectPath, error) {
	var output dbus.Variant
	var session dbus.ObjectPath
	err := d.service().Call(serviceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).
		Store(&output, &session)
	return session, err
}

func (d *dbusService) CloseSession(session dbus.ObjectPath) error {
	return d.conn.Object(busName, session).Call(sessionIface+".Close", 0).Err
}

func (d *dbusService) SearchItems(attrs map[string]string) ([]dbus.ObjectPath, []dbus.ObjectPath, error) {
	var unlocked, locked []dbus.ObjectPath
	err := d.service().Call(serviceIface+".SearchItems", 0, attrs).Store(&unlocked, &locked)
	return unlocked, locked, err
}

func (d *dbusService) Unlock(items []dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := d.service().Call(serviceIface+".Unlock", 0, items).Store(&unlocked, &prompt); err != nil {
		return nil, err
	}
	if prompt == noPrompt {
		return unlocked, nil
	}

	result, err := d.prompt(prompt)
	if err != nil {
		return nil, err
	}
	var more []dbus.ObjectPath
	if err := result.Store(&more); err != nil {
		return nil, fmt.Errorf("unlock prompt result: %w", err)
	}
	return append(unlocked, more...), nil
}

func (d *dbusService) Attributes(item dbus.ObjectPath) (map[string]string, error) {
	v, err := d.conn.Object(busName, item).GetProperty(itemIface + ".Attributes")
	if err != nil {
		return nil, err
	}
	var attrs map[string]string
	if err := v.Store(&attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (d *dbusService) Label(item dbus.ObjectPath) (string, error) {
	v, err := d.conn.Object(busName, item).GetProperty(itemIface + ".Label")
	if err != nil {
		return "", err
	}
	var label string
	err = v.Store(&label)
	return label, err
}

func (d *dbusService) GetSecret(item, session dbus.ObjectPath) (Secret, error) {
	var secret Secret
	err := d.conn.Object(busName, item).Call(itemIface+".GetSecret", 0, session).Store(&secret)
	return secret, err
}

func (d *dbusService) SetSecret(item dbus.ObjectPath, secret Secret) error {
	return d.conn.Object(busName, item).Call(itemIface+".SetSecret", 0, secret).Err
}

func (d *dbusService) CreateItem(label string, attrs map[string]string, secret Secret) (dbus.ObjectPath, error) {
	collection, err := d.defaultCollection()
	if err != nil {
		return "", err
	}

	props := map[string]dbus.Variant{
		itemIface + ".Label":      dbus.MakeVariant(label),
		itemIface + ".Attributes": dbus.MakeVariant(attrs),
	}
	var item, prompt dbus.ObjectPath
	err = d.conn.Object(busName, collection).
		Call(collectionIface+".CreateItem", 0, props, secret, false).
		Store(&item, &prompt)
	if err != nil {
		return "", err
	}
	if prompt == noPrompt {
		return item, nil
	}

	result, err := d.prompt(prompt)
	if err != nil {
		return "", err
	}
	if err := result.Store(&item); err != nil {
		return "", fmt.Errorf("create prompt result: %w", err)
	}
	return item, nil
}

func (d *dbusService) defaultCollection() (dbus.ObjectPath, error) {
	var collection dbus.ObjectPath
	if err := d.service().Call(serviceIface+".ReadAlias", 0, "default").Store(&collection); err != nil {
		return "", err
	}
	if collection == noPrompt {
		return defaultAlias, nil
	}
	return collection, nil
}

func (d *dbusService) Delete(item dbus.ObjectPath) error {
	var prompt dbus.ObjectPath
	if err := d.conn.Object(busName, item).Call(itemIface+".Delete", 0).Store(&prompt); err != nil {
		return err
	}
	if prompt == noPrompt {
		return nil
	}
	_, err := d.prompt(prompt)
	return err
}

// prompt runs a prompt object and waits for its Completed signal.
func (d *dbusService) prompt(path dbus.ObjectPath) (dbus.Variant, error) {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(promptIface),
		dbus.WithMatchMember("Completed"),
	}
	if err := d.conn.AddMatchSignal(match...); err != nil {
		return dbus.Variant{}, err
	}
	defer d.conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 1)
	d.conn.Signal(signals)
	defer d.conn.RemoveSignal(signals)

	if err := d.conn.Object(busName, path).Call(promptIface+".Prompt", 0, "").Err; err != nil {
		return dbus.Variant{}, err
	}

	timeout := time.NewTimer(promptTimeout)
	defer timeout.Stop()
	for {
		select {
		case sig := <-signals:
			if sig.Path != path || sig.Name != promptIface+".Completed" || len(sig.Body) < 2 {
				continue
			}
			if dismissed, _ := sig.Body[0].(bool); dismissed {
				return dbus.Variant{}, ErrPromptDismissed
			}
			result, _ := sig.Body[1].(dbus.Variant)
			return result, nil
		case <-timeout.C:
			return dbus.Variant{}, fmt.Errorf("secret service prompt %s timed out after %s", path, promptTimeout)
		}
	}
}

func (d *dbusService) Close() error {
	return d.conn.Close()
}
