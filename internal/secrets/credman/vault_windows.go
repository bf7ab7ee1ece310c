//go:build windows

package credman

import (
	"errors"

	"github.com/danieljoos/wincred"
)

type winVault struct{}

func systemVault() (Vault, error) { return winVault{}, nil }

func (winVault) Read(target string) (*Entry, error) {
	c, err := wincred.GetGenericCredential(target)
	if errors.Is(err, wincred.ErrElementNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromCredential(&c.Credential), nil
}

func (winVault) List(filter string) ([]*Entry, error) {
	creds, err := wincred.FilteredList(filter)
	if errors.Is(err, wincred.ErrElementNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(creds))
	for _, c := range creds {
		entries = append(entries, fromCredential(c))
	}
	return entries, nil
}

func (winVault) Write(e *Entry) error {
	c := wincred.NewGenericCredential(e.Target)
	c.UserName = e.User
	c.Comment = e.Comment
	c.CredentialBlob = e.Blob
	c.Persist = wincred.PersistLocalMachine
	for k, v := range e.Attrs {
		c.Attributes = append(c.Attributes, wincred.CredentialAttribute{Keyword: k, Value: v})
	}
	return c.Write()
}

func (winVault) Delete(target string) error {
	c, err := wincred.GetGenericCredential(target)
	if errors.Is(err, wincred.ErrElementNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	err = c.Delete()
	if errors.Is(err, wincred.ErrElementNotFound) {
		return ErrNotFound
	}
	return err
}

func fromCredential(c *wincred.Credential) *Entry {
	e := &Entry{
		Target:  c.TargetName,
		User:    c.UserName,
		Comment: c.Comment,
		Blob:    c.CredentialBlob,
	}
	if len(c.Attributes) > 0 {
		e.Attrs = make(map[string][]byte, len(c.Attributes))
		for _, a := range c.Attributes {
			e.Attrs[a.Keyword] = a.Value
		}
	}
	return e
}
