package cli

import (
	"github.com/awnumar/memguard"

	"github.com/semmy-space/credstore/internal/gitcred"
	"github.com/semmy-space/credstore/internal/output"
)

// GitCmd holds the git credential helper operations. Configure with:
//
//	git config --global credential.helper 'credstore git'
type GitCmd struct {
	Get   GitGetCmd   `cmd:"" help:"Look up a credential for git"`
	Store GitStoreCmd `cmd:"" help:"Store a credential git used successfully"`
	Erase GitEraseCmd `cmd:"" help:"Erase a credential git was refused with"`
}

func readRequest(st *Streams) (gitcred.Request, error) {
	req, err := gitcred.Parse(st.In)
	if err != nil {
		return req, output.Wrap(output.ExitUsage, err, "invalid git credential request")
	}
	if err := req.Validate(); err != nil {
		return req, output.Wrap(output.ExitUsage, err, "invalid git credential request")
	}
	return req, nil
}

// GitGetCmd implements git get. A miss prints nothing and succeeds so git
// moves on to the next helper.
type GitGetCmd struct{}

// Run executes the git get command
func (cmd *GitGetCmd) Run(sp *StoreProvider, st *Streams) error {
	req, err := readRequest(st)
	if err != nil {
		return err
	}

	store, err := sp.Store()
	if err != nil {
		return err
	}
	cred, err := store.Get(req.Service(), req.Username)
	if err != nil {
		return storeErr(err)
	}
	if cred == nil {
		return nil
	}
	defer memguard.WipeBytes(cred.Secret)

	req.Username = cred.Account
	req.Password = string(cred.Secret)
	return gitcred.Write(st.Out, req)
}

// GitStoreCmd implements git store
type GitStoreCmd struct{}

// Run executes the git store command
func (cmd *GitStoreCmd) Run(sp *StoreProvider, st *Streams) error {
	req, err := readRequest(st)
	if err != nil {
		return err
	}
	if req.Password == "" {
		return nil
	}

	store, err := sp.Store()
	if err != nil {
		return err
	}
	return storeErr(store.AddOrUpdate(req.Service(), req.Username, []byte(req.Password)))
}

// GitEraseCmd implements git erase
type GitEraseCmd struct{}

// Run executes the git erase command
func (cmd *GitEraseCmd) Run(sp *StoreProvider, st *Streams) error {
	req, err := readRequest(st)
	if err != nil {
		return err
	}

	store, err := sp.Store()
	if err != nil {
		return err
	}
	_, err = store.Remove(req.Service(), req.Username)
	return storeErr(err)
}
