package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"golang.org/x/term"

	"github.com/semmy-space/credstore/internal/output"
	"github.com/semmy-space/credstore/internal/secrets"
)

// Streams are the process standard streams, bound so commands can be run
// against buffers.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func stdStreams() *Streams {
	return &Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// credentialView is the printable form of a credential. The secret is only
// included on request.
type credentialView struct {
	Service string `json:"service"`
	Account string `json:"account"`
	Label   string `json:"label,omitempty"`
	Secret  string `json:"secret,omitempty"`
	Backend string `json:"backend"`
}

// GetCmd implements the get command
type GetCmd struct {
	Service string `arg:"" optional:"" help:"Service name (empty matches any service in the namespace)"`
	Account string `arg:"" optional:"" help:"Account name (empty matches any account)"`
	Details bool   `help:"Print service, account and label instead of the bare secret" short:"d"`
	Show    bool   `help:"Include the secret with --details"`
}

// Run executes the get command
func (cmd *GetCmd) Run(fp *FormatterProvider, sp *StoreProvider, st *Streams) error {
	store, err := sp.Store()
	if err != nil {
		return err
	}

	cred, err := store.Get(cmd.Service, cmd.Account)
	if err != nil {
		return storeErr(err)
	}
	if cred == nil {
		return notFound(cmd.Service, cmd.Account)
	}
	defer memguard.WipeBytes(cred.Secret)

	if !cmd.Details {
		_, err := fmt.Fprintf(st.Out, "%s\n", cred.Secret)
		return err
	}

	view := credentialView{
		Service: cred.Service,
		Account: cred.Account,
		Label:   cred.Label,
		Backend: sp.Backend(),
	}
	if cmd.Show {
		view.Secret = string(cred.Secret)
	}
	return fp.Formatter.Print(view)
}

// SetCmd implements the set command
type SetCmd struct {
	Service string `arg:"" help:"Service name"`
	Account string `arg:"" optional:"" help:"Account name"`
	Stdin   bool   `help:"Read the secret from standard input instead of prompting" name:"stdin"`
}

// Run executes the set command
func (cmd *SetCmd) Run(sp *StoreProvider, globals *Globals, st *Streams) error {
	if secrets.IsBlank(cmd.Service) {
		return output.NewCLIError(output.ExitUsage, "service must not be blank")
	}

	var buf *memguard.LockedBuffer
	var err error
	switch {
	case cmd.Stdin:
		buf, err = readSecret(st.In)
	case globals.interactive():
		buf, err = promptSecret(st.Err, fmt.Sprintf("Secret for %s: ", target(cmd.Service, cmd.Account)))
	default:
		return output.NewCLIError(output.ExitUsage, "no secret supplied").
			WithHint("Pipe the secret and pass --stdin")
	}
	if err != nil {
		return err
	}
	defer buf.Destroy()

	store, err := sp.Store()
	if err != nil {
		return err
	}
	if err := store.AddOrUpdate(cmd.Service, cmd.Account, buf.Bytes()); err != nil {
		return storeErr(err)
	}

	fmt.Fprintf(st.Err, "Stored %s in %s\n", target(cmd.Service, cmd.Account), sp.Backend())
	return nil
}

// RmCmd implements the rm command
type RmCmd struct {
	Service string `arg:"" optional:"" help:"Service name (empty matches any service in the namespace)"`
	Account string `arg:"" optional:"" help:"Account name (empty matches any account)"`
	Strict  bool   `help:"Fail when nothing matched"`
}

// Run executes the rm command
func (cmd *RmCmd) Run(sp *StoreProvider, st *Streams) error {
	store, err := sp.Store()
	if err != nil {
		return err
	}

	removed, err := store.Remove(cmd.Service, cmd.Account)
	if err != nil {
		return storeErr(err)
	}
	if !removed {
		if cmd.Strict {
			return notFound(cmd.Service, cmd.Account)
		}
		fmt.Fprintf(st.Err, "Nothing to remove for %s\n", target(cmd.Service, cmd.Account))
		return nil
	}

	fmt.Fprintf(st.Err, "Removed %s\n", target(cmd.Service, cmd.Account))
	return nil
}

// readSecret reads r to EOF into locked memory, dropping one trailing
// newline.
func readSecret(r io.Reader) (*memguard.LockedBuffer, error) {
	buf, err := memguard.NewBufferFromEntireReader(r)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if buf == nil {
		buf = memguard.NewBuffer(0)
	}
	data := buf.Bytes()
	trimmed := bytes.TrimSuffix(bytes.TrimSuffix(data, []byte("\n")), []byte("\r"))
	if len(trimmed) == len(data) {
		return buf, nil
	}

	out := memguard.NewBufferFromBytes(bytes.Clone(trimmed))
	buf.Destroy()
	return out, nil
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt io.Writer, msg string) (*memguard.LockedBuffer, error) {
	fmt.Fprint(prompt, msg)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	// NewBufferFromBytes wipes data.
	return memguard.NewBufferFromBytes(data), nil
}

func target(service, account string) string {
	if service == "" {
		service = "*"
	}
	if account == "" {
		return service
	}
	return service + "/" + account
}
