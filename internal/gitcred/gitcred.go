// Package gitcred implements the git credential helper wire format: newline
// separated key=value attributes terminated by a blank line or end of input.
package gitcred

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Request is one credential description exchanged with git.
type Request struct {
	Protocol string
	Host     string
	Path     string
	Username string
	Password string
}

// Parse reads attributes from r until a blank line or EOF. A url attribute
// fills in the fields it carries; explicit attributes later in the input
// override it.
func Parse(r io.Reader) (Request, error) {
	var req Request
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Request{}, fmt.Errorf("gitcred: malformed line %q", line)
		}
		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "username":
			req.Username = value
		case "password":
			req.Password = value
		case "url":
			if err := req.applyURL(value); err != nil {
				return Request{}, err
			}
		}
		// Unknown attributes (capability[], wwwauth[], ...) are ignored.
	}
	if err := scanner.Err(); err != nil {
		return Request{}, fmt.Errorf("gitcred: %w", err)
	}
	return req, nil
}

func (req *Request) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("gitcred: invalid url: %w", err)
	}
	req.Protocol = u.Scheme
	req.Host = u.Host
	req.Path = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		req.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			req.Password = pw
		}
	}
	return nil
}

// Service returns the service name the credential is stored under:
// protocol://host, with /path appended when git sends one.
func (req Request) Service() string {
	s := req.Protocol + "://" + req.Host
	if req.Path != "" {
		s += "/" + req.Path
	}
	return s
}

// Validate reports whether req carries enough to name a credential.
func (req Request) Validate() error {
	if req.Protocol == "" || req.Host == "" {
		return fmt.Errorf("gitcred: protocol and host are required")
	}
	return nil
}

// Write emits the attributes git expects in a get response.
func Write(w io.Writer, req Request) error {
	bw := bufio.NewWriter(w)
	for _, kv := range [][2]string{
		{"protocol", req.Protocol},
		{"host", req.Host},
		{"path", req.Path},
		{"username", req.Username},
		{"password", req.Password},
	} {
		if kv[1] == "" {
			continue
		}
		if strings.ContainsAny(kv[1], "\n\x00") {
			return fmt.Errorf("gitcred: %s contains a newline or NUL", kv[0])
		}
		fmt.Fprintf(bw, "%s=%s\n", kv[0], kv[1])
	}
	return bw.Flush()
}
