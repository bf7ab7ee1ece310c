package secrets

import (
	"net/url"
	"strings"
)

// Qualify derives the fully-qualified service name: "namespace:service" when
// namespace is set, service otherwise.
func Qualify(namespace, service string) string {
	if namespace == "" {
		return service
	}
	return namespace + ":" + service
}

// Unqualify strips the namespace prefix added by Qualify. Names stored under a
// different namespace are returned unchanged.
func Unqualify(namespace, qualified string) string {
	if namespace == "" {
		return qualified
	}
	return strings.TrimPrefix(qualified, namespace+":")
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// FlatKey encodes a qualified service and account into a single key for
// backends that only offer one lookup dimension. Both halves are path-escaped
// so the separator is unambiguous.
func FlatKey(qualified, account string) string {
	return FlatPrefix(qualified) + url.PathEscape(account)
}

// FlatPrefix is the key prefix shared by every account of a qualified service.
func FlatPrefix(qualified string) string {
	return url.PathEscape(qualified) + "/"
}

// SplitFlatKey reverses FlatKey. ok is false for keys not produced by FlatKey.
func SplitFlatKey(key string) (qualified, account string, ok bool) {
	q, a, found := strings.Cut(key, "/")
	if !found || strings.Contains(a, "/") {
		return "", "", false
	}
	qualified, err := url.PathUnescape(q)
	if err != nil {
		return "", "", false
	}
	account, err = url.PathUnescape(a)
	if err != nil {
		return "", "", false
	}
	return qualified, account, true
}
