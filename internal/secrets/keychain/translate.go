package keychain

import (
	"fmt"

	"github.com/semmy-space/credstore/internal/secrets"
)

// violation is a result shape the store refuses to interpret.
type violation struct {
	msg string
}

func (v *violation) Error() string { return v.msg }

func violationf(format string, args ...any) *violation {
	return &violation{msg: fmt.Sprintf(format, args...)}
}

// decode converts a search result into a Credential. The result must be a
// single attribute dictionary; a collection means the match limit was not
// honoured and is rejected rather than resolved by picking an element.
func decode(n Native, result Ref) (*secrets.Credential, error) {
	switch t := n.TypeOf(result); t {
	case TypeDictionary:
	case TypeArray:
		return nil, violationf("search limited to one item returned a collection")
	default:
		return nil, violationf("search returned a %s instead of an attribute dictionary", t)
	}

	service, err := stringAttr(n, result, AttrService)
	if err != nil {
		return nil, err
	}
	account, err := stringAttr(n, result, AttrAccount)
	if err != nil {
		return nil, err
	}
	label, err := stringAttr(n, result, AttrLabel)
	if err != nil {
		return nil, err
	}
	secret, err := secretAttr(n, result)
	if err != nil {
		return nil, err
	}

	return &secrets.Credential{
		Service: service,
		Account: account,
		Secret:  secret,
		Label:   label,
	}, nil
}

// stringAttr reads a UTF-8 attribute. Absent and empty both yield "".
func stringAttr(n Native, dict Ref, key Attr) (string, error) {
	ref := n.Lookup(dict, key)
	if ref == 0 {
		return "", nil
	}
	if t := n.TypeOf(ref); t != TypeString {
		return "", violationf("attribute %s is a %s, want string", key, t)
	}
	s, ok := n.StringValue(ref)
	if !ok {
		return "", violationf("attribute %s is not representable as UTF-8", key)
	}
	return s, nil
}

// secretAttr reads the secret as raw bytes, or as the UTF-8 bytes of a
// string when the item stores text.
func secretAttr(n Native, dict Ref) ([]byte, error) {
	ref := n.Lookup(dict, AttrValueData)
	if ref == 0 {
		return []byte{}, nil
	}
	switch t := n.TypeOf(ref); t {
	case TypeData:
		return n.DataValue(ref), nil
	case TypeString:
		s, ok := n.StringValue(ref)
		if !ok {
			return nil, violationf("secret is not representable as UTF-8")
		}
		return []byte(s), nil
	default:
		return nil, violationf("secret is a %s, want data", t)
	}
}
