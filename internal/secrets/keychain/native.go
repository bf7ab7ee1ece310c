// Package keychain stores credentials in the macOS Keychain as generic
// password items.
//
// The Security framework hands out reference-counted CoreFoundation objects.
// Store never lets one escape a call: every Ref obtained while serving a
// request is collected in a scope and released exactly once before the call
// returns, whichever branch it takes.
package keychain

// Ref is an opaque handle to a native object. The zero Ref is null.
type Ref uintptr

// Status is a native result code (OSStatus).
type Status int32

// Attr names a query or item attribute key.
type Attr int

const (
	AttrClass Attr = iota + 1
	AttrMatchLimit
	AttrReturnData
	AttrReturnAttributes
	AttrReturnRef
	AttrService
	AttrAccount
	AttrLabel
	AttrAccessGroup
	AttrValueData
)

var attrNames = map[Attr]string{
	AttrClass:            "class",
	AttrMatchLimit:       "m_Limit",
	AttrReturnData:       "r_Data",
	AttrReturnAttributes: "r_Attributes",
	AttrReturnRef:        "r_Ref",
	AttrService:          "svce",
	AttrAccount:          "acct",
	AttrLabel:            "labl",
	AttrAccessGroup:      "agrp",
	AttrValueData:        "v_Data",
}

// String returns the Security framework key name.
func (a Attr) String() string {
	if name, ok := attrNames[a]; ok {
		return name
	}
	return "unknown"
}

// Const names a framework-owned constant value. Constants are never retained
// or released by the caller.
type Const int

const (
	ConstGenericPassword Const = iota + 1
	ConstMatchLimitOne
	ConstTrue
)

// Type is the runtime type of a native object.
type Type int

const (
	TypeOther Type = iota
	TypeDictionary
	TypeArray
	TypeString
	TypeData
)

func (t Type) String() string {
	switch t {
	case TypeDictionary:
		return "dictionary"
	case TypeArray:
		return "array"
	case TypeString:
		return "string"
	case TypeData:
		return "data"
	default:
		return "other"
	}
}

// Native is the Security framework surface the store drives.
//
// Refs returned by NewString, NewData, NewDictionary and CopyMatching are
// owned by the caller and must be passed to Release exactly once. Refs
// returned by Lookup are borrowed from their container and must not be
// released.
type Native interface {
	NewString(s string) (Ref, Status)
	NewData(b []byte) (Ref, Status)
	NewDictionary() (Ref, Status)

	// SetValue stores value under key. The dictionary retains value; the
	// caller still owns its own reference.
	SetValue(dict Ref, key Attr, value Ref)
	SetConst(dict Ref, key Attr, value Const)

	CopyMatching(query Ref) (Ref, Status)
	Add(attrs Ref) Status
	Update(query, attrs Ref) Status
	Delete(query Ref) Status

	TypeOf(ref Ref) Type
	Lookup(dict Ref, key Attr) Ref
	// StringValue decodes a string object as UTF-8. ok is false when the
	// object is not a string or cannot be converted without loss.
	StringValue(ref Ref) (s string, ok bool)
	DataValue(ref Ref) []byte

	// Message describes status in the platform's words, or "".
	Message(status Status) string
	Release(ref Ref)
}
