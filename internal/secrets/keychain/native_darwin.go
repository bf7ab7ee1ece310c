//go:build darwin && cgo

package keychain

/*
#cgo LDFLAGS: -framework CoreFoundation -framework Security

#include <CoreFoundation/CoreFoundation.h>
#include <Security/Security.h>

static void credstore_set(CFTypeRef dict, CFTypeRef key, CFTypeRef value) {
	CFDictionarySetValue((CFMutableDictionaryRef)dict, key, value);
}

static CFTypeRef credstore_get(CFTypeRef dict, CFTypeRef key) {
	return CFDictionaryGetValue((CFDictionaryRef)dict, key);
}

static CFTypeRef credstore_dictionary(void) {
	return CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
}
*/
import "C"

import (
	"unsafe"
)

type darwinNative struct{}

func systemNative() Native { return darwinNative{} }

func checkPlatform() error { return nil }

func cfKey(a Attr) C.CFTypeRef {
	switch a {
	case AttrClass:
		return C.CFTypeRef(C.kSecClass)
	case AttrMatchLimit:
		return C.CFTypeRef(C.kSecMatchLimit)
	case AttrReturnData:
		return C.CFTypeRef(C.kSecReturnData)
	case AttrReturnAttributes:
		return C.CFTypeRef(C.kSecReturnAttributes)
	case AttrReturnRef:
		return C.CFTypeRef(C.kSecReturnRef)
	case AttrService:
		return C.CFTypeRef(C.kSecAttrService)
	case AttrAccount:
		return C.CFTypeRef(C.kSecAttrAccount)
	case AttrLabel:
		return C.CFTypeRef(C.kSecAttrLabel)
	case AttrAccessGroup:
		return C.CFTypeRef(C.kSecAttrAccessGroup)
	case AttrValueData:
		return C.CFTypeRef(C.kSecValueData)
	}
	panic("keychain: unknown attribute " + a.String())
}

func cfConst(c Const) C.CFTypeRef {
	switch c {
	case ConstGenericPassword:
		return C.CFTypeRef(C.kSecClassGenericPassword)
	case ConstMatchLimitOne:
		return C.CFTypeRef(C.kSecMatchLimitOne)
	case ConstTrue:
		return C.CFTypeRef(C.kCFBooleanTrue)
	}
	panic("keychain: unknown constant")
}

func (darwinNative) NewString(s string) (Ref, Status) {
	var p *C.UInt8
	if len(s) > 0 {
		p = (*C.UInt8)(unsafe.Pointer(unsafe.StringData(s)))
	}
	ref := C.CFStringCreateWithBytes(C.kCFAllocatorDefault, p, C.CFIndex(len(s)), C.kCFStringEncodingUTF8, C.Boolean(0))
	if ref == 0 {
		return 0, StatusParam
	}
	return Ref(ref), StatusSuccess
}

func (darwinNative) NewData(b []byte) (Ref, Status) {
	var p *C.UInt8
	if len(b) > 0 {
		p = (*C.UInt8)(unsafe.Pointer(&b[0]))
	}
	ref := C.CFDataCreate(C.kCFAllocatorDefault, p, C.CFIndex(len(b)))
	if ref == 0 {
		return 0, StatusAllocate
	}
	return Ref(ref), StatusSuccess
}

func (darwinNative) NewDictionary() (Ref, Status) {
	ref := C.credstore_dictionary()
	if ref == 0 {
		return 0, StatusAllocate
	}
	return Ref(ref), StatusSuccess
}

func (darwinNative) SetValue(dict Ref, key Attr, value Ref) {
	C.credstore_set(C.CFTypeRef(dict), cfKey(key), C.CFTypeRef(value))
}

func (darwinNative) SetConst(dict Ref, key Attr, value Const) {
	C.credstore_set(C.CFTypeRef(dict), cfKey(key), cfConst(value))
}

func (darwinNative) CopyMatching(query Ref) (Ref, Status) {
	var out C.CFTypeRef
	status := C.SecItemCopyMatching(C.CFDictionaryRef(query), &out)
	return Ref(out), Status(status)
}

func (darwinNative) Add(attrs Ref) Status {
	return Status(C.SecItemAdd(C.CFDictionaryRef(attrs), nil))
}

func (darwinNative) Update(query, attrs Ref) Status {
	return Status(C.SecItemUpdate(C.CFDictionaryRef(query), C.CFDictionaryRef(attrs)))
}

func (darwinNative) Delete(query Ref) Status {
	return Status(C.SecItemDelete(C.CFDictionaryRef(query)))
}

func (darwinNative) TypeOf(ref Ref) Type {
	if ref == 0 {
		return TypeOther
	}
	switch C.CFGetTypeID(C.CFTypeRef(ref)) {
	case C.CFDictionaryGetTypeID():
		return TypeDictionary
	case C.CFArrayGetTypeID():
		return TypeArray
	case C.CFStringGetTypeID():
		return TypeString
	case C.CFDataGetTypeID():
		return TypeData
	}
	return TypeOther
}

func (darwinNative) Lookup(dict Ref, key Attr) Ref {
	return Ref(C.credstore_get(C.CFTypeRef(dict), cfKey(key)))
}

func (darwinNative) StringValue(ref Ref) (string, bool) {
	return cfString(C.CFStringRef(ref))
}

func (darwinNative) DataValue(ref Ref) []byte {
	d := C.CFDataRef(ref)
	n := C.CFDataGetLength(d)
	if n == 0 {
		return []byte{}
	}
	return C.GoBytes(unsafe.Pointer(C.CFDataGetBytePtr(d)), C.int(n))
}

func (darwinNative) Message(status Status) string {
	msg := C.SecCopyErrorMessageString(C.OSStatus(status), nil)
	if msg == 0 {
		return ""
	}
	defer C.CFRelease(C.CFTypeRef(msg))
	s, _ := cfString(msg)
	return s
}

func (darwinNative) Release(ref Ref) {
	if ref != 0 {
		C.CFRelease(C.CFTypeRef(ref))
	}
}

// cfString converts s to UTF-8. A string holding unpaired surrogates cannot
// be converted in full and reports ok=false.
func cfString(s C.CFStringRef) (string, bool) {
	length := C.CFStringGetLength(s)
	if length == 0 {
		return "", true
	}
	size := C.CFStringGetMaximumSizeForEncoding(length, C.kCFStringEncodingUTF8)
	buf := make([]byte, int(size))
	var used C.CFIndex
	converted := C.CFStringGetBytes(s, C.CFRange{0, length}, C.kCFStringEncodingUTF8, 0, C.Boolean(0),
		(*C.UInt8)(unsafe.Pointer(&buf[0])), size, &used)
	if converted != length {
		return "", false
	}
	return string(buf[:used]), true
}
