package keychain

import (
	"bytes"
	"sync"
)

// fakeKeychain is an in-memory Native with CoreFoundation-style reference
// counting. Every caller-owned acquisition and every Release is counted so
// tests can check the two balance, and failures can be injected at the Nth
// fallible call.
type fakeKeychain struct {
	mu      sync.Mutex
	next    Ref
	objects map[Ref]*fakeObject
	items   []*fakeItem

	// fallible call counter and injection point (1-based, 0 disables)
	calls      int
	failAt     int
	failStatus Status
	// refOnFailure makes an injected CopyMatching failure still hand back an
	// owned result, the way some framework versions do.
	refOnFailure bool

	// multiMatch makes CopyMatching answer with a collection.
	multiMatch bool
	// resultType overrides the type of a search result.
	resultType Type

	messages map[Status]string

	acquired    int
	released    int
	overRelease int
}

type fakeObject struct {
	typ   Type
	refs  int
	str   string
	lossy bool
	data  []byte
	dict  map[Attr]fakeValue
	elems []Ref
}

type fakeValue struct {
	ref   Ref
	konst Const
}

type fakeItem struct {
	service string
	account string
	group   string
	label   string
	secret  []byte
	// text stores the secret as a string object instead of data.
	text bool
	// lossyAccount makes the account unrepresentable as UTF-8.
	lossyAccount bool
}

func newFakeKeychain() *fakeKeychain {
	return &fakeKeychain{
		objects:    make(map[Ref]*fakeObject),
		failStatus: StatusInteractionNotAllowed,
	}
}

// balanced reports whether every acquired handle was released exactly once
// and nothing is left alive.
func (f *fakeKeychain) balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired == f.released && f.overRelease == 0 && len(f.objects) == 0
}

func (f *fakeKeychain) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeKeychain) put(it *fakeItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, it)
}

func (f *fakeKeychain) item(service, account string) *fakeItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.service == service && it.account == account {
			return it
		}
	}
	return nil
}

// snapshot renders a dictionary for assertions: strings as their value,
// data as "data:<bytes>", constants as "const:<n>".
func (f *fakeKeychain) snapshot(dict Ref) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	o := f.objects[dict]
	if o == nil {
		return out
	}
	for k, v := range o.dict {
		switch {
		case v.ref == 0:
			out[k.String()] = constName(v.konst)
		case f.objects[v.ref].typ == TypeData:
			out[k.String()] = "data:" + string(f.objects[v.ref].data)
		default:
			out[k.String()] = f.objects[v.ref].str
		}
	}
	return out
}

func constName(c Const) string {
	switch c {
	case ConstGenericPassword:
		return "genp"
	case ConstMatchLimitOne:
		return "m_LimitOne"
	case ConstTrue:
		return "true"
	}
	return "?"
}

func (f *fakeKeychain) fail() (Status, bool) {
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return f.failStatus, true
	}
	return StatusSuccess, false
}

// own allocates a caller-owned object.
func (f *fakeKeychain) own(o *fakeObject) Ref {
	f.acquired++
	return f.child(o)
}

// child allocates an object owned by a container.
func (f *fakeKeychain) child(o *fakeObject) Ref {
	f.next++
	o.refs = 1
	f.objects[f.next] = o
	return f.next
}

func (f *fakeKeychain) drop(ref Ref) {
	o, ok := f.objects[ref]
	if !ok {
		f.overRelease++
		return
	}
	o.refs--
	if o.refs > 0 {
		return
	}
	delete(f.objects, ref)
	for _, v := range o.dict {
		if v.ref != 0 {
			f.drop(v.ref)
		}
	}
	for _, e := range o.elems {
		f.drop(e)
	}
}

func (f *fakeKeychain) NewString(s string) (Ref, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return 0, status
	}
	return f.own(&fakeObject{typ: TypeString, str: s}), StatusSuccess
}

func (f *fakeKeychain) NewData(b []byte) (Ref, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return 0, status
	}
	return f.own(&fakeObject{typ: TypeData, data: bytes.Clone(b)}), StatusSuccess
}

func (f *fakeKeychain) NewDictionary() (Ref, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return 0, status
	}
	return f.own(&fakeObject{typ: TypeDictionary, dict: map[Attr]fakeValue{}}), StatusSuccess
}

func (f *fakeKeychain) SetValue(dict Ref, key Attr, value Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.objects[dict]
	if v, ok := f.objects[value]; ok {
		v.refs++
	}
	if old, ok := o.dict[key]; ok && old.ref != 0 {
		f.drop(old.ref)
	}
	o.dict[key] = fakeValue{ref: value}
}

func (f *fakeKeychain) SetConst(dict Ref, key Attr, value Const) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.objects[dict]
	if old, ok := o.dict[key]; ok && old.ref != 0 {
		f.drop(old.ref)
	}
	o.dict[key] = fakeValue{konst: value}
}

type fakeQuery struct {
	valid      bool
	service    *string
	account    *string
	group      *string
	returnData  bool
	returnAttrs bool
	returnRef   bool
	secret      []byte
	hasSecret   bool
}

func (f *fakeKeychain) read(dict Ref) fakeQuery {
	o := f.objects[dict]
	if o == nil || o.typ != TypeDictionary {
		return fakeQuery{}
	}
	q := fakeQuery{valid: true}
	str := func(key Attr) *string {
		v, ok := o.dict[key]
		if !ok || v.ref == 0 {
			return nil
		}
		s := f.objects[v.ref].str
		return &s
	}
	q.service = str(AttrService)
	q.account = str(AttrAccount)
	q.group = str(AttrAccessGroup)
	q.returnData = o.dict[AttrReturnData].konst == ConstTrue
	q.returnAttrs = o.dict[AttrReturnAttributes].konst == ConstTrue
	q.returnRef = o.dict[AttrReturnRef].konst == ConstTrue
	if v, ok := o.dict[AttrValueData]; ok && v.ref != 0 {
		q.secret = bytes.Clone(f.objects[v.ref].data)
		q.hasSecret = true
	}
	if c, ok := o.dict[AttrClass]; ok && c.konst != ConstGenericPassword {
		q.valid = false
	}
	return q
}

func (q fakeQuery) matches(it *fakeItem) bool {
	if q.service != nil && *q.service != it.service {
		return false
	}
	if q.account != nil && *q.account != it.account {
		return false
	}
	if q.group != nil && *q.group != it.group {
		return false
	}
	return true
}

func (f *fakeKeychain) find(q fakeQuery) []*fakeItem {
	var hits []*fakeItem
	for _, it := range f.items {
		if q.matches(it) {
			hits = append(hits, it)
		}
	}
	return hits
}

func (f *fakeKeychain) CopyMatching(query Ref) (Ref, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		if f.refOnFailure {
			return f.own(&fakeObject{typ: TypeOther}), status
		}
		return 0, status
	}

	q := f.read(query)
	if !q.valid {
		return 0, StatusParam
	}
	hits := f.find(q)
	if len(hits) == 0 {
		return 0, StatusItemNotFound
	}

	if f.multiMatch {
		arr := &fakeObject{typ: TypeArray}
		for _, it := range append(hits, hits[0]) {
			arr.elems = append(arr.elems, f.result(q, it))
		}
		return f.own(arr), StatusSuccess
	}

	ref := f.result(q, hits[0])
	f.acquired++
	return ref, StatusSuccess
}

// result builds a container-owned result object for one item.
func (f *fakeKeychain) result(q fakeQuery, it *fakeItem) Ref {
	if !q.returnData && !q.returnAttrs {
		return f.child(&fakeObject{typ: TypeOther})
	}
	if f.resultType != TypeOther && f.resultType != TypeDictionary {
		return f.child(&fakeObject{typ: f.resultType, data: bytes.Clone(it.secret)})
	}

	dict := &fakeObject{typ: TypeDictionary, dict: map[Attr]fakeValue{}}
	set := func(key Attr, o *fakeObject) {
		dict.dict[key] = fakeValue{ref: f.child(o)}
	}
	set(AttrService, &fakeObject{typ: TypeString, str: it.service})
	set(AttrAccount, &fakeObject{typ: TypeString, str: it.account, lossy: it.lossyAccount})
	if it.label != "" {
		set(AttrLabel, &fakeObject{typ: TypeString, str: it.label})
	}
	if it.group != "" {
		set(AttrAccessGroup, &fakeObject{typ: TypeString, str: it.group})
	}
	if !q.returnData {
		return f.child(dict)
	}
	if it.text {
		set(AttrValueData, &fakeObject{typ: TypeString, str: string(it.secret)})
	} else {
		set(AttrValueData, &fakeObject{typ: TypeData, data: bytes.Clone(it.secret)})
	}
	return f.child(dict)
}

func (f *fakeKeychain) Add(attrs Ref) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return status
	}
	q := f.read(attrs)
	if !q.valid || q.service == nil || q.account == nil || !q.hasSecret {
		return StatusParam
	}
	it := &fakeItem{service: *q.service, account: *q.account, secret: q.secret}
	if q.group != nil {
		it.group = *q.group
	}
	for _, existing := range f.items {
		if existing.service == it.service && existing.account == it.account && existing.group == it.group {
			return StatusDuplicateItem
		}
	}
	f.items = append(f.items, it)
	return StatusSuccess
}

func (f *fakeKeychain) Update(query, attrs Ref) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return status
	}
	q, a := f.read(query), f.read(attrs)
	if !q.valid || !a.hasSecret {
		return StatusParam
	}
	hits := f.find(q)
	if len(hits) == 0 {
		return StatusItemNotFound
	}
	for _, it := range hits {
		it.secret = bytes.Clone(a.secret)
		it.text = false
	}
	return StatusSuccess
}

func (f *fakeKeychain) Delete(query Ref) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, failed := f.fail(); failed {
		return status
	}
	q := f.read(query)
	if !q.valid {
		return StatusParam
	}
	kept := f.items[:0]
	removed := 0
	for _, it := range f.items {
		if q.matches(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	f.items = kept
	if removed == 0 {
		return StatusItemNotFound
	}
	return StatusSuccess
}

func (f *fakeKeychain) TypeOf(ref Ref) Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[ref]; ok {
		return o.typ
	}
	return TypeOther
}

func (f *fakeKeychain) Lookup(dict Ref, key Attr) Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[dict]
	if !ok || o.dict == nil {
		return 0
	}
	return o.dict[key].ref
}

func (f *fakeKeychain) StringValue(ref Ref) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[ref]
	if !ok || o.typ != TypeString || o.lossy {
		return "", false
	}
	return o.str, true
}

func (f *fakeKeychain) DataValue(ref Ref) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[ref]; ok {
		return bytes.Clone(o.data)
	}
	return nil
}

func (f *fakeKeychain) Message(status Status) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[status]
}

func (f *fakeKeychain) Release(ref Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	f.drop(ref)
}

var _ Native = (*fakeKeychain)(nil)
