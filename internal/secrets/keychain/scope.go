package keychain

// scope owns every native object acquired while serving one call. Close
// releases them in reverse acquisition order and must be deferred right
// after the scope is created.
type scope struct {
	native Native
	refs   []Ref
}

func newScope(native Native) *scope {
	return &scope{native: native}
}

// hold takes ownership of ref. Null refs are ignored.
func (s *scope) hold(ref Ref) Ref {
	if ref != 0 {
		s.refs = append(s.refs, ref)
	}
	return ref
}

func (s *scope) Close() {
	for i := len(s.refs) - 1; i >= 0; i-- {
		s.native.Release(s.refs[i])
	}
	s.refs = nil
}

func (s *scope) dictionary() (Ref, Status) {
	ref, status := s.native.NewDictionary()
	s.hold(ref)
	return ref, status
}

func (s *scope) str(v string) (Ref, Status) {
	ref, status := s.native.NewString(v)
	s.hold(ref)
	return ref, status
}

func (s *scope) data(b []byte) (Ref, Status) {
	ref, status := s.native.NewData(b)
	s.hold(ref)
	return ref, status
}

// setString stores v under key in dict. The temporary string is held by the
// scope; the dictionary keeps its own reference.
func (s *scope) setString(dict Ref, key Attr, v string) Status {
	ref, status := s.str(v)
	if status != StatusSuccess {
		return status
	}
	s.native.SetValue(dict, key, ref)
	return StatusSuccess
}

func (s *scope) setData(dict Ref, key Attr, b []byte) Status {
	ref, status := s.data(b)
	if status != StatusSuccess {
		return status
	}
	s.native.SetValue(dict, key, ref)
	return StatusSuccess
}
