package keychain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/credstore/internal/secrets"
)

type step struct {
	op      byte // g, s, r
	service string
	account string
	secret  string
}

func (s step) String() string {
	return fmt.Sprintf("%c(%q,%q)", s.op, s.service, s.account)
}

func (s step) run(store *Store) error {
	switch s.op {
	case 'g':
		_, err := store.Get(s.service, s.account)
		return err
	case 's':
		return store.AddOrUpdate(s.service, s.account, []byte(s.secret))
	default:
		_, err := store.Remove(s.service, s.account)
		return err
	}
}

var scenarios = map[string][]step{
	"add then read": {
		{op: 's', service: "svc", account: "alice", secret: "pw"},
		{op: 'g', service: "svc", account: "alice"},
	},
	"update existing": {
		{op: 's', service: "svc", account: "alice", secret: "pw1"},
		{op: 's', service: "svc", account: "alice", secret: "pw2"},
		{op: 'g', service: "svc", account: ""},
	},
	"update without account": {
		{op: 's', service: "svc", account: "alice", secret: "pw1"},
		{op: 's', service: "svc", account: "", secret: "pw2"},
		{op: 'g', service: "svc", account: "alice"},
	},
	"remove twice": {
		{op: 's', service: "svc", account: "alice", secret: "pw"},
		{op: 'r', service: "svc", account: "alice"},
		{op: 'r', service: "svc", account: "alice"},
		{op: 'g', service: "svc", account: "alice"},
	},
}

// countCalls runs steps without injection and returns the number of
// fallible native calls they make.
func countCalls(t *testing.T, steps []step, opts secrets.Options) int {
	native := newFakeKeychain()
	store := New(native, opts)
	for _, s := range steps {
		require.NoError(t, s.run(store), s.String())
	}
	return native.calls
}

func TestResourceSafetyUnderInjectedFailure(t *testing.T) {
	opts := secrets.Options{Namespace: "ns", AccessGroup: "group"}

	for name, steps := range scenarios {
		total := countCalls(t, steps, opts)
		require.Positive(t, total)

		for _, refOnFailure := range []bool{false, true} {
			for failAt := 1; failAt <= total; failAt++ {
				t.Run(fmt.Sprintf("%s/at%d/ref=%v", name, failAt, refOnFailure), func(t *testing.T) {
					native := newFakeKeychain()
					native.failAt = failAt
					native.refOnFailure = refOnFailure
					store := New(native, opts)

					var failures int
					for _, s := range steps {
						if err := s.run(store); err != nil {
							failures++
							assert.Equal(t, secrets.NativeFailure, secrets.KindOf(err), s.String())
						}
					}
					assert.Equal(t, 1, failures)
					assert.Equal(t, native.acquired, native.released)
					assert.True(t, native.balanced(), "live objects: %d", len(native.objects))
				})
			}
		}
	}
}

func TestResourceSafetyOnContractViolation(t *testing.T) {
	native := newFakeKeychain()
	native.multiMatch = true
	store := New(native, secrets.Options{})
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("pw")})

	_, err := store.Get("svc", "")
	assert.Error(t, err)
	assert.Error(t, store.AddOrUpdate("svc", "alice", []byte("x")))
	assert.True(t, native.balanced())
}

func FuzzResourceSafety(f *testing.F) {
	f.Add([]byte("sgr"), uint8(0), false, "svc", "alice")
	f.Add([]byte("ssgrr"), uint8(5), true, "svc", "")
	f.Add([]byte("gggg"), uint8(2), false, " ", "bob")
	f.Add([]byte("srsg"), uint8(9), true, "a:b", "a/b")

	f.Fuzz(func(t *testing.T, ops []byte, failAt uint8, multi bool, service, account string) {
		if len(ops) > 32 {
			ops = ops[:32]
		}
		native := newFakeKeychain()
		native.failAt = int(failAt)
		native.multiMatch = multi
		native.refOnFailure = failAt%2 == 1
		store := New(native, secrets.Options{Namespace: "fz"})

		for i, op := range ops {
			s := step{op: "gsr"[int(op)%3], service: service, account: account, secret: fmt.Sprint(i)}
			err := s.run(store)
			if err != nil && secrets.KindOf(err) == 0 {
				t.Fatalf("%s returned an untyped error: %v", s, err)
			}
		}
		if !native.balanced() {
			t.Fatalf("acquired %d released %d over-released %d live %d",
				native.acquired, native.released, native.overRelease, len(native.objects))
		}
	})
}
