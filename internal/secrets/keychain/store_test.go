package keychain

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/credstore/internal/secrets"
	"github.com/semmy-space/credstore/internal/secrets/secretstest"
)

func TestStoreContract(t *testing.T) {
	secretstest.RunContract(t, func(t *testing.T) secretstest.Opener {
		native := newFakeKeychain()
		t.Cleanup(func() {
			assert.True(t, native.balanced(), "acquired %d released %d", native.acquired, native.released)
		})
		return func(opts secrets.Options) secrets.Store { return New(native, opts) }
	})
}

func TestGetReturnsLabelAndUnqualifiedService(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "work:svc", account: "alice", label: "Work login", secret: []byte("pw")})
	store := New(native, secrets.Options{Namespace: "work"})

	cred, err := store.Get("svc", "alice")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "svc", cred.Service)
	assert.Equal(t, "Work login", cred.Label)
	assert.True(t, native.balanced())
}

func TestGetDecodesTextSecret(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("héllo"), text: true})

	cred, err := New(native, secrets.Options{}).Get("svc", "alice")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []byte("héllo"), cred.Secret)
}

func TestGetRejectsUnconvertibleAttribute(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("pw"), lossyAccount: true})

	cred, err := New(native, secrets.Options{}).Get("svc", "alice")
	assert.Nil(t, cred)
	require.Error(t, err)
	assert.True(t, errors.Is(err, secrets.ErrContractViolation))
	assert.True(t, native.balanced())
}

func TestGetRejectsCollection(t *testing.T) {
	native := newFakeKeychain()
	native.multiMatch = true
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("a")})
	native.put(&fakeItem{service: "svc", account: "bob", secret: []byte("b")})

	cred, err := New(native, secrets.Options{}).Get("svc", "")
	assert.Nil(t, cred)
	assert.Equal(t, secrets.ContractViolation, secrets.KindOf(err))
	assert.True(t, native.balanced())
}

func TestGetRejectsUnexpectedResultType(t *testing.T) {
	native := newFakeKeychain()
	native.resultType = TypeData
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("a")})

	_, err := New(native, secrets.Options{}).Get("svc", "alice")
	assert.Equal(t, secrets.ContractViolation, secrets.KindOf(err))
	assert.ErrorContains(t, err, "data instead of an attribute dictionary")
	assert.True(t, native.balanced())
}

func TestAddOrUpdateRejectsCollectionWithoutWriting(t *testing.T) {
	native := newFakeKeychain()
	native.multiMatch = true
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("old")})

	err := New(native, secrets.Options{}).AddOrUpdate("svc", "alice", []byte("new"))
	assert.Equal(t, secrets.ContractViolation, secrets.KindOf(err))
	assert.Equal(t, []byte("old"), native.item("svc", "alice").secret)
	assert.True(t, native.balanced())
}

func TestAddOrUpdateProbeFailureAborts(t *testing.T) {
	native := newFakeKeychain()
	store := New(native, secrets.Options{})
	// dictionary, service string, account string, then the probe itself
	native.failAt = 4

	err := store.AddOrUpdate("svc", "alice", []byte("pw"))
	require.Error(t, err)

	var se *secrets.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, secrets.NativeFailure, se.Kind)
	assert.Equal(t, int(StatusInteractionNotAllowed), se.Code)
	assert.Equal(t, "user interaction is not allowed", se.Message)
	assert.Zero(t, native.count(), "nothing written after a failed probe")
	assert.True(t, native.balanced())
}

func TestAddOrUpdateRequiresService(t *testing.T) {
	native := newFakeKeychain()
	err := New(native, secrets.Options{}).AddOrUpdate(" ", "alice", []byte("pw"))
	assert.True(t, errors.Is(err, secrets.ErrInvalidArgument))
	assert.Zero(t, native.acquired, "validation happens before any native call")
}

func TestAddOrUpdateEmptyAccountIsStored(t *testing.T) {
	native := newFakeKeychain()
	store := New(native, secrets.Options{})

	require.NoError(t, store.AddOrUpdate("svc", "", []byte("pw")))
	it := native.item("svc", "")
	require.NotNil(t, it)
	assert.Equal(t, []byte("pw"), it.secret)
}

func TestAddOrUpdateKeepsLabel(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", label: "mine", secret: []byte("old")})

	require.NoError(t, New(native, secrets.Options{}).AddOrUpdate("svc", "alice", []byte("new")))
	it := native.item("svc", "alice")
	assert.Equal(t, "mine", it.label)
	assert.Equal(t, []byte("new"), it.secret)
}

func TestAddOrUpdateWithoutAccountRewritesOneItem(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("a")})
	native.put(&fakeItem{service: "svc", account: "bob", secret: []byte("b")})

	require.NoError(t, New(native, secrets.Options{}).AddOrUpdate("svc", "", []byte("new")))
	assert.Equal(t, []byte("new"), native.item("svc", "alice").secret)
	assert.Equal(t, []byte("b"), native.item("svc", "bob").secret)
	assert.Equal(t, 2, native.count())
	assert.True(t, native.balanced())
}

func TestAddOrUpdateWithoutAccountMatchesEmptyAccountExactly(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "", secret: []byte("a")})
	native.put(&fakeItem{service: "svc", account: "bob", secret: []byte("b")})

	require.NoError(t, New(native, secrets.Options{}).AddOrUpdate("svc", "", []byte("new")))
	assert.Equal(t, []byte("new"), native.item("svc", "").secret)
	assert.Equal(t, []byte("b"), native.item("svc", "bob").secret)
	assert.True(t, native.balanced())
}

func TestAddOrUpdateWithoutAccountStaysInMatchedGroup(t *testing.T) {
	native := newFakeKeychain()
	first := &fakeItem{service: "svc", account: "alice", group: "TEAM.one", secret: []byte("one")}
	second := &fakeItem{service: "svc", account: "alice", group: "TEAM.two", secret: []byte("two")}
	native.put(first)
	native.put(second)

	require.NoError(t, New(native, secrets.Options{}).AddOrUpdate("svc", "", []byte("new")))
	assert.Equal(t, []byte("new"), first.secret)
	assert.Equal(t, []byte("two"), second.secret)
	assert.True(t, native.balanced())
}

func TestAddOrUpdateWithoutAccountRejectsBareReference(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("old")})

	err := New(referenceOnlyKeychain{native}, secrets.Options{}).AddOrUpdate("svc", "", []byte("new"))
	assert.Equal(t, secrets.ContractViolation, secrets.KindOf(err))
	assert.ErrorContains(t, err, "instead of an attribute dictionary")
	assert.Equal(t, []byte("old"), native.item("svc", "alice").secret)
	assert.True(t, native.balanced())
}

// referenceOnlyKeychain ignores the request for attributes and answers
// every lookup with a bare item reference.
type referenceOnlyKeychain struct {
	*fakeKeychain
}

func (r referenceOnlyKeychain) CopyMatching(query Ref) (Ref, Status) {
	r.mu.Lock()
	if o, ok := r.objects[query]; ok {
		delete(o.dict, AttrReturnAttributes)
	}
	r.mu.Unlock()
	return r.fakeKeychain.CopyMatching(query)
}

// vanishingKeychain deletes every item right after the probe, as a
// concurrent process would.
type vanishingKeychain struct {
	*fakeKeychain
}

func (v vanishingKeychain) CopyMatching(query Ref) (Ref, Status) {
	ref, status := v.fakeKeychain.CopyMatching(query)
	v.mu.Lock()
	v.items = nil
	v.mu.Unlock()
	return ref, status
}

func TestAddOrUpdateEntryRemovedAfterProbe(t *testing.T) {
	fake := newFakeKeychain()
	fake.put(&fakeItem{service: "svc", account: "alice", secret: []byte("old")})

	err := New(vanishingKeychain{fake}, secrets.Options{}).AddOrUpdate("svc", "alice", []byte("new"))
	var se *secrets.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, secrets.NativeFailure, se.Kind)
	assert.Equal(t, int(StatusItemNotFound), se.Code)
	assert.True(t, fake.balanced())
}

func TestAccessGroupScopesEntries(t *testing.T) {
	native := newFakeKeychain()
	shared := New(native, secrets.Options{AccessGroup: "TEAM.shared"})
	private := New(native, secrets.Options{})

	require.NoError(t, shared.AddOrUpdate("svc", "alice", []byte("s")))
	assert.Equal(t, "TEAM.shared", native.item("svc", "alice").group)

	other := New(native, secrets.Options{AccessGroup: "TEAM.other"})
	cred, err := other.Get("svc", "alice")
	require.NoError(t, err)
	assert.Nil(t, cred)

	// No access group filter matches every group.
	cred, err = private.Get("svc", "alice")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []byte("s"), cred.Secret)
}

func TestRemoveWithoutAccountDeletesEveryMatch(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("a")})
	native.put(&fakeItem{service: "svc", account: "bob", secret: []byte("b")})
	native.put(&fakeItem{service: "other", account: "alice", secret: []byte("o")})

	removed, err := New(native, secrets.Options{}).Remove("svc", "")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 1, native.count())
	assert.NotNil(t, native.item("other", "alice"))
	assert.True(t, native.balanced())
}

func TestRemoveNativeFailure(t *testing.T) {
	native := newFakeKeychain()
	native.put(&fakeItem{service: "svc", account: "alice", secret: []byte("pw")})
	native.failStatus = StatusAuthFailed
	native.messages = map[Status]string{StatusAuthFailed: "The user name or passphrase you entered is not correct."}
	// dictionary, service, account, delete
	native.failAt = 4

	removed, err := New(native, secrets.Options{}).Remove("svc", "alice")
	assert.False(t, removed)
	var se *secrets.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, secrets.OpRemove, se.Op)
	assert.Equal(t, int(StatusAuthFailed), se.Code)
	assert.Equal(t, "The user name or passphrase you entered is not correct.", se.Message)
	assert.Equal(t, 1, native.count())
}

func TestUnknownStatusPassesThrough(t *testing.T) {
	native := newFakeKeychain()
	native.failStatus = -67671
	native.failAt = 4

	_, err := New(native, secrets.Options{}).Get("svc", "alice")
	var se *secrets.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, -67671, se.Code)
	assert.Equal(t, "unrecognised keychain status", se.Message)
}

func TestOpenOutsideDarwin(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("keychain is available")
	}
	_, err := Open(secrets.Options{})
	assert.ErrorIs(t, err, secrets.ErrUnsupportedPlatform)
	assert.ErrorIs(t, Supported(), secrets.ErrUnsupportedPlatform)
}
