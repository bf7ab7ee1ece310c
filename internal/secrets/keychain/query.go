package keychain

import "github.com/semmy-space/credstore/internal/secrets"

type queryMode int

const (
	// modeSearch asks for the secret data and the item attributes.
	modeSearch queryMode = iota
	// modeProbe asks for an item reference only, so no secret is read. With
	// no account filter it also asks for the attributes, so the caller can
	// tell which item matched.
	modeProbe
	// modeTarget selects items for SecItemUpdate and SecItemDelete.
	modeTarget
)

// queryBuilder assembles Security framework query dictionaries. Filters for
// blank service or account are omitted, which matches any value.
type queryBuilder struct {
	namespace   string
	accessGroup string
}

func (b queryBuilder) build(sc *scope, mode queryMode, service, account string) (Ref, Status) {
	query, status := sc.dictionary()
	if status != StatusSuccess {
		return 0, status
	}

	n := sc.native
	n.SetConst(query, AttrClass, ConstGenericPassword)
	n.SetConst(query, AttrMatchLimit, ConstMatchLimitOne)

	switch mode {
	case modeSearch:
		n.SetConst(query, AttrReturnData, ConstTrue)
		n.SetConst(query, AttrReturnAttributes, ConstTrue)
	case modeProbe:
		n.SetConst(query, AttrReturnRef, ConstTrue)
		if secrets.IsBlank(account) {
			n.SetConst(query, AttrReturnAttributes, ConstTrue)
		}
	}

	if !secrets.IsBlank(service) {
		if status := sc.setString(query, AttrService, secrets.Qualify(b.namespace, service)); status != StatusSuccess {
			return 0, status
		}
	}
	if !secrets.IsBlank(account) {
		if status := sc.setString(query, AttrAccount, account); status != StatusSuccess {
			return 0, status
		}
	}
	if b.accessGroup != "" {
		if status := sc.setString(query, AttrAccessGroup, b.accessGroup); status != StatusSuccess {
			return 0, status
		}
	}

	return query, StatusSuccess
}

// exact selects the single item named by a qualified service, an account
// and an access group as a lookup reported them. The account is always set,
// so an empty account matches only items whose account is empty.
func (b queryBuilder) exact(sc *scope, qualified, account, group string) (Ref, Status) {
	query, status := sc.dictionary()
	if status != StatusSuccess {
		return 0, status
	}
	sc.native.SetConst(query, AttrClass, ConstGenericPassword)

	if status := sc.setString(query, AttrService, qualified); status != StatusSuccess {
		return 0, status
	}
	if status := sc.setString(query, AttrAccount, account); status != StatusSuccess {
		return 0, status
	}
	if group == "" {
		group = b.accessGroup
	}
	if group != "" {
		if status := sc.setString(query, AttrAccessGroup, group); status != StatusSuccess {
			return 0, status
		}
	}
	return query, StatusSuccess
}

// item assembles the full attribute set for SecItemAdd. No label is set.
func (b queryBuilder) item(sc *scope, service, account string, secret []byte) (Ref, Status) {
	attrs, status := sc.dictionary()
	if status != StatusSuccess {
		return 0, status
	}
	sc.native.SetConst(attrs, AttrClass, ConstGenericPassword)

	if status := sc.setString(attrs, AttrService, secrets.Qualify(b.namespace, service)); status != StatusSuccess {
		return 0, status
	}
	if status := sc.setString(attrs, AttrAccount, account); status != StatusSuccess {
		return 0, status
	}
	if b.accessGroup != "" {
		if status := sc.setString(attrs, AttrAccessGroup, b.accessGroup); status != StatusSuccess {
			return 0, status
		}
	}
	if status := sc.setData(attrs, AttrValueData, secret); status != StatusSuccess {
		return 0, status
	}

	return attrs, StatusSuccess
}

// secretOnly assembles the SecItemUpdate attribute set that replaces the
// secret and leaves every other attribute alone.
func (b queryBuilder) secretOnly(sc *scope, secret []byte) (Ref, Status) {
	attrs, status := sc.dictionary()
	if status != StatusSuccess {
		return 0, status
	}
	if status := sc.setData(attrs, AttrValueData, secret); status != StatusSuccess {
		return 0, status
	}
	return attrs, StatusSuccess
}
