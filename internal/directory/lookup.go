package directory

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/qldap/ldap-vacation/internal/config"
)

// FindEntry resolves an identity to exactly one directory entry under the
// configured base DN, requesting only the given attributes. Zero matches
// and multiple matches are both hard errors: an ambiguous filter is a
// configuration bug and must never silently pick a result.
func FindEntry(s *Session, cfg config.LDAPConfig, id Identity, attrs []string) (*ldap.Entry, error) {
	filter, err := BuildFilter(cfg.Filter, id)
	if err != nil {
		return nil, err
	}
	return findWithFilter(s, cfg, filter, id, attrs)
}

// FindByAttr resolves a single entry by one attribute equality match.
// Used to map a bearer token subject to a directory entry.
func FindByAttr(s *Session, cfg config.LDAPConfig, attr, value string, attrs []string) (*ldap.Entry, error) {
	filter := fmt.Sprintf("(%s=%s)", SafeAttr(attr), ldap.EscapeFilter(value))
	return findWithFilter(s, cfg, filter, Identity{Login: value}, attrs)
}

func findWithFilter(s *Session, cfg config.LDAPConfig, filter string, id Identity, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, cfg.SearchTimeLimit, false,
		filter,
		attrs,
		nil,
	)

	res, err := s.Search(req)
	if err != nil {
		var te *TimeoutError
		var ce *ConnectionError
		if errors.As(err, &te) || errors.As(err, &ce) {
			return nil, err
		}
		return nil, &SearchError{BaseDN: cfg.BaseDN, Filter: filter, Err: err}
	}

	switch n := len(res.Entries); {
	case n == 0:
		return nil, &NotFoundError{Login: id.Login, Email: id.Email, Filter: filter}
	case n > 1:
		return nil, &AmbiguousEntryError{Login: id.Login, Filter: filter, Count: n}
	}

	return res.Entries[0], nil
}
