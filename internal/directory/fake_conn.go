package directory

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// FakeConn is an in-memory directory implementing the Conn surface.
// Search supports the filter shapes this service emits (equality,
// presence, and/or/not); Modify applies add/delete/replace semantics to
// the stored entries and records every request for assertions.

type FakeEntry struct {
	DN    string
	Attrs map[string][]string
}

type FakeConn struct {
	mu      sync.Mutex
	Entries []*FakeEntry

	BindErr   error
	SearchErr error
	// ModifyErr, when set, is consulted per request before it is applied.
	ModifyErr func(req *ldap.ModifyRequest) error

	Modifies []*ldap.ModifyRequest
	BoundAs  string
	Closed   bool
	Timeout  time.Duration
}

func (c *FakeConn) Bind(username, password string) error {
	if c.BindErr != nil {
		return c.BindErr
	}
	c.BoundAs = username
	return nil
}

func (c *FakeConn) UnauthenticatedBind(username string) error {
	if c.BindErr != nil {
		return c.BindErr
	}
	c.BoundAs = username
	return nil
}

func (c *FakeConn) SetTimeout(d time.Duration) { c.Timeout = d }

func (c *FakeConn) Close() error {
	c.Closed = true
	return nil
}

func (c *FakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.SearchErr != nil {
		return nil, c.SearchErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	res := &ldap.SearchResult{}
	for _, e := range c.Entries {
		if matchFilter(req.Filter, e) {
			res.Entries = append(res.Entries, ldap.NewEntry(e.DN, selectAttrs(e.Attrs, req.Attributes)))
		}
	}
	return res, nil
}

func (c *FakeConn) Modify(req *ldap.ModifyRequest) error {
	if c.ModifyErr != nil {
		if err := c.ModifyErr(req); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Modifies = append(c.Modifies, req)

	e := c.findDN(req.DN)
	if e == nil {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object"))
	}
	if e.Attrs == nil {
		e.Attrs = make(map[string][]string)
	}

	for _, ch := range req.Changes {
		attr := strings.ToLower(ch.Modification.Type)
		vals := ch.Modification.Vals

		switch ch.Operation {
		case ldap.AddAttribute:
			e.Attrs[attr] = append(e.Attrs[attr], vals...)
		case ldap.DeleteAttribute:
			if len(vals) == 0 {
				delete(e.Attrs, attr)
				break
			}
			kept := e.Attrs[attr][:0]
			for _, v := range e.Attrs[attr] {
				if !slices.Contains(vals, v) {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				delete(e.Attrs, attr)
			} else {
				e.Attrs[attr] = kept
			}
		case ldap.ReplaceAttribute:
			if len(vals) == 0 {
				delete(e.Attrs, attr)
			} else {
				e.Attrs[attr] = slices.Clone(vals)
			}
		}
	}
	return nil
}

func (c *FakeConn) findDN(dn string) *FakeEntry {
	for _, e := range c.Entries {
		if strings.EqualFold(e.DN, dn) {
			return e
		}
	}
	return nil
}

func selectAttrs(attrs map[string][]string, requested []string) map[string][]string {
	if len(requested) == 0 {
		return attrs
	}
	out := make(map[string][]string, len(requested))
	for _, name := range requested {
		if vals, ok := attrs[strings.ToLower(name)]; ok {
			out[strings.ToLower(name)] = vals
		}
	}
	return out
}

func matchFilter(filter string, e *FakeEntry) bool {
	f := strings.TrimSpace(filter)
	if len(f) < 2 || f[0] != '(' || f[len(f)-1] != ')' {
		return false
	}
	inner := f[1 : len(f)-1]

	switch {
	case strings.HasPrefix(inner, "&"):
		for _, sub := range splitGroups(inner[1:]) {
			if !matchFilter(sub, e) {
				return false
			}
		}
		return true
	case strings.HasPrefix(inner, "|"):
		for _, sub := range splitGroups(inner[1:]) {
			if matchFilter(sub, e) {
				return true
			}
		}
		return false
	case strings.HasPrefix(inner, "!"):
		subs := splitGroups(inner[1:])
		return len(subs) == 1 && !matchFilter(subs[0], e)
	}

	attr, value, ok := strings.Cut(inner, "=")
	if !ok {
		return false
	}
	vals := e.Attrs[strings.ToLower(attr)]
	if value == "*" {
		return len(vals) > 0
	}
	return slices.Contains(vals, value)
}

func splitGroups(s string) []string {
	var groups []string
	depth, start := 0, -1
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				groups = append(groups, s[start:i+1])
			}
		}
	}
	return groups
}
