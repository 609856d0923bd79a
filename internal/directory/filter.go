package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Identity is the per-request user identity handed in by the
// authentication layer. It is never stored.
type Identity struct {
	Login string
	Email string
}

// BuildFilter substitutes %email and %login in the configured filter
// template. Both values are filter-escaped before substitution; the
// identity is user-controlled, and an unescaped value could widen the
// match or change the filter logic entirely.
func BuildFilter(template string, id Identity) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", &FilterError{Template: template, Reason: "empty filter template"}
	}
	f := strings.ReplaceAll(template, "%email", ldap.EscapeFilter(id.Email))
	f = strings.ReplaceAll(f, "%login", ldap.EscapeFilter(id.Login))
	if _, err := ldap.CompileFilter(f); err != nil {
		return "", &FilterError{Template: template, Err: err}
	}
	return f, nil
}

// SafeAttr truncates at the first character that is not an
// attribute-name character. Attribute names sourced from tokens or
// config are run through this before being interpolated into a filter;
// cutting at the first bad rune keeps the leading valid name instead of
// gluing unrelated fragments together.
func SafeAttr(a string) string {
	for i, r := range a {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return a[:i]
	}
	return a
}
