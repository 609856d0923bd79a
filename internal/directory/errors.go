package directory

import (
	"fmt"
)

// The protocol layer reports failures through a small taxonomy of typed
// errors. Each one carries enough context (server, DN, attribute, server
// error text) to diagnose a failure from the log alone. None of them is
// retried anywhere: a directory mutation is not safely retryable without
// a conflict check this service does not implement.

type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ldap connect %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Server string
	Op     string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ldap %s timed out on %s: %v", e.Op, e.Server, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

type AuthenticationError struct {
	Server string
	BindDN string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.BindDN == "" {
		return fmt.Sprintf("ldap anonymous bind to %s rejected: %v", e.Server, e.Err)
	}
	return fmt.Sprintf("ldap bind as %s to %s rejected: %v", e.BindDN, e.Server, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

type FilterError struct {
	Template string
	Reason   string
	Err      error
}

func (e *FilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad search filter %q: %v", e.Template, e.Err)
	}
	return fmt.Sprintf("bad search filter %q: %s", e.Template, e.Reason)
}

func (e *FilterError) Unwrap() error { return e.Err }

type SearchError struct {
	BaseDN string
	Filter string
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("ldap search under %s with filter %s failed: %v", e.BaseDN, e.Filter, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// NotFoundError and AmbiguousEntryError both point at configuration
// problems (wrong filter template, duplicate entries), not user mistakes.
// Callers log them at a severity that gets operator attention.

type NotFoundError struct {
	Login  string
	Email  string
	Filter string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no directory entry for login=%q email=%q (filter: %s)", e.Login, e.Email, e.Filter)
}

type AmbiguousEntryError struct {
	Login  string
	Filter string
	Count  int
}

func (e *AmbiguousEntryError) Error() string {
	return fmt.Sprintf("%d directory entries match login=%q (filter: %s), expected exactly one", e.Count, e.Login, e.Filter)
}

type WriteError struct {
	DN        string
	Attribute string
	// Partial is set when an earlier attribute write in the same save had
	// already been committed, so the entry is in a mixed state.
	Partial bool
	Err     error
}

func (e *WriteError) Error() string {
	if e.Partial {
		return fmt.Sprintf("ldap modify of %s on %s failed after a previous attribute was committed (partial update): %v", e.Attribute, e.DN, e.Err)
	}
	return fmt.Sprintf("ldap modify of %s on %s failed: %v", e.Attribute, e.DN, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
