package vacation

import "slices"

// deliveryModeReply is the qmail-ldap delivery-mode token that switches
// the auto-reply on. The delivery-mode attribute is multi-valued and may
// carry unrelated tokens (local, forward, ...) that must survive a toggle.
const deliveryModeReply = "reply"

// Record is the resolved vacation state for one user. It is built fresh
// on every load and never cached across requests.
type Record struct {
	DN        string
	ReplyText string
	Enabled   bool
}

// EnabledFrom reports whether the delivery-mode value set switches the
// auto-reply on. The match is exact and case-sensitive: "reply-forward"
// does not count, and the presence of other values never does.
func EnabledFrom(modes []string) bool {
	return slices.Contains(modes, deliveryModeReply)
}
