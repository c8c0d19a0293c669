package zento

// Locals keys shared with the signin middleware and the ledger handlers
const (
	SessionLocalsKey    = "zento.session"
	ResolutionLocalsKey = "zento.resolution"
)

// LocalsStore is the part of router.Context used to share request state
type LocalsStore interface {
	Locals(key any, value ...any) any
}

// SetRouterSession stores the authenticated session in request locals
func SetRouterSession(c LocalsStore, session AuthSession) {
	c.Locals(SessionLocalsKey, session)
}

// GetRouterSession extracts the authenticated session from request locals
func GetRouterSession(c LocalsStore) (AuthSession, bool) {
	raw := c.Locals(SessionLocalsKey)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(AuthSession)
	return session, ok
}

// GetRouterResolution returns the Resolution cached for this request
func GetRouterResolution(c LocalsStore) (Resolution, bool) {
	raw := c.Locals(ResolutionLocalsKey)
	if raw == nil {
		return Resolution{}, false
	}
	res, ok := raw.(Resolution)
	return res, ok
}
