package zento

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
)

// DefaultGuestCookieName is the bearer cookie holding the anonymous token
const DefaultGuestCookieName = "zento_anon"

// GuestCookieConfig describes the bearer cookie
type GuestCookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// DefaultGuestCookie returns the production cookie settings
func DefaultGuestCookie() GuestCookieConfig {
	return GuestCookieConfig{
		Name:   DefaultGuestCookieName,
		Secure: true,
		MaxAge: DefaultGuestTTL,
	}
}

// CookieJar is the cookie surface of router.Context
type CookieJar interface {
	Cookie(cookie *router.Cookie)
	Cookies(key string, defaultValue ...string) string
}

// RequestContext is the subset of router.Context the guest glue needs
type RequestContext interface {
	LocalsStore
	CookieJar
	Context() context.Context
}

// GuestGate connects the Resolver to HTTP requests: it reads the bearer
// cookie, resolves the owner once per request and writes cookie directives.
type GuestGate struct {
	resolver *Resolver
	cookie   GuestCookieConfig
	logger   Logger
}

// GuestGateOption configures a GuestGate
type GuestGateOption func(*GuestGate)

func WithGuestCookie(cfg GuestCookieConfig) GuestGateOption {
	return func(g *GuestGate) {
		if cfg.Name != "" {
			g.cookie.Name = cfg.Name
		}
		if cfg.MaxAge > 0 {
			g.cookie.MaxAge = cfg.MaxAge
		}
		g.cookie.Secure = cfg.Secure
	}
}

func WithGuestGateLogger(logger Logger) GuestGateOption {
	return func(g *GuestGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGuestGate(resolver *Resolver, opts ...GuestGateOption) *GuestGate {
	g := &GuestGate{
		resolver: resolver,
		cookie:   DefaultGuestCookie(),
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// CookieName returns the name of the bearer cookie
func (g *GuestGate) CookieName() string {
	return g.cookie.Name
}

// BearerToken reads the bearer cookie, empty when absent
func (g *GuestGate) BearerToken(c CookieJar) string {
	return c.Cookies(g.cookie.Name)
}

// ResolveRequestOwner returns the owner of the current request. The result
// is cached in locals so a request is resolved once. A cached Resolution
// without owner is only reused for reads.
func (g *GuestGate) ResolveRequestOwner(c RequestContext, access Access) (Resolution, error) {
	if res, ok := GetRouterResolution(c); ok {
		if res.HasOwner() || access == ReadAccess {
			return res, nil
		}
	}

	state := RequestState{BearerToken: g.BearerToken(c)}
	if session, ok := GetRouterSession(c); ok {
		state.Session = session
	}

	res, err := g.resolver.ResolveOwner(c.Context(), state, access)
	if err != nil {
		return Resolution{}, err
	}

	g.ApplyCookie(c, res.Cookie)
	c.Locals(ResolutionLocalsKey, res)

	return res, nil
}

// OwnerMiddleware resolves the request owner before the handler runs
func (g *GuestGate) OwnerMiddleware(access Access) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if _, err := g.ResolveRequestOwner(c, access); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ApplyCookie writes a cookie directive to the response
func (g *GuestGate) ApplyCookie(c CookieJar, directive *CookieDirective) {
	if directive == nil {
		return
	}

	if directive.Clear {
		g.ClearBearerCookie(c)
		return
	}

	if directive.Set != "" {
		maxAge := directive.MaxAge
		if maxAge <= 0 {
			maxAge = g.cookie.MaxAge
		}
		g.SetBearerCookie(c, directive.Set, maxAge)
	}
}

func (g *GuestGate) SetBearerCookie(c CookieJar, token string, maxAge time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     g.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HTTPOnly: true,
		Secure:   g.cookie.Secure,
		SameSite: "Lax",
	})
}

func (g *GuestGate) ClearBearerCookie(c CookieJar) {
	c.Cookie(&router.Cookie{
		Name:     g.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   g.cookie.Secure,
		SameSite: "Lax",
	})
}

// MergePolicy selects what happens to guest data on sign-in
type MergePolicy string

const (
	// MergePolicyAuto merges inline during sign-in
	MergePolicyAuto MergePolicy = "auto"
	// MergePolicyConfirm sends the user to the confirmation page
	MergePolicyConfirm MergePolicy = "confirm"
)

// SignInMerger reacts to sign-in events. It never fails the sign-in: merge
// errors are logged and leave the bearer cookie in place for a retry.
type SignInMerger struct {
	gate         *GuestGate
	engine       *MergeEngine
	confirmation *MergeConfirmation
	policy       MergePolicy
	confirmPath  string
	logger       Logger
}

// SignInMergerOption configures a SignInMerger
type SignInMergerOption func(*SignInMerger)

func WithMergePolicy(policy MergePolicy) SignInMergerOption {
	return func(s *SignInMerger) {
		if policy == MergePolicyAuto || policy == MergePolicyConfirm {
			s.policy = policy
		}
	}
}

// WithConfirmPath sets the page users are sent to under MergePolicyConfirm
func WithConfirmPath(path string) SignInMergerOption {
	return func(s *SignInMerger) {
		if path != "" {
			s.confirmPath = path
		}
	}
}

func WithSignInMergerLogger(logger Logger) SignInMergerOption {
	return func(s *SignInMerger) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSignInMerger(gate *GuestGate, engine *MergeEngine, confirmation *MergeConfirmation, opts ...SignInMergerOption) *SignInMerger {
	s := &SignInMerger{
		gate:         gate,
		engine:       engine,
		confirmation: confirmation,
		policy:       MergePolicyAuto,
		confirmPath:  "/account/merge",
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OnSignIn runs once per successful sign-in. It returns a path the caller
// should redirect to, or an empty string to keep the default destination.
func (s *SignInMerger) OnSignIn(c RequestContext, session AuthSession) string {
	token := s.gate.BearerToken(c)
	if HashToken(token) == "" {
		return ""
	}

	if s.policy == MergePolicyConfirm && s.confirmation != nil {
		preview, err := s.confirmation.Preview(c.Context(), session, token)
		if err != nil {
			s.logger.Warn("guest preview failed on sign-in", "error", err)
			return ""
		}
		if preview.Pending {
			return s.confirmPath
		}
		return ""
	}

	result, err := s.engine.Merge(c.Context(), session, token)
	if err != nil {
		s.logger.Error("guest merge failed on sign-in, keeping bearer cookie", "error", err)
		return ""
	}

	if result.Merged() {
		s.gate.ClearBearerCookie(c)
	}

	return ""
}
