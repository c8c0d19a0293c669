package signin

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/zento"
)

// DefaultCookieName is the cookie holding the signed session token
const DefaultCookieName = "zento_session"

// Listener is notified once per successful registration or login, after the
// session cookie has been written. A non empty return value replaces the
// redirect sent back to the client.
type Listener interface {
	OnSignIn(c zento.RequestContext, session zento.AuthSession) string
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(c zento.RequestContext, session zento.AuthSession) string

func (f ListenerFunc) OnSignIn(c zento.RequestContext, session zento.AuthSession) string {
	return f(c, session)
}

// RequestContext is the subset of router.Context used by the controller
type RequestContext interface {
	zento.ResponseContext
	Bind(i any) error
}

var _ RequestContext = (router.Context)(nil)

func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)
	MountRoutes(app, controller)
	return controller
}

// MountRoutes registers the routes of an existing controller, so its
// Middleware can be installed before the routes are added
func MountRoutes[T any](app router.Router[T], controller *Controller) {
	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("signin-register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("signin-login.post")
	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("signin-logout.get")
	app.Get(controller.Routes.Me, controller.Me).
		SetName("signin-me.get")
}

type ControllerRoutes struct {
	Register string
	Login    string
	Logout   string
	Me       string
	Home     string
}

type Controller struct {
	Logger     zento.Logger
	Service    *Service
	Tokens     TokenService
	Repo       zento.RepositoryManager
	Routes     *ControllerRoutes
	CookieName string
	Secure     bool
	Listeners  []Listener
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     zento.DefaultLogger(),
		CookieName: DefaultCookieName,
		Secure:     true,
		Routes: &ControllerRoutes{
			Register: "/signin/register",
			Login:    "/signin/login",
			Logout:   "/signin/logout",
			Me:       "/signin/me",
			Home:     "/",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in signin controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in signin controller...")
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in signin controller...")
	}

	return c
}

func WithService(service *Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = service
		return c
	}
}

func WithTokens(tokens TokenService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = tokens
		return c
	}
}

func WithRepo(repo zento.RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithLogger(logger zento.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithCookie sets the session cookie name and Secure flag
func WithCookie(name string, secure bool) ControllerOption {
	return func(c *Controller) *Controller {
		if name != "" {
			c.CookieName = name
		}
		c.Secure = secure
		return c
	}
}

// WithListener adds a sign-in listener
func WithListener(l Listener) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Listeners = append(c.Listeners, l)
		}
		return c
	}
}

// Middleware decodes the session cookie into request locals. Missing or
// invalid tokens leave the request unauthenticated.
func (a *Controller) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			a.authenticate(ctx)
			return next(ctx)
		}
	}
}

func (a *Controller) authenticate(ctx zento.RequestContext) {
	raw := ctx.Cookies(a.CookieName)
	if raw == "" {
		return
	}

	session, err := a.Tokens.Validate(raw)
	if err != nil {
		a.Logger.Debug("ignoring invalid session cookie", "error", err)
		return
	}

	zento.SetRouterSession(ctx, session)
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) RegisterPost(ctx router.Context) error {
	return a.register(ctx)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	return a.login(ctx)
}

func (a *Controller) LogOut(ctx router.Context) error {
	a.cookieDel(ctx)
	return ctx.Redirect(a.Routes.Home, router.StatusTemporaryRedirect)
}

func (a *Controller) Me(ctx router.Context) error {
	return a.me(ctx)
}

func (a *Controller) register(ctx RequestContext) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": err,
		})
	}

	result, err := a.Service.Register(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	return a.signIn(ctx, result, fiber.StatusCreated)
}

func (a *Controller) login(ctx RequestContext) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": err,
		})
	}

	result, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	return a.signIn(ctx, result, fiber.StatusOK)
}

// signIn writes the session cookie and notifies listeners exactly once
func (a *Controller) signIn(ctx RequestContext, result *Result, status int) error {
	ctx.Cookie(&router.Cookie{
		Name:     a.CookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  time.Now().Add(a.Tokens.Expiration()),
		HTTPOnly: true,
		Secure:   a.Secure,
		SameSite: "Lax",
	})
	zento.SetRouterSession(ctx, result.Session)

	redirect := a.Routes.Home
	for _, l := range a.Listeners {
		if r := a.notify(ctx, l, result.Session); r != "" {
			redirect = r
		}
	}

	return ctx.JSON(status, map[string]any{
		"id":       result.Identity.ID,
		"email":    result.Identity.GetEmail(),
		"redirect": redirect,
	})
}

func (a *Controller) notify(ctx RequestContext, l Listener, session *Session) (redirect string) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("sign-in listener panicked", "panic", r)
			redirect = ""
		}
	}()
	return l.OnSignIn(ctx, session)
}

func (a *Controller) me(ctx RequestContext) error {
	session, ok := zento.GetRouterSession(ctx)
	if !ok {
		return a.errorResponse(ctx, zento.ErrUnauthenticated)
	}

	identity, err := a.Repo.Identities().GetByID(ctx.Context(), session.IdentityID())
	if err != nil {
		if zento.IsNotFound(err) {
			return a.errorResponse(ctx, zento.ErrUnauthenticated)
		}
		return a.errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, identity)
}

func (a *Controller) cookieDel(c zento.CookieJar) {
	c.Cookie(&router.Cookie{
		Name:     a.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.Secure,
		SameSite: "Lax",
	})
}

func (a *Controller) errorResponse(ctx zento.ResponseContext, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	a.Logger.Info("signin error", "error", richErr.Message, "text_code", richErr.TextCode)

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
