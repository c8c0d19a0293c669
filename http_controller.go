package zento

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ResponseContext is the part of router.Context used by MergeController
type ResponseContext interface {
	RequestContext
	JSON(code int, val any) error
	Redirect(path string, status ...int) error
}

var _ ResponseContext = (router.Context)(nil)

func RegisterMergeRoutes[T any](app router.Router[T], opts ...MergeControllerOption) *MergeController {
	controller := NewMergeController(opts...)

	app.Get(controller.Routes.Preview, controller.Preview).
		SetName("guest-merge.get")
	app.Post(controller.Routes.Import, controller.Import).
		SetName("guest-merge-import.post")
	app.Post(controller.Routes.Discard, controller.Discard).
		SetName("guest-merge-discard.post")

	return controller
}

type MergeControllerRoutes struct {
	Preview string
	Import  string
	Discard string
	Done    string
}

type MergeController struct {
	Logger       Logger
	Gate         *GuestGate
	Flow         *MergeConfirmation
	Routes       *MergeControllerRoutes
	ErrorHandler func(c ResponseContext, err error) error
}

type MergeControllerOption func(*MergeController) *MergeController

func NewMergeController(opts ...MergeControllerOption) *MergeController {
	c := &MergeController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &MergeControllerRoutes{
			Preview: "/account/merge",
			Import:  "/account/merge/import",
			Discard: "/account/merge/discard",
			Done:    "/",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Gate == nil {
		panic("Missing GuestGate in merge controller...")
	}

	if c.Flow == nil {
		panic("Missing MergeConfirmation in merge controller...")
	}

	return c
}

func WithMergeControllerGate(gate *GuestGate) MergeControllerOption {
	return func(c *MergeController) *MergeController {
		c.Gate = gate
		return c
	}
}

func WithMergeControllerFlow(flow *MergeConfirmation) MergeControllerOption {
	return func(c *MergeController) *MergeController {
		c.Flow = flow
		return c
	}
}

func WithMergeControllerLogger(logger Logger) MergeControllerOption {
	return func(c *MergeController) *MergeController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func (m *MergeController) Preview(ctx router.Context) error {
	return m.preview(ctx)
}

func (m *MergeController) Import(ctx router.Context) error {
	return m.importGuest(ctx)
}

func (m *MergeController) Discard(ctx router.Context) error {
	return m.discardGuest(ctx)
}

func (m *MergeController) preview(ctx ResponseContext) error {
	session, _ := GetRouterSession(ctx)

	preview, err := m.Flow.Preview(ctx.Context(), session, m.Gate.BearerToken(ctx))
	if err != nil {
		return m.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, preview)
}

func (m *MergeController) importGuest(ctx ResponseContext) error {
	session, _ := GetRouterSession(ctx)

	var result *MergeResult
	cmd := NewImportGuestHandler(m.Flow)
	err := cmd.Execute(ctx.Context(), ImportGuestMessage{
		Session: session,
		Token:   m.Gate.BearerToken(ctx),
		OnResponse: func(r *MergeResult) {
			result = r
		},
	})
	if err != nil {
		return m.ErrorHandler(ctx, err)
	}

	// account_not_found keeps the cookie so the import can be retried
	if result != nil && result.Reason != SkipAccountNotFound {
		m.Gate.ClearBearerCookie(ctx)
	}

	m.Logger.Debug("guest import", "result", print.MaybePrettyJSON(result))

	return ctx.Redirect(m.Routes.Done, fiber.StatusSeeOther)
}

func (m *MergeController) discardGuest(ctx ResponseContext) error {
	session, _ := GetRouterSession(ctx)

	cmd := NewDiscardGuestHandler(m.Flow)
	err := cmd.Execute(ctx.Context(), DiscardGuestMessage{
		Session: session,
		Token:   m.Gate.BearerToken(ctx),
	})
	if err != nil {
		return m.ErrorHandler(ctx, err)
	}

	m.Gate.ClearBearerCookie(ctx)

	return ctx.Redirect(m.Routes.Done, fiber.StatusSeeOther)
}

func defaultErrHandler(c ResponseContext, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	return c.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
