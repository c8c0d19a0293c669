package ledger

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/zento"
	"github.com/google/uuid"
)

// RequestContext is the subset of router.Context used by the controller
type RequestContext interface {
	zento.ResponseContext
	Bind(i any) error
	Query(key string, defaultValue string) string
}

var _ RequestContext = (router.Context)(nil)

func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	app.Get(controller.Routes.Categories, controller.ListCategories).
		SetName("ledger-categories.get")
	app.Post(controller.Routes.Categories, controller.CreateCategory).
		SetName("ledger-categories.post")
	app.Get(controller.Routes.Transactions, controller.ListTransactions).
		SetName("ledger-transactions.get")
	app.Post(controller.Routes.Transactions, controller.CreateTransaction).
		SetName("ledger-transactions.post")
	app.Get(controller.Routes.PaymentSources, controller.ListPaymentSources).
		SetName("ledger-payment-sources.get")
	app.Post(controller.Routes.PaymentSources, controller.CreatePaymentSource).
		SetName("ledger-payment-sources.post")
	app.Post(controller.Routes.DefaultSource, controller.SetDefaultPaymentSource).
		SetName("ledger-payment-sources-default.post")

	return controller
}

type ControllerRoutes struct {
	Categories     string
	Transactions   string
	PaymentSources string
	DefaultSource  string
}

type Controller struct {
	Logger  zento.Logger
	Gate    *zento.GuestGate
	Service *Service
	Routes  *ControllerRoutes
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: zento.DefaultLogger(),
		Routes: &ControllerRoutes{
			Categories:     "/api/categories",
			Transactions:   "/api/transactions",
			PaymentSources: "/api/payment-sources",
			DefaultSource:  "/api/payment-sources/default",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Gate == nil {
		panic("Missing GuestGate in ledger controller...")
	}

	if c.Service == nil {
		panic("Missing Service in ledger controller...")
	}

	return c
}

func WithGate(gate *zento.GuestGate) ControllerOption {
	return func(c *Controller) *Controller {
		c.Gate = gate
		return c
	}
}

func WithService(service *Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = service
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

func (a *Controller) ListCategories(ctx router.Context) error {
	return a.listCategories(ctx)
}

func (a *Controller) CreateCategory(ctx router.Context) error {
	return a.createCategory(ctx)
}

func (a *Controller) ListTransactions(ctx router.Context) error {
	return a.listTransactions(ctx)
}

func (a *Controller) CreateTransaction(ctx router.Context) error {
	return a.createTransaction(ctx)
}

func (a *Controller) ListPaymentSources(ctx router.Context) error {
	return a.listPaymentSources(ctx)
}

func (a *Controller) CreatePaymentSource(ctx router.Context) error {
	return a.createPaymentSource(ctx)
}

func (a *Controller) SetDefaultPaymentSource(ctx router.Context) error {
	return a.setDefaultPaymentSource(ctx)
}

func (a *Controller) listCategories(ctx RequestContext) error {
	res, err := a.Gate.ResolveRequestOwner(ctx, zento.ReadAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	if !res.HasOwner() {
		return ctx.JSON(fiber.StatusOK, []*zento.Category{})
	}

	records, err := a.Service.Categories(ctx.Context(), res.OwnerID)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, records)
}

func (a *Controller) createCategory(ctx RequestContext) error {
	payload := new(CategoryInput)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.errorResponse(ctx, invalid(err))
	}

	res, err := a.Gate.ResolveRequestOwner(ctx, zento.WriteAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	record, err := a.Service.CreateCategory(ctx.Context(), res.OwnerID, *payload)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusCreated, record)
}

func (a *Controller) listTransactions(ctx RequestContext) error {
	var categoryID *uuid.UUID
	if raw := ctx.Query("category_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return a.errorResponse(ctx, badPayload(err))
		}
		categoryID = &id
	}

	res, err := a.Gate.ResolveRequestOwner(ctx, zento.ReadAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	if !res.HasOwner() {
		return ctx.JSON(fiber.StatusOK, []*zento.Transaction{})
	}

	records, err := a.Service.Transactions(ctx.Context(), res.OwnerID, categoryID)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, records)
}

func (a *Controller) createTransaction(ctx RequestContext) error {
	payload := new(TransactionInput)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.errorResponse(ctx, invalid(err))
	}

	res, err := a.Gate.ResolveRequestOwner(ctx, zento.WriteAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	record, err := a.Service.CreateTransaction(ctx.Context(), res.OwnerID, *payload)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusCreated, record)
}

func (a *Controller) listPaymentSources(ctx RequestContext) error {
	res, err := a.Gate.ResolveRequestOwner(ctx, zento.ReadAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	if !res.HasOwner() {
		return ctx.JSON(fiber.StatusOK, []*zento.PaymentSource{})
	}

	records, err := a.Service.PaymentSources(ctx.Context(), res.OwnerID)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, records)
}

func (a *Controller) createPaymentSource(ctx RequestContext) error {
	payload := new(PaymentSourceInput)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.errorResponse(ctx, invalid(err))
	}

	res, err := a.Gate.ResolveRequestOwner(ctx, zento.WriteAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	record, err := a.Service.CreatePaymentSource(ctx.Context(), res.OwnerID, *payload)
	if err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusCreated, record)
}

func (a *Controller) setDefaultPaymentSource(ctx RequestContext) error {
	payload := new(DefaultSourceInput)
	if err := ctx.Bind(payload); err != nil {
		return a.errorResponse(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.errorResponse(ctx, invalid(err))
	}

	res, err := a.Gate.ResolveRequestOwner(ctx, zento.WriteAccess)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	if err := a.Service.SetDefaultPaymentSource(ctx.Context(), res.OwnerID, *payload); err != nil {
		return a.errorResponse(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"payment_source_id": payload.PaymentSourceID,
	})
}

func badPayload(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse payload").
		WithCode(goerrors.CodeBadRequest)
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

	if code >= fiber.StatusInternalServerError {
		a.Logger.Error("ledger request failed", "error", err)
	}

	body := map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	}
	if v, ok := richErr.Metadata["validation"]; ok {
		body["validation"] = v
	}

	return ctx.JSON(code, body)
}
