package ledger

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/zento"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNameLength caps category and payment source names
const MaxNameLength = 64

var errZeroAmount = errors.New("must not be zero")

// CategoryInput is the payload to create a category
type CategoryInput struct {
	Name string `form:"name" json:"name"`
	Kind string `form:"kind" json:"kind"`
}

// Validate will run validation rules
func (in CategoryInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&in.Kind, validation.In(zento.CategoryExpense, zento.CategoryIncome)),
	)
}

// TransactionInput is the payload to record a transaction
type TransactionInput struct {
	CategoryID      string          `form:"category_id" json:"category_id"`
	PaymentSourceID string          `form:"payment_source_id" json:"payment_source_id"`
	Amount          decimal.Decimal `form:"amount" json:"amount"`
	Currency        string          `form:"currency" json:"currency"`
	Description     string          `form:"description" json:"description"`
	OccurredAt      *time.Time      `form:"occurred_at" json:"occurred_at"`
}

// Validate will run validation rules
func (in TransactionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CategoryID, is.UUID),
		validation.Field(&in.PaymentSourceID, is.UUID),
		validation.Field(&in.Amount, validation.By(nonZero)),
		validation.Field(&in.Currency, validation.Length(3, 3), is.UpperCase),
		validation.Field(&in.Description, validation.Length(0, 255)),
	)
}

func nonZero(value any) error {
	amount, ok := value.(decimal.Decimal)
	if !ok || amount.IsZero() {
		return errZeroAmount
	}
	return nil
}

// PaymentSourceInput is the payload to create a payment source
type PaymentSourceInput struct {
	Name string `form:"name" json:"name"`
	Kind string `form:"kind" json:"kind"`
}

// Validate will run validation rules
func (in PaymentSourceInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&in.Kind, validation.In("card", "account", "wallet", "cash")),
	)
}

// DefaultSourceInput selects the default payment source. An empty id clears
// it.
type DefaultSourceInput struct {
	PaymentSourceID string `form:"payment_source_id" json:"payment_source_id"`
}

// Validate will run validation rules
func (in DefaultSourceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PaymentSourceID, is.UUID),
	)
}

func optionalID(raw string) *uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
