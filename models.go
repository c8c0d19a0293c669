package zento

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Models lists every table model, in dependency order
func Models() []any {
	return []any{
		(*Identity)(nil),
		(*AnonymousSession)(nil),
		(*Category)(nil),
		(*PaymentSource)(nil),
		(*Transaction)(nil),
	}
}

// Identity is the owner of financial data. Guest identities are created by
// the Resolver on the first unauthenticated write, accounts are created by
// the sign-in collaborator.
type Identity struct {
	bun.BaseModel          `bun:"table:identities,alias:idt"`
	ID                     uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	IsGuest                bool       `bun:"is_guest,notnull" json:"is_guest"`
	Email                  *string    `bun:"email,unique" json:"email,omitempty"`
	PasswordHash           string     `bun:"password_hash,nullzero" json:"-"`
	DefaultPaymentSourceID *uuid.UUID `bun:"default_payment_source_id,type:uuid" json:"default_payment_source_id,omitempty"`
	CreatedAt              time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// GetEmail returns the email or an empty string for guests
func (i *Identity) GetEmail() string {
	if i == nil || i.Email == nil {
		return ""
	}
	return *i.Email
}

// AnonymousSession binds a device bearer token to an identity. Only the
// token hash is stored.
type AnonymousSession struct {
	bun.BaseModel `bun:"table:anonymous_sessions,alias:ases"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	LastSeenAt    time.Time  `bun:"last_seen_at,notnull" json:"last_seen_at"`
	ExpiresAt     *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
}

// Expired reports whether the session has a set expiry before now
func (s *AnonymousSession) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return s.ExpiresAt.Before(now)
}

// CategoryKind tells expense categories from income ones
type CategoryKind = string

const (
	CategoryExpense CategoryKind = "expense"
	CategoryIncome  CategoryKind = "income"
)

// Category is a user defined grouping for transactions. Names are unique
// per owner.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	OwnerID       uuid.UUID    `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Name          string       `bun:"name,notnull" json:"name"`
	Kind          CategoryKind `bun:"kind,notnull" json:"kind"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

// PaymentSource is a card, account or wallet a transaction was paid with
type PaymentSource struct {
	bun.BaseModel `bun:"table:payment_sources,alias:pms"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Kind          string    `bun:"kind,notnull" json:"kind"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Transaction is a single money movement
type Transaction struct {
	bun.BaseModel   `bun:"table:transactions,alias:trx"`
	ID              uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	OwnerID         uuid.UUID       `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	CategoryID      *uuid.UUID      `bun:"category_id,type:uuid" json:"category_id,omitempty"`
	PaymentSourceID *uuid.UUID      `bun:"payment_source_id,type:uuid" json:"payment_source_id,omitempty"`
	Amount          decimal.Decimal `bun:"amount,notnull,type:numeric" json:"amount"`
	Currency        string          `bun:"currency,notnull" json:"currency"`
	Description     string          `bun:"description" json:"description,omitempty"`
	OccurredAt      time.Time       `bun:"occurred_at,notnull" json:"occurred_at"`
	CreatedAt       time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}
