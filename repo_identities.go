package zento

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Identities stores owners of financial data, guests and accounts alike
type Identities interface {
	repository.Repository[*Identity]

	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Identity, error)

	ProvisionGuestTx(ctx context.Context, tx bun.IDB) (*Identity, error)
	RegisterAccount(ctx context.Context, record *Identity) (*Identity, error)
	RegisterAccountTx(ctx context.Context, tx bun.IDB, record *Identity) (*Identity, error)
	RetireGuestTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)

	SetDefaultPaymentSource(ctx context.Context, id uuid.UUID, sourceID *uuid.UUID) error
	SetDefaultPaymentSourceTx(ctx context.Context, tx bun.IDB, id uuid.UUID, sourceID *uuid.UUID) error
}

type identities struct {
	repository.Repository[*Identity]
	db  *bun.DB
	now clock
}

var (
	_ Identities                       = (*identities)(nil)
	_ repository.Repository[*Identity] = (*identities)(nil)
)

// NewIdentitiesRepository returns the bun backed Identities repository
func NewIdentitiesRepository(db *bun.DB) Identities {
	repo := repository.NewRepository[*Identity](db, repository.ModelHandlers[*Identity]{
		NewRecord: func() *Identity { return &Identity{} },
		GetID: func(record *Identity) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Identity, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &identities{
		Repository: repo,
		db:         db,
	}
}

func (r *identities) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *identities) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Identity, error) {
	if id == uuid.Nil {
		return nil, notFound("id", id.String())
	}

	record := &Identity{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("id", id.String())
		}
		return nil, err
	}

	return record, nil
}

func (r *identities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.FindByEmailTx(ctx, r.db, email)
}

func (r *identities) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, notFound("email", email)
	}

	record := &Identity{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("email", email)
		}
		return nil, err
	}

	return record, nil
}

// ProvisionGuestTx inserts a fresh guest identity
func (r *identities) ProvisionGuestTx(ctx context.Context, tx bun.IDB) (*Identity, error) {
	now := r.now.now()
	record := &Identity{
		ID:        uuid.New(),
		IsGuest:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *identities) RegisterAccount(ctx context.Context, record *Identity) (*Identity, error) {
	return r.RegisterAccountTx(ctx, r.db, record)
}

// RegisterAccountTx inserts a non guest identity. The email is normalized
// before storage.
func (r *identities) RegisterAccountTx(ctx context.Context, tx bun.IDB, record *Identity) (*Identity, error) {
	now := r.now.now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Email != nil {
		email := NormalizeEmail(*record.Email)
		record.Email = &email
	}
	record.IsGuest = false
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

// RetireGuestTx deletes the identity only while it is still flagged as a
// guest. It reports whether a row was removed.
func (r *identities) RetireGuestTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Identity)(nil)).
		Where("id = ?", id).
		Where("is_guest = ?", true).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *identities) SetDefaultPaymentSource(ctx context.Context, id uuid.UUID, sourceID *uuid.UUID) error {
	return r.SetDefaultPaymentSourceTx(ctx, r.db, id, sourceID)
}

func (r *identities) SetDefaultPaymentSourceTx(ctx context.Context, tx bun.IDB, id uuid.UUID, sourceID *uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Identity)(nil)).
		Set("default_payment_source_id = ?", sourceID).
		Set("updated_at = ?", r.now.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("id", id.String())
	}

	return nil
}

// NormalizeEmail trims and lower cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notFound(key, value string) error {
	return repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			key: value,
		})
}
