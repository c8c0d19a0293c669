package zento

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Categories stores user defined transaction categories
type Categories interface {
	Create(ctx context.Context, record *Category) (*Category, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Category) (*Category, error)
	FindFor(ctx context.Context, ownerID, id uuid.UUID) (*Category, error)
	ListFor(ctx context.Context, ownerID uuid.UUID) ([]*Category, error)
	ListForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) ([]*Category, error)
	CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error)
	MoveTx(ctx context.Context, tx bun.IDB, id, ownerID uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// Transactions stores money movements
type Transactions interface {
	Create(ctx context.Context, record *Transaction) (*Transaction, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Transaction) (*Transaction, error)
	ListFor(ctx context.Context, ownerID uuid.UUID, categoryID *uuid.UUID) ([]*Transaction, error)
	ListForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID, categoryID *uuid.UUID) ([]*Transaction, error)
	CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error)
	RepointCategoryTx(ctx context.Context, tx bun.IDB, from, to uuid.UUID) (int, error)
	SweepOwnerTx(ctx context.Context, tx bun.IDB, from, to uuid.UUID) (int, error)
}

// PaymentSources stores cards, accounts and wallets
type PaymentSources interface {
	Create(ctx context.Context, record *PaymentSource) (*PaymentSource, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PaymentSource) (*PaymentSource, error)
	FindFor(ctx context.Context, ownerID, id uuid.UUID) (*PaymentSource, error)
	ListFor(ctx context.Context, ownerID uuid.UUID) ([]*PaymentSource, error)
	CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error)
}

type categories struct {
	db  *bun.DB
	now clock
}

var _ Categories = (*categories)(nil)

func NewCategoriesRepository(db *bun.DB) Categories {
	return &categories{db: db}
}

func (r *categories) Create(ctx context.Context, record *Category) (*Category, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *categories) CreateTx(ctx context.Context, tx bun.IDB, record *Category) (*Category, error) {
	now := r.now.now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Name = strings.TrimSpace(record.Name)
	if record.Kind == "" {
		record.Kind = CategoryExpense
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *categories) FindFor(ctx context.Context, ownerID, id uuid.UUID) (*Category, error) {
	record := &Category{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("category", id.String())
		}
		return nil, err
	}
	return record, nil
}

func (r *categories) ListFor(ctx context.Context, ownerID uuid.UUID) ([]*Category, error) {
	return r.ListForTx(ctx, r.db, ownerID)
}

// ListForTx returns the owner's categories oldest first
func (r *categories) ListForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) ([]*Category, error) {
	records := []*Category{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *categories) CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*Category)(nil)).
		Where("owner_id = ?", ownerID).
		Count(ctx)
}

// MoveTx changes the owner of a category in place
func (r *categories) MoveTx(ctx context.Context, tx bun.IDB, id, ownerID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*Category)(nil)).
		Set("owner_id = ?", ownerID).
		Set("updated_at = ?", r.now.now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *categories) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Category)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

type transactions struct {
	db  *bun.DB
	now clock
}

var _ Transactions = (*transactions)(nil)

func NewTransactionsRepository(db *bun.DB) Transactions {
	return &transactions{db: db}
}

func (r *transactions) Create(ctx context.Context, record *Transaction) (*Transaction, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *transactions) CreateTx(ctx context.Context, tx bun.IDB, record *Transaction) (*Transaction, error) {
	now := r.now.now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Currency == "" {
		record.Currency = "USD"
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = now
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *transactions) ListFor(ctx context.Context, ownerID uuid.UUID, categoryID *uuid.UUID) ([]*Transaction, error) {
	return r.ListForTx(ctx, r.db, ownerID, categoryID)
}

// ListForTx returns the owner's transactions newest first, optionally
// filtered by category.
func (r *transactions) ListForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID, categoryID *uuid.UUID) ([]*Transaction, error) {
	records := []*Transaction{}
	q := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID)

	if categoryID != nil {
		q = q.Where("?TableAlias.category_id = ?", *categoryID)
	}

	if err := q.Order("occurred_at DESC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *transactions) CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*Transaction)(nil)).
		Where("owner_id = ?", ownerID).
		Count(ctx)
}

// RepointCategoryTx moves every transaction referencing one category to
// another. Ownership is left untouched.
func (r *transactions) RepointCategoryTx(ctx context.Context, tx bun.IDB, from, to uuid.UUID) (int, error) {
	res, err := tx.NewUpdate().
		Model((*Transaction)(nil)).
		Set("category_id = ?", to).
		Set("updated_at = ?", r.now.now()).
		Where("category_id = ?", from).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

// SweepOwnerTx reassigns every transaction owned by from to to
func (r *transactions) SweepOwnerTx(ctx context.Context, tx bun.IDB, from, to uuid.UUID) (int, error) {
	res, err := tx.NewUpdate().
		Model((*Transaction)(nil)).
		Set("owner_id = ?", to).
		Set("updated_at = ?", r.now.now()).
		Where("owner_id = ?", from).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

type paymentSources struct {
	db  *bun.DB
	now clock
}

var _ PaymentSources = (*paymentSources)(nil)

func NewPaymentSourcesRepository(db *bun.DB) PaymentSources {
	return &paymentSources{db: db}
}

func (r *paymentSources) Create(ctx context.Context, record *PaymentSource) (*PaymentSource, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *paymentSources) CreateTx(ctx context.Context, tx bun.IDB, record *PaymentSource) (*PaymentSource, error) {
	now := r.now.now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Name = strings.TrimSpace(record.Name)
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *paymentSources) FindFor(ctx context.Context, ownerID, id uuid.UUID) (*PaymentSource, error) {
	record := &PaymentSource{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("payment_source", id.String())
		}
		return nil, err
	}
	return record, nil
}

func (r *paymentSources) ListFor(ctx context.Context, ownerID uuid.UUID) ([]*PaymentSource, error) {
	records := []*PaymentSource{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *paymentSources) CountForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*PaymentSource)(nil)).
		Where("owner_id = ?", ownerID).
		Count(ctx)
}

func affected(res interface{ RowsAffected() (int64, error) }) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
