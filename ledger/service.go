package ledger

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/zento"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service reads and writes ledger records on behalf of a resolved owner
type Service struct {
	repos  zento.RepositoryManager
	logger zento.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

func WithServiceLogger(logger zento.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repos zento.RepositoryManager, opts ...ServiceOption) *Service {
	s := &Service{
		repos:  repos,
		logger: zento.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Categories(ctx context.Context, owner uuid.UUID) ([]*zento.Category, error) {
	return s.repos.Categories().ListFor(ctx, owner)
}

// CreateCategory adds a category unless the owner already has one whose
// name folds to the same key
func (s *Service) CreateCategory(ctx context.Context, owner uuid.UUID, in CategoryInput) (*zento.Category, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	record := &zento.Category{
		OwnerID: owner,
		Name:    strings.TrimSpace(in.Name),
		Kind:    in.Kind,
	}

	key := zento.FoldCategoryName(record.Name)
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.repos.Categories().ListForTx(ctx, tx, owner)
		if err != nil {
			return err
		}
		for _, category := range existing {
			if zento.FoldCategoryName(category.Name) == key {
				return ErrCategoryExists
			}
		}
		record, err = s.repos.Categories().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, wrap(err, "failed to create category")
	}

	s.logger.Debug("category created", "owner", owner, "category", record.ID)
	return record, nil
}

func (s *Service) Transactions(ctx context.Context, owner uuid.UUID, categoryID *uuid.UUID) ([]*zento.Transaction, error) {
	return s.repos.Transactions().ListFor(ctx, owner, categoryID)
}

// CreateTransaction records a transaction. Category and payment source are
// both optional, but when given they must belong to the owner.
func (s *Service) CreateTransaction(ctx context.Context, owner uuid.UUID, in TransactionInput) (*zento.Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	categoryID := optionalID(in.CategoryID)
	if categoryID != nil {
		if _, err := s.repos.Categories().FindFor(ctx, owner, *categoryID); err != nil {
			if zento.IsNotFound(err) {
				return nil, ErrCategoryNotFound
			}
			return nil, wrap(err, "failed to load category")
		}
	}

	sourceID := optionalID(in.PaymentSourceID)
	if sourceID != nil {
		if _, err := s.repos.PaymentSources().FindFor(ctx, owner, *sourceID); err != nil {
			if zento.IsNotFound(err) {
				return nil, ErrPaymentSourceNotFound
			}
			return nil, wrap(err, "failed to load payment source")
		}
	}

	record := &zento.Transaction{
		OwnerID:         owner,
		CategoryID:      categoryID,
		PaymentSourceID: sourceID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Description:     strings.TrimSpace(in.Description),
	}
	if in.OccurredAt != nil {
		record.OccurredAt = in.OccurredAt.UTC()
	}

	record, err := s.repos.Transactions().Create(ctx, record)
	if err != nil {
		return nil, wrap(err, "failed to create transaction")
	}
	return record, nil
}

func (s *Service) PaymentSources(ctx context.Context, owner uuid.UUID) ([]*zento.PaymentSource, error) {
	return s.repos.PaymentSources().ListFor(ctx, owner)
}

func (s *Service) CreatePaymentSource(ctx context.Context, owner uuid.UUID, in PaymentSourceInput) (*zento.PaymentSource, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	kind := in.Kind
	if kind == "" {
		kind = "card"
	}

	record, err := s.repos.PaymentSources().Create(ctx, &zento.PaymentSource{
		OwnerID: owner,
		Name:    in.Name,
		Kind:    kind,
	})
	if err != nil {
		return nil, wrap(err, "failed to create payment source")
	}
	return record, nil
}

// SetDefaultPaymentSource points the owner at one of their payment sources,
// or clears the default when the id is empty
func (s *Service) SetDefaultPaymentSource(ctx context.Context, owner uuid.UUID, in DefaultSourceInput) error {
	if err := in.Validate(); err != nil {
		return invalid(err)
	}

	sourceID := optionalID(in.PaymentSourceID)
	if sourceID != nil {
		if _, err := s.repos.PaymentSources().FindFor(ctx, owner, *sourceID); err != nil {
			if zento.IsNotFound(err) {
				return ErrPaymentSourceNotFound
			}
			return wrap(err, "failed to load payment source")
		}
	}

	if err := s.repos.Identities().SetDefaultPaymentSource(ctx, owner, sourceID); err != nil {
		return wrap(err, "failed to set default payment source")
	}
	return nil
}

func wrap(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
