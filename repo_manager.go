package zento

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DB() *bun.DB
	Identities() Identities
	Sessions() AnonymousSessions
	Categories() Categories
	Transactions() Transactions
	PaymentSources() PaymentSources
}

type mngr struct {
	db             *bun.DB
	identities     Identities
	sessions       AnonymousSessions
	categories     Categories
	transactions   Transactions
	paymentSources PaymentSources
}

// NewRepositoryManager wires every repository to the same connection pool
func NewRepositoryManager(db *bun.DB, opts ...SessionOption) RepositoryManager {
	return &mngr{
		db:             db,
		identities:     NewIdentitiesRepository(db),
		sessions:       NewAnonymousSessions(db, opts...),
		categories:     NewCategoriesRepository(db),
		transactions:   NewTransactionsRepository(db),
		paymentSources: NewPaymentSourcesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.identities == nil {
		return errors.New("repository identities should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.categories == nil || m.transactions == nil || m.paymentSources == nil {
		return errors.New("ledger repositories should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Identities() Identities {
	return m.identities
}

func (m mngr) Sessions() AnonymousSessions {
	return m.sessions
}

func (m mngr) Categories() Categories {
	return m.categories
}

func (m mngr) Transactions() Transactions {
	return m.transactions
}

func (m mngr) PaymentSources() PaymentSources {
	return m.paymentSources
}
