package zento

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, Migrate(context.Background(), db, DialectSQLite))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

func inlineRunner(f func()) { f() }

func setupRepos(t *testing.T, opts ...SessionOption) RepositoryManager {
	t.Helper()
	opts = append([]SessionOption{WithTouchRunner(inlineRunner)}, opts...)
	repos := NewRepositoryManager(setupTestDB(t), opts...)
	repos.MustValidate()
	return repos
}

func seedAccount(t *testing.T, repos RepositoryManager, email string) *Identity {
	t.Helper()
	record, err := repos.Identities().RegisterAccount(context.Background(), &Identity{Email: &email})
	require.NoError(t, err)
	return record
}

func seedGuest(t *testing.T, repos RepositoryManager) (*Identity, string) {
	t.Helper()
	ctx := context.Background()

	guest, err := repos.Identities().ProvisionGuestTx(ctx, repos.DB())
	require.NoError(t, err)

	issued, err := repos.Sessions().Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	return guest, issued.Token
}

func seedCategory(t *testing.T, repos RepositoryManager, owner uuid.UUID, name string) *Category {
	t.Helper()
	record, err := repos.Categories().Create(context.Background(), &Category{
		OwnerID: owner,
		Name:    name,
		Kind:    CategoryExpense,
	})
	require.NoError(t, err)
	// keeps created_at ordering stable between seeds
	time.Sleep(2 * time.Millisecond)
	return record
}

func seedTransaction(t *testing.T, repos RepositoryManager, owner uuid.UUID, category *Category, amount string) *Transaction {
	t.Helper()
	record := &Transaction{
		OwnerID:     owner,
		Amount:      decimal.RequireFromString(amount),
		Description: "seed",
	}
	if category != nil {
		record.CategoryID = &category.ID
	}
	record, err := repos.Transactions().Create(context.Background(), record)
	require.NoError(t, err)
	return record
}

func accountSession(identity *Identity) StaticSession {
	return StaticSession{ID: identity.ID.String(), UserEmail: identity.GetEmail()}
}

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingSink struct {
	events []ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
