package signin

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/zento"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/mattn/go-sqlite3"
)

const testSigningKey = "test-signing-key-0123456789"

func setupRepos(t *testing.T) zento.RepositoryManager {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, zento.Migrate(context.Background(), db, zento.DialectSQLite))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return zento.NewRepositoryManager(bunDB, zento.WithTouchRunner(func(f func()) { f() }))
}

func setupService(t *testing.T, opts ...ServiceOption) (zento.RepositoryManager, *Service, TokenService) {
	t.Helper()
	repos := setupRepos(t)
	tokens := NewTokenService([]byte(testSigningKey), time.Hour, "zento-test", nil)
	opts = append([]ServiceOption{WithPasswordCost(bcrypt.MinCost)}, opts...)
	return repos, NewService(repos, tokens, opts...), tokens
}

type fakeRequest struct {
	ctx      context.Context
	payload  any
	locals   map[any]any
	incoming map[string]string
	written  []*router.Cookie

	status   int
	body     any
	redirect string
}

func newFakeRequest(payload any) *fakeRequest {
	return &fakeRequest{
		ctx:      context.Background(),
		payload:  payload,
		locals:   map[any]any{},
		incoming: map[string]string{},
	}
}

func (f *fakeRequest) Context() context.Context { return f.ctx }

func (f *fakeRequest) Bind(i any) error {
	raw, err := json.Marshal(f.payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, i)
}

func (f *fakeRequest) Locals(key any, value ...any) any {
	if len(value) > 0 {
		f.locals[key] = value[0]
		return value[0]
	}
	return f.locals[key]
}

func (f *fakeRequest) Cookie(cookie *router.Cookie) {
	f.written = append(f.written, cookie)
}

func (f *fakeRequest) Cookies(key string, defaultValue ...string) string {
	if v, ok := f.incoming[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (f *fakeRequest) JSON(code int, val any) error {
	f.status = code
	f.body = val
	return nil
}

func (f *fakeRequest) Redirect(path string, status ...int) error {
	f.redirect = path
	if len(status) > 0 {
		f.status = status[0]
	}
	return nil
}
