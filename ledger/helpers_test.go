package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/goliatone/zento"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

type fixture struct {
	repos      zento.RepositoryManager
	gate       *zento.GuestGate
	service    *Service
	controller *Controller
}

func setup(t *testing.T) *fixture {
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

	repos := zento.NewRepositoryManager(bunDB, zento.WithTouchRunner(func(f func()) { f() }))
	gate := zento.NewGuestGate(zento.NewResolver(repos))
	service := NewService(repos)

	return &fixture{
		repos:      repos,
		gate:       gate,
		service:    service,
		controller: NewController(WithGate(gate), WithService(service)),
	}
}

func (f *fixture) account(t *testing.T, email string) *zento.Identity {
	t.Helper()
	record, err := f.repos.Identities().RegisterAccount(context.Background(), &zento.Identity{Email: &email})
	require.NoError(t, err)
	return record
}

func (f *fixture) countIdentities(t *testing.T) int {
	t.Helper()
	n, err := f.repos.DB().NewSelect().Model((*zento.Identity)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

var _ RequestContext = (*fakeRequest)(nil)

type fakeRequest struct {
	ctx      context.Context
	payload  any
	query    map[string]string
	locals   map[any]any
	incoming map[string]string
	written  []*router.Cookie

	status int
	body   any
}

func newFakeRequest(payload any) *fakeRequest {
	return &fakeRequest{
		ctx:      context.Background(),
		payload:  payload,
		query:    map[string]string{},
		locals:   map[any]any{},
		incoming: map[string]string{},
	}
}

// next carries the cookies written by this request into a new one, the way
// a browser would
func (f *fakeRequest) next(payload any) *fakeRequest {
	req := newFakeRequest(payload)
	for k, v := range f.incoming {
		req.incoming[k] = v
	}
	for _, c := range f.written {
		req.incoming[c.Name] = c.Value
	}
	return req
}

func (f *fakeRequest) Context() context.Context { return f.ctx }

func (f *fakeRequest) Bind(i any) error {
	raw, err := json.Marshal(f.payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, i)
}

func (f *fakeRequest) Query(key string, defaultValue string) string {
	if v, ok := f.query[key]; ok {
		return v
	}
	return defaultValue
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
	if len(status) > 0 {
		f.status = status[0]
	}
	return nil
}
