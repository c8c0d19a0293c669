package signin

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/zento"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockListener struct {
	mock.Mock
}

func (m *MockListener) OnSignIn(c zento.RequestContext, session zento.AuthSession) string {
	args := m.Called(c, session)
	return args.String(0)
}

func setupController(t *testing.T, opts ...ControllerOption) *Controller {
	t.Helper()
	repos, service, tokens := setupService(t)
	opts = append([]ControllerOption{
		WithService(service),
		WithTokens(tokens),
		WithRepo(repos),
		WithCookie(DefaultCookieName, false),
	}, opts...)
	return NewController(opts...)
}

func TestNewControllerRequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewController() })
}

func TestControllerRegisterNotifiesListenersOnce(t *testing.T) {
	listener := &MockListener{}
	listener.On("OnSignIn", mock.Anything, mock.MatchedBy(func(s zento.AuthSession) bool {
		return s.Email() == "fay@example.com"
	})).Return("/account/merge").Once()

	controller := setupController(t, WithListener(listener))

	req := newFakeRequest(RegisterRequest{Email: "fay@example.com", Password: "long enough"})
	require.NoError(t, controller.register(req))

	assert.Equal(t, fiber.StatusCreated, req.status)
	body := req.body.(map[string]any)
	assert.Equal(t, "/account/merge", body["redirect"])
	assert.Equal(t, "fay@example.com", body["email"])

	require.Len(t, req.written, 1)
	assert.Equal(t, DefaultCookieName, req.written[0].Name)
	assert.NotEmpty(t, req.written[0].Value)
	assert.True(t, req.written[0].HTTPOnly)

	session, ok := zento.GetRouterSession(req)
	require.True(t, ok)
	assert.Equal(t, "fay@example.com", session.Email())

	listener.AssertExpectations(t)
}

func TestControllerRegisterValidation(t *testing.T) {
	listener := &MockListener{}
	controller := setupController(t, WithListener(listener))

	req := newFakeRequest(RegisterRequest{Email: "not-an-email", Password: "short"})
	require.NoError(t, controller.register(req))
	assert.Equal(t, fiber.StatusBadRequest, req.status)
	assert.Empty(t, req.written)

	listener.AssertNotCalled(t, "OnSignIn", mock.Anything, mock.Anything)
}

func TestControllerLogin(t *testing.T) {
	listener := &MockListener{}
	listener.On("OnSignIn", mock.Anything, mock.Anything).Return("").Once()

	controller := setupController(t, WithListener(listener))
	_, err := controller.Service.Register(newFakeRequest(nil).Context(), "gus@example.com", "hunter2hunter2")
	require.NoError(t, err)

	req := newFakeRequest(LoginRequest{Email: "gus@example.com", Password: "hunter2hunter2"})
	require.NoError(t, controller.login(req))
	assert.Equal(t, fiber.StatusOK, req.status)
	assert.Equal(t, "/", req.body.(map[string]any)["redirect"])

	bad := newFakeRequest(LoginRequest{Email: "gus@example.com", Password: "wrong-password"})
	require.NoError(t, controller.login(bad))
	assert.Equal(t, fiber.StatusUnauthorized, bad.status)
	assert.Empty(t, bad.written)

	listener.AssertExpectations(t)
}

func TestControllerListenerPanicDoesNotFailSignIn(t *testing.T) {
	panicking := ListenerFunc(func(zento.RequestContext, zento.AuthSession) string {
		panic("boom")
	})
	controller := setupController(t, WithListener(panicking))

	req := newFakeRequest(RegisterRequest{Email: "hal@example.com", Password: "long enough"})
	require.NoError(t, controller.register(req))
	assert.Equal(t, fiber.StatusCreated, req.status)
	assert.Equal(t, "/", req.body.(map[string]any)["redirect"])
}

func TestControllerAuthenticate(t *testing.T) {
	controller := setupController(t)

	result, err := controller.Service.Register(newFakeRequest(nil).Context(), "ivy@example.com", "long enough")
	require.NoError(t, err)

	req := newFakeRequest(nil)
	req.incoming[DefaultCookieName] = result.Token
	controller.authenticate(req)

	session, ok := zento.GetRouterSession(req)
	require.True(t, ok)
	assert.Equal(t, result.Identity.ID.String(), session.IdentityID())

	invalid := newFakeRequest(nil)
	invalid.incoming[DefaultCookieName] = "tampered"
	controller.authenticate(invalid)
	_, ok = zento.GetRouterSession(invalid)
	assert.False(t, ok)
}

func TestControllerMe(t *testing.T) {
	controller := setupController(t)

	result, err := controller.Service.Register(newFakeRequest(nil).Context(), "jo@example.com", "long enough")
	require.NoError(t, err)

	req := newFakeRequest(nil)
	zento.SetRouterSession(req, result.Session)
	require.NoError(t, controller.me(req))
	assert.Equal(t, fiber.StatusOK, req.status)

	identity, ok := req.body.(*zento.Identity)
	require.True(t, ok)
	assert.Equal(t, result.Identity.ID, identity.ID)

	anonymous := newFakeRequest(nil)
	require.NoError(t, controller.me(anonymous))
	assert.Equal(t, fiber.StatusUnauthorized, anonymous.status)
}
