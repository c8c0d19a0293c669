package zento

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResolverAuthenticatedSessionWins(t *testing.T) {
	repos := setupRepos(t)
	account := seedAccount(t, repos, "owner@example.com")
	_, token := seedGuest(t, repos)

	resolver := NewResolver(repos)

	for _, access := range []Access{ReadAccess, WriteAccess} {
		res, err := resolver.ResolveOwner(context.Background(), RequestState{
			Session:     accountSession(account),
			BearerToken: token,
		}, access)
		require.NoError(t, err)
		assert.Equal(t, account.ID, res.OwnerID)
		assert.True(t, res.Authenticated)
		assert.Nil(t, res.Cookie)
	}
}

func TestResolverBearerToken(t *testing.T) {
	repos := setupRepos(t)
	guest, token := seedGuest(t, repos)

	res, err := NewResolver(repos).ResolveOwner(context.Background(), RequestState{BearerToken: token}, WriteAccess)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, res.OwnerID)
	assert.False(t, res.Authenticated)
	assert.False(t, res.Provisioned)
	assert.Nil(t, res.Cookie)
}

func TestResolverInvalidSessionFallsThrough(t *testing.T) {
	repos := setupRepos(t)
	guest, token := seedGuest(t, repos)

	res, err := NewResolver(repos).ResolveOwner(context.Background(), RequestState{
		Session:     StaticSession{ID: "not-a-uuid"},
		BearerToken: token,
	}, ReadAccess)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, res.OwnerID)
	assert.False(t, res.Authenticated)
}

func TestResolverReadNeverErrors(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	past := time.Now().Add(-365 * 24 * time.Hour)
	stale := NewAnonymousSessions(repos.DB(), WithSessionClock(func() time.Time { return past }))
	guest, err := repos.Identities().ProvisionGuestTx(ctx, repos.DB())
	require.NoError(t, err)
	expired, err := stale.Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	resolver := NewResolver(repos)

	tokens := []string{"", " ", "garbage", "a.b.c", "%00%ff", expired.Token, uuid.NewString()}
	for _, token := range tokens {
		res, err := resolver.ResolveOwner(ctx, RequestState{BearerToken: token}, ReadAccess)
		require.NoError(t, err, "token %q", token)
		assert.False(t, res.HasOwner(), "token %q", token)
		assert.Nil(t, res.Cookie)
	}

	var count int
	count, err = repos.DB().NewSelect().Model((*Identity)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "reads must not provision guests")
}

func TestResolverWriteProvisionsGuest(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	sink := &MockActivitySink{}
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e ActivityEvent) bool {
		return e.EventType == ActivityEventGuestProvisioned && e.GuestID != ""
	})).Return(nil).Once()

	resolver := NewResolver(repos, WithResolverActivitySink(sink), WithGuestTTL(48*time.Hour))

	res, err := resolver.ResolveOwner(ctx, RequestState{BearerToken: "stale"}, WriteAccess)
	require.NoError(t, err)
	require.True(t, res.HasOwner())
	assert.True(t, res.Provisioned)
	assert.False(t, res.Authenticated)
	require.NotNil(t, res.Cookie)
	assert.NotEmpty(t, res.Cookie.Set)
	assert.Equal(t, 48*time.Hour, res.Cookie.MaxAge)

	guest, err := repos.Identities().FindByID(ctx, res.OwnerID)
	require.NoError(t, err)
	assert.True(t, guest.IsGuest)
	assert.Nil(t, guest.Email)

	owner, err := repos.Sessions().Resolve(ctx, res.Cookie.Set)
	require.NoError(t, err)
	assert.Equal(t, res.OwnerID, owner)

	sink.AssertExpectations(t)
}

func TestResolverConcurrentWritesProvisionDistinctGuests(t *testing.T) {
	repos := setupRepos(t)
	resolver := NewResolver(repos)

	first, err := resolver.ResolveOwner(context.Background(), RequestState{}, WriteAccess)
	require.NoError(t, err)
	second, err := resolver.ResolveOwner(context.Background(), RequestState{}, WriteAccess)
	require.NoError(t, err)

	assert.NotEqual(t, first.OwnerID, second.OwnerID)
	assert.NotEqual(t, first.Cookie.Set, second.Cookie.Set)
}

func TestResolverProvisionFailure(t *testing.T) {
	repos := setupRepos(t)
	require.NoError(t, repos.DB().Close())

	res, err := NewResolver(repos).ResolveOwner(context.Background(), RequestState{}, WriteAccess)
	require.Error(t, err)
	assert.False(t, res.HasOwner())

	res, err = NewResolver(repos).ResolveOwner(context.Background(), RequestState{BearerToken: "x"}, ReadAccess)
	require.NoError(t, err)
	assert.False(t, res.HasOwner())
}
