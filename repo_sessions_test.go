package zento

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousSessionsCreateAndResolve(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	guest, err := repos.Identities().ProvisionGuestTx(ctx, repos.DB())
	require.NoError(t, err)

	issued, err := repos.Sessions().Create(ctx, guest.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	assert.Equal(t, HashToken(issued.Token), issued.Session.TokenHash)
	assert.NotEqual(t, issued.Token, issued.Session.TokenHash)
	require.NotNil(t, issued.Session.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(DefaultGuestTTL), *issued.Session.ExpiresAt, time.Minute)

	owner, err := repos.Sessions().Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, owner)

	owner, err = repos.Sessions().ResolveTx(ctx, repos.DB(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, owner)
}

func TestAnonymousSessionsPlaintextNotStored(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	guest, token := seedGuest(t, repos)

	var count int
	err := repos.DB().NewRaw("SELECT count(*) FROM anonymous_sessions WHERE token_hash = ?", token).Scan(ctx, &count)
	require.NoError(t, err)
	assert.Zero(t, count)

	sessions, err := repos.Sessions().ListFor(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, HashToken(token), sessions[0].TokenHash)
}

func TestAnonymousSessionsResolveNotFound(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "not-a-token", "%%%"} {
		_, err := repos.Sessions().Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrSessionNotFound, "token %q", token)
		assert.True(t, IsNotFound(err))
	}
}

func TestAnonymousSessionsResolveExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-200 * 24 * time.Hour)
	stale := NewAnonymousSessions(db, WithSessionClock(func() time.Time { return past }))
	live := NewAnonymousSessions(db, WithTouchRunner(inlineRunner))

	guest, err := NewIdentitiesRepository(db).ProvisionGuestTx(ctx, db)
	require.NoError(t, err)

	issued, err := stale.Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	_, err = live.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = live.ResolveTx(ctx, db, issued.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnonymousSessionsTouchUpdatesLastSeen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	current := time.Now().Add(-time.Hour).UTC()
	store := NewAnonymousSessions(db,
		WithTouchRunner(inlineRunner),
		WithSessionClock(func() time.Time { return current }),
	)

	guest, err := NewIdentitiesRepository(db).ProvisionGuestTx(ctx, db)
	require.NoError(t, err)

	issued, err := store.Create(ctx, guest.ID, time.Hour*24)
	require.NoError(t, err)

	current = current.Add(30 * time.Minute)

	reqCtx, cancel := context.WithCancel(ctx)
	_, err = store.Resolve(reqCtx, issued.Token)
	cancel()
	require.NoError(t, err)

	sessions, err := store.ListFor(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.WithinDuration(t, current, sessions[0].LastSeenAt, time.Second)
	assert.True(t, sessions[0].LastSeenAt.After(sessions[0].CreatedAt))
}

func TestAnonymousSessionsTouchFailureIsSwallowed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var scheduled func()
	store := NewAnonymousSessions(db, WithTouchRunner(func(f func()) { scheduled = f }))

	guest, err := NewIdentitiesRepository(db).ProvisionGuestTx(ctx, db)
	require.NoError(t, err)

	issued, err := store.Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	owner, err := store.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, owner)
	require.NotNil(t, scheduled)

	require.NoError(t, db.Close())
	assert.NotPanics(t, scheduled)
}

func TestAnonymousSessionsDeleteAllFor(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	guest, token := seedGuest(t, repos)
	_, err := repos.Sessions().Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	n, err := repos.Sessions().DeleteAllFor(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repos.Sessions().Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err = repos.Sessions().DeleteAllFor(ctx, guest.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.Sessions().DeleteAllFor(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnonymousSessionsPurgeExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-30 * 24 * time.Hour)
	stale := NewAnonymousSessions(db, WithSessionClock(func() time.Time { return past }))
	live := NewAnonymousSessions(db, WithTouchRunner(inlineRunner))

	guest, err := NewIdentitiesRepository(db).ProvisionGuestTx(ctx, db)
	require.NoError(t, err)

	_, err = stale.Create(ctx, guest.ID, 24*time.Hour)
	require.NoError(t, err)
	fresh, err := live.Create(ctx, guest.ID, 0)
	require.NoError(t, err)

	n, err := live.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	owner, err := live.Resolve(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, owner)
}
