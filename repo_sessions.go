package zento

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultTouchTimeout bounds the detached last seen update
const DefaultTouchTimeout = 5 * time.Second

// IssuedSession is returned by Create. Token holds the plaintext bearer
// token and is never available again after this point.
type IssuedSession struct {
	Token   string
	Session *AnonymousSession
}

// AnonymousSessions persists device bound bearer credentials
type AnonymousSessions interface {
	Create(ctx context.Context, ownerID uuid.UUID, ttl time.Duration) (*IssuedSession, error)
	CreateTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID, ttl time.Duration) (*IssuedSession, error)
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
	ResolveTx(ctx context.Context, tx bun.IDB, token string) (uuid.UUID, error)
	DeleteAllFor(ctx context.Context, ownerID uuid.UUID) (int, error)
	DeleteAllForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error)
	ListFor(ctx context.Context, ownerID uuid.UUID) ([]*AnonymousSession, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionOption configures the AnonymousSessions store
type SessionOption func(*anonymousSessions)

// WithSessionLogger sets the logger used to report failed touches
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *anonymousSessions) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionClock overrides time.Now, used by tests
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *anonymousSessions) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTouchRunner replaces the goroutine launcher used for last seen
// updates. Tests pass a runner that calls the function inline.
func WithTouchRunner(run func(func())) SessionOption {
	return func(s *anonymousSessions) {
		if run != nil {
			s.run = run
		}
	}
}

// WithTouchTimeout sets the deadline of a single last seen update
func WithTouchTimeout(timeout time.Duration) SessionOption {
	return func(s *anonymousSessions) {
		if timeout > 0 {
			s.touchTimeout = timeout
		}
	}
}

type anonymousSessions struct {
	db           *bun.DB
	logger       Logger
	now          clock
	run          func(func())
	touchTimeout time.Duration
}

var _ AnonymousSessions = (*anonymousSessions)(nil)

// NewAnonymousSessions returns the bun backed session store
func NewAnonymousSessions(db *bun.DB, opts ...SessionOption) AnonymousSessions {
	s := &anonymousSessions{
		db:           db,
		logger:       defLogger{},
		run:          func(f func()) { go f() },
		touchTimeout: DefaultTouchTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *anonymousSessions) Create(ctx context.Context, ownerID uuid.UUID, ttl time.Duration) (*IssuedSession, error) {
	return s.CreateTx(ctx, s.db, ownerID, ttl)
}

func (s *anonymousSessions) CreateTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID, ttl time.Duration) (*IssuedSession, error) {
	token, hash, err := IssueToken()
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultGuestTTL
	}

	now := s.now.now()
	expires := now.Add(ttl)
	record := &AnonymousSession{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		TokenHash:  hash,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  &expires,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return &IssuedSession{Token: token, Session: record}, nil
}

// Resolve returns the owner of a live session and schedules a best effort
// update of its last seen time.
func (s *anonymousSessions) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	record, err := s.lookup(ctx, s.db, token)
	if err != nil {
		return uuid.Nil, err
	}

	s.touch(ctx, record.ID)

	return record.OwnerID, nil
}

func (s *anonymousSessions) ResolveTx(ctx context.Context, tx bun.IDB, token string) (uuid.UUID, error) {
	record, err := s.lookup(ctx, tx, token)
	if err != nil {
		return uuid.Nil, err
	}
	return record.OwnerID, nil
}

func (s *anonymousSessions) lookup(ctx context.Context, tx bun.IDB, token string) (*AnonymousSession, error) {
	hash := HashToken(token)
	if hash == "" {
		return nil, ErrSessionNotFound
	}

	record := &AnonymousSession{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if record.Expired(s.now.now()) {
		return nil, ErrSessionNotFound
	}

	return record, nil
}

func (s *anonymousSessions) touch(ctx context.Context, id uuid.UUID) {
	detached := context.WithoutCancel(ctx)
	seen := s.now.now()

	s.run(func() {
		ctx, cancel := context.WithTimeout(detached, s.touchTimeout)
		defer cancel()

		_, err := s.db.NewUpdate().
			Model((*AnonymousSession)(nil)).
			Set("last_seen_at = ?", seen).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			s.logger.Warn("anonymous session touch failed", "session", id, "error", err)
		}
	})
}

func (s *anonymousSessions) DeleteAllFor(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return s.DeleteAllForTx(ctx, s.db, ownerID)
}

func (s *anonymousSessions) DeleteAllForTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*AnonymousSession)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

func (s *anonymousSessions) ListFor(ctx context.Context, ownerID uuid.UUID) ([]*AnonymousSession, error) {
	records := []*AnonymousSession{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PurgeExpired removes sessions whose expiry is before now
func (s *anonymousSessions) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*AnonymousSession)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}
