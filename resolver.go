package zento

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RequestState is what the resolver knows about the current request
type RequestState struct {
	Session     AuthSession
	BearerToken string
}

// CookieDirective tells the HTTP layer what to do with the bearer cookie
type CookieDirective struct {
	// Set holds a freshly issued token to store in the cookie
	Set    string
	Clear  bool
	MaxAge time.Duration
}

// Resolution is the canonical owner of the current operation. A zero
// Resolution means there is no owner.
type Resolution struct {
	OwnerID       uuid.UUID
	Authenticated bool
	Provisioned   bool
	Cookie        *CookieDirective
}

// HasOwner reports whether the request resolved to an identity
func (r Resolution) HasOwner() bool {
	return r.OwnerID != uuid.Nil
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.activity = normalizeActivitySink(sink)
	}
}

// WithGuestTTL sets the lifetime of sessions issued to new guests
func WithGuestTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// Resolver decides who owns the data touched by a request
type Resolver struct {
	repos    RepositoryManager
	logger   Logger
	activity ActivitySink
	ttl      time.Duration
}

func NewResolver(repos RepositoryManager, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repos:    repos,
		logger:   defLogger{},
		activity: noopActivitySink{},
		ttl:      DefaultGuestTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ResolveOwner evaluates, in order: the authenticated session, the bearer
// token and, for writes only, a newly provisioned guest. Missing, expired
// or malformed tokens are never reported as errors. The only error is a
// storage failure while provisioning a guest.
func (r *Resolver) ResolveOwner(ctx context.Context, state RequestState, access Access) (Resolution, error) {
	if id, ok := sessionIdentity(state.Session); ok {
		return Resolution{OwnerID: id, Authenticated: true}, nil
	}

	if strings.TrimSpace(state.BearerToken) != "" {
		owner, err := r.repos.Sessions().Resolve(ctx, state.BearerToken)
		if err == nil {
			return Resolution{OwnerID: owner}, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			r.logger.Warn("bearer token lookup failed", "access", access.String(), "error", err)
		}
	}

	if access != WriteAccess {
		return Resolution{}, nil
	}

	return r.provision(ctx)
}

func (r *Resolver) provision(ctx context.Context) (Resolution, error) {
	var guest *Identity
	var issued *IssuedSession

	err := r.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if guest, err = r.repos.Identities().ProvisionGuestTx(ctx, tx); err != nil {
			return err
		}
		issued, err = r.repos.Sessions().CreateTx(ctx, tx, guest.ID, r.ttl)
		return err
	})
	if err != nil {
		r.logger.Error("guest provisioning failed", "error", err)
		return Resolution{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision guest identity").
			WithCode(goerrors.CodeInternal).
			WithTextCode("GUEST_PROVISION_FAILED")
	}

	r.logger.Info("guest provisioned", "guest", guest.ID)
	recordActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventGuestProvisioned,
		GuestID:   guest.ID.String(),
	})

	return Resolution{
		OwnerID:     guest.ID,
		Provisioned: true,
		Cookie: &CookieDirective{
			Set:    issued.Token,
			MaxAge: r.ttl,
		},
	}, nil
}
