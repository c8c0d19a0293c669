package signin

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/goliatone/zento"
	"github.com/uptrace/bun"
)

// Result is returned by a successful registration or login
type Result struct {
	Identity *zento.Identity
	Token    string
	Session  *Session
}

// Service registers accounts and verifies credentials
type Service struct {
	repos     zento.RepositoryManager
	tokens    TokenService
	logger    zento.Logger
	cost      int
	useHashid bool
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

// WithPasswordCost overrides the bcrypt cost
func WithPasswordCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// WithHashidIDs derives account ids from the email address
func WithHashidIDs(enabled bool) ServiceOption {
	return func(s *Service) {
		s.useHashid = enabled
	}
}

func NewService(repos zento.RepositoryManager, tokens TokenService, opts ...ServiceOption) *Service {
	s := &Service{
		repos:  repos,
		tokens: tokens,
		logger: zento.DefaultLogger(),
		cost:   passwordHashCost(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register creates a non guest identity and signs a session token for it
func (s *Service) Register(ctx context.Context, email, password string) (*Result, error) {
	email = zento.NormalizeEmail(email)

	hash, err := hashPasswordCost(password, s.cost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided").
			WithCode(goerrors.CodeBadRequest)
	}

	identity := &zento.Identity{Email: &email, PasswordHash: hash}
	if s.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			identity.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Identities().FindByEmailTx(ctx, tx, email); err == nil {
			return ErrEmailTaken
		} else if !zento.IsNotFound(err) {
			return err
		}

		identity, err = s.repos.Identities().RegisterAccountTx(ctx, tx, identity)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	s.logger.Info("account registered", "identity", identity.ID)

	return s.issue(identity)
}

// Login verifies the credentials and signs a session token
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	identity, err := s.repos.Identities().GetByIdentifier(ctx, zento.NormalizeEmail(email))
	if err != nil {
		if zento.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve identity during login")
	}

	if identity.IsGuest || identity.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, identity.PasswordHash); err != nil {
		s.logger.Info("login rejected", "identity", identity.ID)
		return nil, ErrInvalidCredentials
	}

	return s.issue(identity)
}

func (s *Service) issue(identity *zento.Identity) (*Result, error) {
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return nil, err
	}
	return &Result{
		Identity: identity,
		Token:    token,
		Session: &Session{
			UserID:    identity.ID.String(),
			UserEmail: identity.GetEmail(),
		},
	}, nil
}
