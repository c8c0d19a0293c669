package signin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/zento"
	"github.com/google/uuid"
)

// TokenService signs and validates session tokens
type TokenService interface {
	Generate(identity *zento.Identity) (string, error)
	Validate(tokenString string) (*Session, error)
	Expiration() time.Duration
}

type tokenService struct {
	signingKey      []byte
	tokenExpiration time.Duration
	issuer          string
	logger          zento.Logger
}

// NewTokenService creates a new HS256 TokenService
func NewTokenService(signingKey []byte, tokenExpiration time.Duration, issuer string, logger zento.Logger) TokenService {
	if logger == nil {
		logger = zento.DefaultLogger()
	}
	if tokenExpiration <= 0 {
		tokenExpiration = 24 * time.Hour
	}
	return &tokenService{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		logger:          logger,
	}
}

func (ts *tokenService) Expiration() time.Duration {
	return ts.tokenExpiration
}

// Generate creates a JWT whose subject is the identity id
func (ts *tokenService) Generate(identity *zento.Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity must not be nil", errors.CategoryInternal)
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.tokenExpiration)),
		},
		Email: identity.GetEmail(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string
func (ts *tokenService) Validate(tokenString string) (*Session, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return sessionFromClaims(claims), nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToFindSession
}
