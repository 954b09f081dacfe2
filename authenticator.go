package accounts

import (
	"context"
	"reflect"
)

// Auther is the default Authenticator implementation, issuing HS256 token
// pairs for identities verified against the IdentityProvider.
type Auther struct {
	provider     IdentityProvider
	logger       Logger
	tokenService TokenService
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetRefreshTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		logger:       defLogger{},
		tokenService: tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the token service, mainly for tests.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and returns an access/refresh pair. Only
// active (email verified) users can log in.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrIdentityNotFound
	}

	pair, err := s.tokenService.GeneratePair(identity)
	if err != nil {
		s.logger.Error("Login failed to generate tokens: %v", err)
		return nil, err
	}

	return pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, error) {
	access, err := s.tokenService.Refresh(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh token rejected: %v", err)
		return "", err
	}
	return access, nil
}

// SessionFromToken decodes and validates an access token into a Session.
func (s *Auther) SessionFromToken(token string) (Session, error) {
	claims, err := s.tokenService.Validate(token)
	if err != nil {
		return nil, err
	}

	if claims.Use() != TokenUseAccess {
		return nil, ErrTokenMalformed
	}

	return sessionFromClaims(claims), nil
}

// IdentityFromSession loads the identity referenced by a session.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	return s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
}

var _ Authenticator = (*Auther)(nil)
