package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenPair is the access/refresh pair handed out on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenService issues and validates the session JWTs for the platform.
type TokenService interface {
	GeneratePair(identity Identity) (*TokenPair, error)
	Refresh(refreshToken string) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	tokenExpiration   int
	refreshExpiration int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. Expirations are in
// hours; refresh defaults to 7 days when zero.
func NewTokenService(signingKey []byte, tokenExpiration, refreshExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if refreshExpiration <= 0 {
		refreshExpiration = 24 * 7
	}
	return &TokenServiceImpl{
		signingKey:        signingKey,
		tokenExpiration:   tokenExpiration,
		refreshExpiration: refreshExpiration,
		issuer:            issuer,
		audience:          audience,
		logger:            logger,
	}
}

// GeneratePair creates the access and refresh JWTs for an identity.
func (ts *TokenServiceImpl) GeneratePair(identity Identity) (*TokenPair, error) {
	now := time.Now()

	access, err := ts.sign(ts.claimsFor(identity, TokenUseAccess, now, time.Duration(ts.tokenExpiration)*time.Hour))
	if err != nil {
		return nil, err
	}

	refresh, err := ts.sign(ts.claimsFor(identity, TokenUseRefresh, now, time.Duration(ts.refreshExpiration)*time.Hour))
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh validates a refresh token and mints a fresh access token for the
// same subject. The refresh token itself is not rotated.
func (ts *TokenServiceImpl) Refresh(refreshToken string) (string, error) {
	claims, err := ts.Validate(refreshToken)
	if err != nil {
		return "", err
	}

	if claims.Use() != TokenUseRefresh {
		return "", ErrTokenMalformed
	}

	jwtClaims := ts.claimsFor(subjectIdentity{id: claims.UserID()}, TokenUseAccess, time.Now(), time.Duration(ts.tokenExpiration)*time.Hour)
	return ts.sign(jwtClaims)
}

func (ts *TokenServiceImpl) claimsFor(identity Identity, use string, now time.Time, ttl time.Duration) *JWTClaims {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      identity.ID(),
		TokenUse: use,
	}

	ensureTokenID(&claims.RegisteredClaims)
	return claims
}

func (ts *TokenServiceImpl) sign(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
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

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// subjectIdentity carries just enough of an identity to mint a token.
type subjectIdentity struct {
	id string
}

func (s subjectIdentity) ID() string       { return s.id }
func (s subjectIdentity) Username() string { return "" }
func (s subjectIdentity) Email() string    { return "" }
