package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeEmptyPassword identifies hashing attempts on empty input.
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodePasswordMismatch identifies a failed hash comparison.
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	// TextCodeTokenExpired identifies expired JWTs.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed identifies JWTs we could not parse.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeInvalidVerificationToken covers both malformed and unknown
	// email verification tokens; the two are deliberately indistinguishable.
	TextCodeInvalidVerificationToken = "INVALID_VERIFICATION_TOKEN"
	// TextCodeInvalidResetLink covers every way a reset link can be bad:
	// undecodable uid, unknown user, stale or expired challenge.
	TextCodeInvalidResetLink = "INVALID_RESET_LINK"
	// TextCodeWeakPassword identifies password policy failures.
	TextCodeWeakPassword = "WEAK_PASSWORD"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotActive is returned when login is attempted before the
// account email has been verified.
var ErrIdentityNotActive = goerrors.New("no active account found with the given credentials", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_ACTIVE").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password can not be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match
// the stored hash.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired will flag expired session tokens.
var ErrTokenExpired = goerrors.New("authentication token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed will flag tokens we could not decode.
var ErrTokenMalformed = goerrors.New("authentication token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrVerificationTokenInvalid is the single outcome for malformed and
// unknown email verification tokens.
var ErrVerificationTokenInvalid = goerrors.New("invalid or expired verification token", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidVerificationToken).
	WithCode(goerrors.CodeBadRequest)

// ErrResetLinkInvalid is the single outcome for every invalid password
// reset link.
var ErrResetLinkInvalid = goerrors.New("invalid or expired password reset link", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidResetLink).
	WithCode(goerrors.CodeBadRequest)

// WeakPasswordError builds a validation error carrying the list of violated
// policy rules so callers can surface them field by field.
func WeakPasswordError(violations []string) *goerrors.Error {
	return goerrors.New("password validation failed", goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"violations": violations,
		})
}

// IsWeakPasswordError checks whether err carries password policy violations.
func IsWeakPasswordError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeWeakPassword
}

// PasswordViolations extracts the violated rules from a WeakPasswordError.
func PasswordViolations(err error) []string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	if v, ok := richErr.Metadata["violations"].([]string); ok {
		return v
	}
	return nil
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
