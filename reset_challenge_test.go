package accounts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserForChallenge() *User {
	return &User{
		ID:           uuid.New(),
		Username:     "pepe",
		Email:        "pepe@example.com",
		PasswordHash: "$2a$14$fakehashfakehashfakehashfakehash",
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	issuer, err := NewChallengeIssuer("test-secret")
	require.NoError(t, err)

	user := testUserForChallenge()
	token := issuer.Make(user)

	assert.True(t, issuer.Check(user, token))
}

func TestChallengeRequiresSecret(t *testing.T) {
	_, err := NewChallengeIssuer("")
	assert.Error(t, err)
}

func TestChallengeFailsAfterPasswordChange(t *testing.T) {
	issuer, err := NewChallengeIssuer("test-secret")
	require.NoError(t, err)

	user := testUserForChallenge()
	token := issuer.Make(user)
	require.True(t, issuer.Check(user, token))

	// binding to the hash is what makes a spent challenge single-use
	user.PasswordHash = "$2a$14$differenthashdifferenthashdiffe"
	assert.False(t, issuer.Check(user, token))
}

func TestChallengeFailsForDifferentUser(t *testing.T) {
	issuer, err := NewChallengeIssuer("test-secret")
	require.NoError(t, err)

	user := testUserForChallenge()
	token := issuer.Make(user)

	other := testUserForChallenge()
	other.PasswordHash = user.PasswordHash
	assert.False(t, issuer.Check(other, token))
}

func TestChallengeExpiry(t *testing.T) {
	now := time.Now()
	clock := now

	issuer, err := NewChallengeIssuer(
		"test-secret",
		WithChallengeTTL(time.Hour),
		WithChallengeClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	user := testUserForChallenge()
	token := issuer.Make(user)

	clock = now.Add(59 * time.Minute)
	assert.True(t, issuer.Check(user, token))

	clock = now.Add(61 * time.Minute)
	assert.False(t, issuer.Check(user, token))
}

func TestChallengeRejectsFutureTimestamp(t *testing.T) {
	now := time.Now()
	clock := now

	issuer, err := NewChallengeIssuer(
		"test-secret",
		WithChallengeClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	user := testUserForChallenge()

	clock = now.Add(time.Hour)
	token := issuer.Make(user)

	clock = now
	assert.False(t, issuer.Check(user, token))
}

func TestChallengeMalformedTokens(t *testing.T) {
	issuer, err := NewChallengeIssuer("test-secret")
	require.NoError(t, err)

	user := testUserForChallenge()

	for _, token := range []string{
		"",
		"nodash",
		"-",
		"notbase36!-abcdef",
		"0-abcdef",
	} {
		assert.False(t, issuer.Check(user, token), "token %q should not verify", token)
	}
}

func TestChallengeSecretsAreIndependent(t *testing.T) {
	a, err := NewChallengeIssuer("secret-a")
	require.NoError(t, err)
	b, err := NewChallengeIssuer("secret-b")
	require.NoError(t, err)

	user := testUserForChallenge()
	token := a.Make(user)

	assert.True(t, a.Check(user, token))
	assert.False(t, b.Check(user, token))
}

func TestEncodeDecodeUID(t *testing.T) {
	id := uuid.New()

	uid := EncodeUID(id)
	assert.NotContains(t, uid, "=")

	decoded, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestDecodeUIDMalformed(t *testing.T) {
	for _, uid := range []string{
		"",
		"!!!not-base64!!!",
		"aGVsbG8", // decodes but is not a uuid
	} {
		_, err := DecodeUID(uid)
		assert.Error(t, err, "uid %q should not decode", uid)
	}
}
