package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginActiveUser(t *testing.T) {
	_, repo := setupRepo(t)
	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	pair, err := auther.Login(context.Background(), "pepe", "S3curePassw0rd!")
	require.NoError(t, err)
	require.NotNil(t, pair)

	session, err := auther.SessionFromToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), session.GetUserID())

	id, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestLoginByEmail(t *testing.T) {
	_, repo := setupRepo(t)
	seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	pair, err := auther.Login(context.Background(), "pepe@example.com", "S3curePassw0rd!")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
}

func TestLoginRejectsUnverifiedUser(t *testing.T) {
	_, repo := setupRepo(t)
	seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", false)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	_, err := auther.Login(context.Background(), "pepe", "S3curePassw0rd!")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityNotActive)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	_, err := auther.Login(ctx, "pepe", "wrong password")
	require.Error(t, err)
	// same error as unknown user, the response must not leak account state
	assert.ErrorIs(t, err, ErrIdentityNotActive)

	stored, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	// tracking the attempt must not touch any other column
	assert.Equal(t, "pepe", stored.Username)
	assert.Equal(t, "pepe@example.com", stored.Email)

	// the correct password still works afterwards
	_, err = auther.Login(ctx, "pepe", "S3curePassw0rd!")
	assert.NoError(t, err)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	_, repo := setupRepo(t)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	_, err := auther.Login(context.Background(), "ghost", "whatever pass")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityNotActive)
}

func TestLoginTracksSuccess(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	// a failed attempt first, then a successful login resets the counter
	_, err := auther.Login(ctx, "pepe", "nope nope nope")
	require.Error(t, err)

	_, err = auther.Login(ctx, "pepe", "S3curePassw0rd!")
	require.NoError(t, err)

	stored, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.NotNil(t, stored.LoggedInAt)
	assert.Nil(t, stored.LoginAttemptAt)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	_, repo := setupRepo(t)
	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	pair, err := auther.Login(context.Background(), "pepe", "S3curePassw0rd!")
	require.NoError(t, err)

	access, err := auther.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)

	session, err := auther.SessionFromToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), session.GetUserID())
}

func TestSessionFromTokenRejectsRefreshToken(t *testing.T) {
	_, repo := setupRepo(t)
	seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	pair, err := auther.Login(context.Background(), "pepe", "S3curePassw0rd!")
	require.NoError(t, err)

	// refresh tokens must not open protected routes
	_, err = auther.SessionFromToken(pair.Refresh)
	assert.Error(t, err)
}

func TestIdentityFromSession(t *testing.T) {
	_, repo := setupRepo(t)
	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)

	auther := NewAuthenticator(NewUserProvider(repo.Users()), testConfig{})

	pair, err := auther.Login(context.Background(), "pepe", "S3curePassw0rd!")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(pair.Access)
	require.NoError(t, err)

	identity, err := auther.IdentityFromSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, "pepe", identity.Username())
	assert.Equal(t, "pepe@example.com", identity.Email())
}
