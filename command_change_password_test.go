package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)

	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)
	handler := NewChangePasswordHandler(repo)

	err := handler.Execute(ctx, ChangePasswordMessage{
		UserID:          user.ID.String(),
		CurrentPassword: "S3curePassw0rd!",
		NewPassword:     "Brand-New-Passw0rd",
	})
	require.NoError(t, err)

	stored, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	require.NoError(t, ComparePasswordAndHash("Brand-New-Passw0rd", stored.PasswordHash))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)

	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)
	handler := NewChangePasswordHandler(repo)

	err := handler.Execute(ctx, ChangePasswordMessage{
		UserID:          user.ID.String(),
		CurrentPassword: "not my password",
		NewPassword:     "Brand-New-Passw0rd",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current password is incorrect")

	// nothing changed
	stored, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	require.NoError(t, ComparePasswordAndHash("S3curePassw0rd!", stored.PasswordHash))
}

func TestChangePasswordWeakNewPassword(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)

	user := seedUser(t, repo, "pepe", "pepe@example.com", "S3curePassw0rd!", true)
	handler := NewChangePasswordHandler(repo)

	err := handler.Execute(ctx, ChangePasswordMessage{
		UserID:          user.ID.String(),
		CurrentPassword: "S3curePassw0rd!",
		NewPassword:     "1234567890",
	})
	require.Error(t, err)
	assert.True(t, IsWeakPasswordError(err))
}

func TestChangePasswordUnknownUser(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)

	handler := NewChangePasswordHandler(repo)

	err := handler.Execute(ctx, ChangePasswordMessage{
		UserID:          uuid.New().String(),
		CurrentPassword: "whatever",
		NewPassword:     "Brand-New-Passw0rd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestChangePasswordBadUserID(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)

	handler := NewChangePasswordHandler(repo)

	err := handler.Execute(ctx, ChangePasswordMessage{
		UserID:          "not-a-uuid",
		CurrentPassword: "whatever",
		NewPassword:     "Brand-New-Passw0rd",
	})
	assert.Error(t, err)
}
