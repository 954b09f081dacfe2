package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicyValidate(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		user     *User
		want     []string
	}{
		{
			name:     "acceptable password",
			password: "S3curePassw0rd!",
			want:     nil,
		},
		{
			name:     "too short",
			password: "abc1234",
			want:     []string{"This password is too short. It must contain at least 8 characters."},
		},
		{
			name:     "entirely numeric",
			password: "84930284712",
			want:     []string{"This password is entirely numeric."},
		},
		{
			name:     "too common",
			password: "password123",
			want:     []string{"This password is too common."},
		},
		{
			name:     "similar to username",
			password: "johndoe2024",
			user:     &User{Username: "johndoe"},
			want:     []string{"The password is too similar to your personal information."},
		},
		{
			name:     "similar to email local part",
			password: "xx-jane.smith-xx",
			user:     &User{Email: "jane.smith@example.com"},
			want:     []string{"The password is too similar to your personal information."},
		},
		{
			name:     "short attributes are ignored",
			password: "abcdefgh",
			user:     &User{Username: "abc", FirstName: "Ed"},
			want:     nil,
		},
		{
			// 9 runes, 18 bytes; length is measured in characters
			name:     "multibyte password long enough",
			password: "пароль123",
			want:     nil,
		},
		{
			name:     "multibyte password too short",
			password: "пароль7",
			want:     []string{"This password is too short. It must contain at least 8 characters."},
		},
		{
			name:     "short and numeric stack",
			password: "1234567",
			want: []string{
				"This password is too short. It must contain at least 8 characters.",
				"This password is entirely numeric.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Validate(tt.password, tt.user)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPasswordPolicyCheck(t *testing.T) {
	policy := DefaultPasswordPolicy()

	require.NoError(t, policy.Check("S3curePassw0rd!", nil))

	err := policy.Check("1234567", nil)
	require.Error(t, err)
	assert.True(t, IsWeakPasswordError(err))
	assert.Len(t, PasswordViolations(err), 2)
}

func TestPasswordPolicyZeroValueFallsBackToDefault(t *testing.T) {
	var policy PasswordPolicy

	got := policy.Validate("abc1234", nil)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "too short")
}
