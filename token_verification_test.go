package accounts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseVerificationToken(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{"well formed", id.String(), true},
		{"surrounding whitespace", "  " + id.String() + "\n", true},
		{"empty", "", false},
		{"not a uuid", "definitely-not-a-uuid", false},
		{"truncated uuid", id.String()[:20], false},
		{"nil uuid", uuid.Nil.String(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseVerificationToken(tt.token)
			assert.Equal(t, tt.valid, parsed.Valid)
			if tt.valid {
				assert.Equal(t, id, parsed.ID)
			}
		})
	}
}
