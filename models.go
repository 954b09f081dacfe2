package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Users are created inactive and become active
// once their email address is verified.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Active         bool       `bun:"is_active" json:"is_active"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`

	Profile *AuthProfile `bun:"rel:has-one,join:id=user_id" json:"profile,omitempty"`
}

// AuthProfile tracks the email verification state of a user. Exactly one
// profile exists per user and it is created in the same transaction as the
// user record.
//
// Invariant: EmailVerified == true implies VerificationToken == nil.
type AuthProfile struct {
	bun.BaseModel     `bun:"table:auth_profiles,alias:prf"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID            uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User              *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	EmailVerified     bool       `bun:"email_verified,notnull,default:false" json:"email_verified"`
	VerificationToken *uuid.UUID `bun:"verification_token,unique,nullzero,type:uuid" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewProfileFor builds the AuthProfile that accompanies a freshly registered
// user, with a minted verification token and the verified flag down.
func NewProfileFor(userID uuid.UUID) *AuthProfile {
	token := uuid.New()
	return &AuthProfile{
		ID:                uuid.New(),
		UserID:            userID,
		EmailVerified:     false,
		VerificationToken: &token,
	}
}
