package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultChallengeTTL bounds how long a reset challenge stays valid.
const DefaultChallengeTTL = 24 * time.Hour

// ChallengeIssuer mints and verifies stateless password reset challenges.
//
// A challenge is an HMAC over (user id, current password hash, issue time)
// so it requires no storage: it stops verifying the moment the password
// hash changes, which is what makes a successful reset single-use.
type ChallengeIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// ChallengeOption customizes a ChallengeIssuer.
type ChallengeOption func(*ChallengeIssuer)

// WithChallengeTTL overrides the default 24h validity window.
func WithChallengeTTL(ttl time.Duration) ChallengeOption {
	return func(c *ChallengeIssuer) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithChallengeClock injects a custom clock (useful for tests).
func WithChallengeClock(clock func() time.Time) ChallengeOption {
	return func(c *ChallengeIssuer) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewChallengeIssuer creates an issuer keyed with the given secret.
func NewChallengeIssuer(secret string, opts ...ChallengeOption) (*ChallengeIssuer, error) {
	if secret == "" {
		return nil, goerrors.New("challenge secret must not be empty", goerrors.CategoryBadInput)
	}

	c := &ChallengeIssuer{
		secret: []byte(secret),
		ttl:    DefaultChallengeTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Make derives the challenge token for the user's current credential state.
// The token format is "<timestamp_base36>-<mac_hex>", opaque to callers.
func (c *ChallengeIssuer) Make(user *User) string {
	ts := c.now().Unix()
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), c.signature(user, ts))
}

// Check re-derives the challenge from the user's current state and compares
// it against the presented token. Comparison is timing safe. A token issued
// before the user's password hash changed never verifies.
func (c *ChallengeIssuer) Check(user *User, token string) bool {
	if user == nil || token == "" {
		return false
	}

	tsPart, macPart, found := strings.Cut(token, "-")
	if !found {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts <= 0 {
		return false
	}

	age := c.now().Unix() - ts
	if age < 0 || age > int64(c.ttl.Seconds()) {
		return false
	}

	expected := c.signature(user, ts)
	return hmac.Equal([]byte(expected), []byte(macPart))
}

func (c *ChallengeIssuer) signature(user *User, ts int64) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "%s\x00%s\x00%d", user.ID.String(), user.PasswordHash, ts)
	return hex.EncodeToString(mac.Sum(nil)[:20])
}

// EncodeUID turns a user id into the opaque uid segment of a reset link.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID. Any malformed input yields an error; callers
// are expected to collapse it into the generic invalid-link outcome.
func DecodeUID(uid string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not decode uid")
	}

	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "uid is not a valid user id")
	}

	return id, nil
}
