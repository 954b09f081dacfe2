package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupRepo(t *testing.T) (*bun.DB, RepositoryManager) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))

	return db, NewRepositoryManager(db)
}

// seedUser registers a user directly through the repository, bypassing the
// command handler, so tests can control the active flag.
func seedUser(t *testing.T, repo RepositoryManager, username, email, password string, active bool) *User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Users().Register(context.Background(), &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       active,
	})
	require.NoError(t, err)
	require.NotNil(t, user.Profile)

	return user
}

type recordedMail struct {
	To      string
	Subject string
	Body    string
}

// mailRecorder captures every Send so tests can assert on dispatched mail.
// Handlers send from goroutines, so delivery is observed through a channel.
type mailRecorder struct {
	mu   sync.Mutex
	sent []recordedMail
	ch   chan recordedMail
}

func newMailRecorder() *mailRecorder {
	return &mailRecorder{ch: make(chan recordedMail, 16)}
}

func (m *mailRecorder) Send(ctx context.Context, to, subject, body string) error {
	msg := recordedMail{To: to, Subject: subject, Body: body}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.ch <- msg
	return nil
}

func (m *mailRecorder) waitForMail(t *testing.T) recordedMail {
	t.Helper()

	select {
	case msg := <-m.ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mail to be sent")
		return recordedMail{}
	}
}

func (m *mailRecorder) assertNoMail(t *testing.T) {
	t.Helper()

	select {
	case msg := <-m.ch:
		t.Fatalf("expected no mail, got one to %s with subject %q", msg.To, msg.Subject)
	case <-time.After(200 * time.Millisecond):
	}
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testConfig struct{}

func (testConfig) GetSigningKey() string          { return "test-signing-key-for-accounts" }
func (testConfig) GetTokenExpiration() int        { return 1 }
func (testConfig) GetRefreshTokenExpiration() int { return 24 }
func (testConfig) GetIssuer() string              { return "accounts-test" }
func (testConfig) GetAudience() []string          { return nil }
