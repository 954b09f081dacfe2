package accounts

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse always reports Accepted; whether a mail
// was dispatched is never visible to the caller.
type InitializePasswordResetResponse struct {
	Accepted bool
}

// InitializePasswordResetHandler mints a stateless reset challenge for
// active accounts and mails the link. The caller-visible outcome is
// identical for unknown emails, inactive accounts, and delivery failures.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	issuer   *ChallengeIssuer
	mailer   Mailer
	logger   Logger
	resetURL string
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, issuer *ChallengeIssuer, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		issuer:   issuer,
		mailer:   mailer,
		logger:   defLogger{},
		resetURL: "http://localhost:5173/auth/reset-password/",
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithResetURL sets the frontend base URL embedded in reset links.
func (h *InitializePasswordResetHandler) WithResetURL(url string) *InitializePasswordResetHandler {
	if url != "" {
		h.resetURL = url
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Accepted: true}

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// do not reveal that the account doesn't exist
			h.respond(event, resp)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	if !user.Active {
		// same acknowledgement as the unknown-account path
		h.respond(event, resp)
		return nil
	}

	uid := EncodeUID(user.ID)
	token := h.issuer.Make(user)
	link := fmt.Sprintf("%s%s/%s/", h.resetURL, uid, token)
	to := user.Email
	body := resetEmailBody(user.Username, link)

	// no row state to protect; the send runs detached from the request
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := h.mailer.Send(sendCtx, to, resetEmailSubject, body); err != nil {
			h.logger.Error("failed to send password reset email to %s: %v", to, err)
		}
	}()

	h.respond(event, resp)
	return nil
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage, resp *InitializePasswordResetResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
