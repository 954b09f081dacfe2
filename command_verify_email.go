package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// VerificationOutcome is the result of presenting a verification token.
type VerificationOutcome string

const (
	// VerificationDone means the account transitioned to active.
	VerificationDone VerificationOutcome = "verified"
	// VerificationAlreadyDone means the profile was verified before this
	// request; nothing was mutated.
	VerificationAlreadyDone VerificationOutcome = "already-verified"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(r *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailResponse struct {
	Outcome VerificationOutcome
	UserID  string
}

// VerifyEmailHandler drives the registered→verified transition. The
// terminal state cannot be exited: a verified profile stays verified and
// repeated attempts are reported idempotently.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	parsed := ParseVerificationToken(event.Token)
	if !parsed.Valid {
		// malformed and unknown tokens are indistinguishable on purpose
		return ErrVerificationTokenInvalid
	}

	resp := &VerifyEmailResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := h.repo.Profiles().GetByVerificationTokenTx(ctx, tx, parsed.ID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrVerificationTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
		}

		resp.UserID = profile.UserID.String()

		// the token should have been cleared on verification; tolerate a
		// verified profile still holding one
		if profile.EmailVerified {
			resp.Outcome = VerificationAlreadyDone
			return nil
		}

		rows, err := h.repo.Profiles().ConsumeVerificationTokenTx(ctx, tx, parsed.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		// zero rows means a concurrent request already verified this
		// profile; report idempotent success, never a partial state
		if rows == 0 {
			resp.Outcome = VerificationAlreadyDone
			return nil
		}

		if err := h.repo.Users().ActivateTx(ctx, tx, profile.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
		}

		resp.Outcome = VerificationDone
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify email")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
