package accounts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

var usernameRe = regexp.MustCompile(`^\w+$`)

type RegisterUserMessage struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"password2"`
	UseHashid       bool
	OnResponse      func(r *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.Username,
			validation.Required,
			validation.Length(3, 150),
			validation.Match(usernameRe).Error("can only contain letters, numbers, and underscores"),
		),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required),
		validation.Field(
			&e.ConfirmPassword,
			validation.Required,
			validation.By(validateStringEquals(e.Password)),
		),
	)
}

type RegisterUserResponse struct {
	User *User
}

type RegisterUserHandler struct {
	repo      RepositoryManager
	mailer    Mailer
	policy    PasswordPolicy
	logger    Logger
	verifyURL string
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, mailer Mailer) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:      repo,
		mailer:    mailer,
		policy:    DefaultPasswordPolicy(),
		logger:    defLogger{},
		verifyURL: "http://localhost:5173/auth/verify-email/",
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithVerifyURL sets the frontend base URL embedded in verification links.
func (h *RegisterUserHandler) WithVerifyURL(url string) *RegisterUserHandler {
	if url != "" {
		h.verifyURL = url
	}
	return h
}

// WithPasswordPolicy overrides the password strength policy.
func (h *RegisterUserHandler) WithPasswordPolicy(policy PasswordPolicy) *RegisterUserHandler {
	h.policy = policy
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	candidate := &User{
		Username:  event.Username,
		Email:     event.Email,
		FirstName: event.FirstName,
		LastName:  event.LastName,
	}

	if err := h.policy.Check(event.Password, candidate); err != nil {
		return err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if taken, err := h.identifierTaken(ctx, tx, "email", event.Email); err != nil {
			return err
		} else if taken {
			return goerrors.New("email address already in use", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"field": "email"})
		}

		if taken, err := h.identifierTaken(ctx, tx, "username", event.Username); err != nil {
			return err
		} else if taken {
			return goerrors.New("username already taken", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"field": "username"})
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		user.Active = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// send after commit; a failed send never unwinds the registration
	h.dispatchVerificationEmail(user)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user})
	}

	return nil
}

func (h *RegisterUserHandler) dispatchVerificationEmail(user *User) {
	if user.Profile == nil || user.Profile.VerificationToken == nil {
		h.logger.Error("registered user %s has no verification token to send", user.ID)
		return
	}

	link := fmt.Sprintf("%s%s/", h.verifyURL, user.Profile.VerificationToken.String())
	to := user.Email
	username := user.Username
	body := verificationEmailBody(username, link)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := h.mailer.Send(ctx, to, verificationEmailSubject, body); err != nil {
			h.logger.Error("failed to send verification email to %s: %v", to, err)
		}
	}()
}

func (h *RegisterUserHandler) identifierTaken(ctx context.Context, tx bun.IDB, column, value string) (bool, error) {
	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Exists(ctx)

	if err != nil && !repository.IsRecordNotFound(err) {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check identifier uniqueness")
	}

	return exists, nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

func validateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return fmt.Errorf("password fields didn't match")
		}
		return nil
	}
}
