package accounts

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	msgRegistered        = "User registered successfully. Please check your email to verify your account."
	msgRegistrationFail  = "Registration failed. Please check the provided data."
	msgEmailVerified     = "Email successfully verified. You can now log in."
	msgAlreadyVerified   = "Email already verified."
	msgInvalidVerifyTok  = "Invalid or expired verification token."
	msgResetRequested    = "If an account with this email exists, a password reset link has been sent."
	msgResetDone         = "Password has been reset successfully. You can now log in with your new password."
	msgInvalidResetLink  = "Invalid or expired password reset link."
	msgPasswordValidFail = "Password validation failed."
	msgPasswordChanged   = "Password changed successfully."
	msgNoActiveAccount   = "No active account found with the given credentials"
	msgUnexpected        = "An unexpected error occurred."
)

// AccountsController exposes the account flows as a JSON API.
type AccountsController struct {
	Logger         Logger
	Repo           RepositoryManager
	Auther         Authenticator
	Register       *RegisterUserHandler
	Verify         *VerifyEmailHandler
	ResetInit      *InitializePasswordResetHandler
	ResetFinalize  *FinalizePasswordResetHandler
	PasswordChange *ChangePasswordHandler
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in accounts controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Auther = auther
		return c
	}
}

func WithControllerHandlers(
	register *RegisterUserHandler,
	verify *VerifyEmailHandler,
	resetInit *InitializePasswordResetHandler,
	resetFinalize *FinalizePasswordResetHandler,
	passwordChange *ChangePasswordHandler,
) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Register = register
		c.Verify = verify
		c.ResetInit = resetInit
		c.ResetFinalize = resetFinalize
		c.PasswordChange = passwordChange
		return c
	}
}

// RegisterAccountRoutes mounts the controller under /api/auth.
func RegisterAccountRoutes(app *fiber.App, controller *AccountsController) {
	api := app.Group("/api/auth")

	api.Post("/register", controller.RegisterPost)
	api.Post("/login", controller.LoginPost)
	api.Post("/token/refresh", controller.TokenRefreshPost)
	api.Post("/token/verify", controller.TokenVerifyPost)
	api.Post("/verify-email", controller.VerifyEmailPost)
	api.Post("/password-reset/request", controller.PasswordResetRequestPost)
	api.Post("/password-reset/confirm", controller.PasswordResetConfirmPost)

	protected := RequireAuth(controller.Auther)
	api.Get("/user", protected, controller.CurrentUserGet)
	api.Post("/password/change", protected, controller.PasswordChangePost)
}

// RegisterRequest payload
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"password2"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

func (a *AccountsController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, msgRegistrationFail, []string{"could not parse request body"})
	}

	var created *User
	err := a.Register.Execute(c.Context(), RegisterUserMessage{
		Username:        payload.Username,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		UseHashid:       true,
		OnResponse: func(r *RegisterUserResponse) {
			created = r.User
		},
	})

	if err != nil {
		if details := registrationDetails(err); details != nil {
			return badRequest(c, msgRegistrationFail, details)
		}
		return a.unexpected(c, err)
	}

	resp := fiber.Map{"message": msgRegistered}
	if created != nil {
		resp["user_id"] = created.ID.String()
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return unauthorizedDetail(c, msgNoActiveAccount)
	}

	if err := payload.Validate(); err != nil {
		return unauthorizedDetail(c, msgNoActiveAccount)
	}

	pair, err := a.Auther.Login(c.Context(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Info("login rejected for %q: %v", payload.Username, err)
		return unauthorizedDetail(c, msgNoActiveAccount)
	}

	return c.JSON(pair)
}

// TokenRefreshRequest payload
type TokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

func (a *AccountsController) TokenRefreshPost(c *fiber.Ctx) error {
	payload := new(TokenRefreshRequest)
	if err := c.BodyParser(payload); err != nil || payload.Refresh == "" {
		return tokenNotValid(c)
	}

	access, err := a.Auther.Refresh(c.Context(), payload.Refresh)
	if err != nil {
		return tokenNotValid(c)
	}

	return c.JSON(fiber.Map{"access": access})
}

// TokenVerifyRequest payload
type TokenVerifyRequest struct {
	Token string `json:"token"`
}

func (a *AccountsController) TokenVerifyPost(c *fiber.Ctx) error {
	payload := new(TokenVerifyRequest)
	if err := c.BodyParser(payload); err != nil || payload.Token == "" {
		return tokenNotValid(c)
	}

	if _, err := a.Auther.SessionFromToken(payload.Token); err != nil {
		return tokenNotValid(c)
	}

	return c.JSON(fiber.Map{})
}

// VerifyEmailRequest payload
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (a *AccountsController) VerifyEmailPost(c *fiber.Ctx) error {
	payload := new(VerifyEmailRequest)
	if err := c.BodyParser(payload); err != nil {
		return badRequestError(c, "Token is required.")
	}

	if payload.Token == "" {
		return badRequestError(c, "Token is required.")
	}

	var outcome VerificationOutcome
	err := a.Verify.Execute(c.Context(), VerifyEmailMessage{
		Token: payload.Token,
		OnResponse: func(r *VerifyEmailResponse) {
			outcome = r.Outcome
		},
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeInvalidVerificationToken {
			return badRequestError(c, msgInvalidVerifyTok)
		}
		return a.unexpected(c, err)
	}

	if outcome == VerificationAlreadyDone {
		return c.JSON(fiber.Map{"message": msgAlreadyVerified})
	}

	return c.JSON(fiber.Map{"message": msgEmailVerified})
}

// PasswordResetRequestPayload payload
type PasswordResetRequestPayload struct {
	Email string `json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountsController) PasswordResetRequestPost(c *fiber.Ctx) error {
	payload := new(PasswordResetRequestPayload)
	if err := c.BodyParser(payload); err != nil {
		return badRequestError(c, "Email is required.")
	}

	if err := payload.Validate(); err != nil {
		return badRequestError(c, "Email is required.")
	}

	err := a.ResetInit.Execute(c.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	})

	if err != nil {
		// the acknowledgement must not betray what went wrong
		a.Logger.Error("password reset initialization failed: %v", err)
	}

	return c.JSON(fiber.Map{"message": msgResetRequested})
}

// PasswordResetConfirmPayload payload
type PasswordResetConfirmPayload struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) PasswordResetConfirmPost(c *fiber.Ctx) error {
	payload := new(PasswordResetConfirmPayload)
	if err := c.BodyParser(payload); err != nil {
		return badRequestError(c, "UID, token, and new password are required.")
	}

	if err := payload.Validate(); err != nil {
		return badRequestError(c, "UID, token, and new password are required.")
	}

	err := a.ResetFinalize.Execute(c.Context(), FinalizePasswordResetMessage{
		UID:      payload.UID,
		Token:    payload.Token,
		Password: payload.Password,
	})

	if err != nil {
		if IsWeakPasswordError(err) {
			return badRequest(c, msgPasswordValidFail, PasswordViolations(err))
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeInvalidResetLink {
			return badRequestError(c, msgInvalidResetLink)
		}

		return a.unexpected(c, err)
	}

	return c.JSON(fiber.Map{"message": msgResetDone})
}

func (a *AccountsController) CurrentUserGet(c *fiber.Ctx) error {
	session, ok := SessionFromFiber(c)
	if !ok {
		return unauthorizedDetail(c, "Authentication credentials were not provided.")
	}

	user, err := a.Repo.Users().GetByIdentifier(c.Context(), session.GetUserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return unauthorizedDetail(c, "User not found.")
		}
		return a.unexpected(c, err)
	}

	profile, err := a.Repo.Profiles().GetByUserID(c.Context(), user.ID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return a.unexpected(c, err)
	}

	resp := fiber.Map{
		"id":         user.ID.String(),
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"is_active":  user.Active,
	}

	if profile != nil {
		resp["profile"] = fiber.Map{"email_verified": profile.EmailVerified}
	}

	return c.JSON(resp)
}

// PasswordChangeRequest payload
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will validate the payload
func (r PasswordChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

func (a *AccountsController) PasswordChangePost(c *fiber.Ctx) error {
	session, ok := SessionFromFiber(c)
	if !ok {
		return unauthorizedDetail(c, "Authentication credentials were not provided.")
	}

	payload := new(PasswordChangeRequest)
	if err := c.BodyParser(payload); err != nil {
		return badRequestError(c, "Current and new password are required.")
	}

	if err := payload.Validate(); err != nil {
		return badRequestError(c, "Current and new password are required.")
	}

	err := a.PasswordChange.Execute(c.Context(), ChangePasswordMessage{
		UserID:          session.GetUserID(),
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	})

	if err != nil {
		if IsWeakPasswordError(err) {
			return badRequest(c, msgPasswordValidFail, PasswordViolations(err))
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation {
			return badRequestError(c, richErr.Message)
		}

		return a.unexpected(c, err)
	}

	return c.JSON(fiber.Map{"message": msgPasswordChanged})
}

func (a *AccountsController) unexpected(c *fiber.Ctx, err error) error {
	// full detail stays server side
	a.Logger.Error("unexpected error handling %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msgUnexpected,
	})
}

func badRequest(c *fiber.Ctx, message string, details []string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   message,
		"details": details,
	})
}

func badRequestError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}

func unauthorizedDetail(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"detail": detail,
	})
}

func tokenNotValid(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	})
}

// registrationDetails flattens validation failures into the field-to-message
// list the register endpoint reports. Returns nil for non-validation errors.
func registrationDetails(err error) []string {
	if IsWeakPasswordError(err) {
		details := make([]string, 0)
		for _, v := range PasswordViolations(err) {
			details = append(details, fmt.Sprintf("Password: %s", v))
		}
		return details
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
	case goerrors.CategoryConflict:
		return []string{richErr.Message}
	default:
		return nil
	}

	// ozzo validation errors map field -> message
	var ozzoErrs validation.Errors
	if errors.As(richErr.Unwrap(), &ozzoErrs) {
		details := make([]string, 0, len(ozzoErrs))
		for field, ferr := range ozzoErrs {
			details = append(details, fmt.Sprintf("%s: %s", field, ferr.Error()))
		}
		return details
	}

	return []string{richErr.Message}
}
