package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	accounts "github.com/cybertrain/go-accounts"
)

type config struct {
	addr            string
	dsn             string
	signingKey      string
	tokenExpiration int
	refreshExp      int
	issuer          string
	audience        []string
	challengeSecret string
	verifyURL       string
	resetURL        string

	smtpAddr     string
	smtpUsername string
	smtpPassword string
	smtpFrom     string
	smtpFromName string
}

func (c config) GetSigningKey() string          { return c.signingKey }
func (c config) GetTokenExpiration() int        { return c.tokenExpiration }
func (c config) GetRefreshTokenExpiration() int { return c.refreshExp }
func (c config) GetIssuer() string              { return c.issuer }
func (c config) GetAudience() []string          { return c.audience }

func loadConfig() config {
	// missing .env is fine, the environment may carry everything
	_ = godotenv.Load()

	cfg := config{
		addr:            envOr("SERVER_ADDR", ":8000"),
		dsn:             envOr("DATABASE_DSN", "file:accounts.db?cache=shared&mode=rwc"),
		signingKey:      os.Getenv("AUTH_SIGNING_KEY"),
		tokenExpiration: envIntOr("AUTH_TOKEN_EXPIRATION_HOURS", 1),
		refreshExp:      envIntOr("AUTH_REFRESH_EXPIRATION_HOURS", 24*7),
		issuer:          envOr("AUTH_ISSUER", "cybertrain"),
		challengeSecret: os.Getenv("AUTH_CHALLENGE_SECRET"),
		verifyURL:       envOr("FRONTEND_VERIFY_URL", "http://localhost:5173/auth/verify-email/"),
		resetURL:        envOr("FRONTEND_RESET_URL", "http://localhost:5173/auth/reset-password/"),
		smtpAddr:        os.Getenv("SMTP_ADDR"),
		smtpUsername:    os.Getenv("SMTP_USERNAME"),
		smtpPassword:    os.Getenv("SMTP_PASSWORD"),
		smtpFrom:        envOr("SMTP_FROM", "no-reply@cybertrain.local"),
		smtpFromName:    envOr("SMTP_FROM_NAME", "CyberTrain"),
	}

	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		cfg.audience = strings.Split(aud, ",")
	}

	if cfg.signingKey == "" {
		log.Fatal("AUTH_SIGNING_KEY is required")
	}

	if cfg.challengeSecret == "" {
		// reset links must not survive a signing key rotation either way,
		// so falling back to the signing key is acceptable for small setups
		cfg.challengeSecret = cfg.signingKey
	}

	return cfg
}

func main() {
	cfg := loadConfig()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := accounts.CreateSchema(ctx, db); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	repo := accounts.NewRepositoryManager(db)

	var mailer accounts.Mailer
	if cfg.smtpAddr != "" {
		mailer = accounts.NewSMTPMailer(accounts.SMTPMailerConfig{
			Addr:     cfg.smtpAddr,
			Username: cfg.smtpUsername,
			Password: cfg.smtpPassword,
			From:     cfg.smtpFrom,
			FromName: cfg.smtpFromName,
		})
	} else {
		mailer = accounts.NewLogMailer(nil)
	}

	issuer, err := accounts.NewChallengeIssuer(cfg.challengeSecret)
	if err != nil {
		log.Fatalf("failed to create challenge issuer: %v", err)
	}

	provider := accounts.NewUserProvider(repo.Users())
	auther := accounts.NewAuthenticator(provider, cfg)

	controller := accounts.NewAccountsController(
		accounts.WithControllerRepo(repo),
		accounts.WithControllerAuther(auther),
		accounts.WithControllerHandlers(
			accounts.NewRegisterUserHandler(repo, mailer).WithVerifyURL(cfg.verifyURL),
			accounts.NewVerifyEmailHandler(repo),
			accounts.NewInitializePasswordResetHandler(repo, issuer, mailer).WithResetURL(cfg.resetURL),
			accounts.NewFinalizePasswordResetHandler(repo, issuer),
			accounts.NewChangePasswordHandler(repo),
		),
	)

	app := fiber.New(fiber.Config{
		AppName:      "cybertrain-accounts",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	accounts.RegisterAccountRoutes(app, controller)

	go func() {
		if err := app.Listen(cfg.addr); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
