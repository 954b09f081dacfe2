package accounts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

const (
	verificationEmailSubject = "Activate Your CyberTrain Account"
	resetEmailSubject        = "Password Reset Request for CyberTrain"
)

func verificationEmailBody(username, link string) string {
	return fmt.Sprintf(
		"Hi %s,\n\n"+
			"Thank you for registering at CyberTrain.\n"+
			"Please click the link below to verify your email address and activate your account:\n"+
			"%s\n\n"+
			"If you did not request this, please ignore this email.\n\n"+
			"Thanks,\nThe CyberTrain Team",
		username, link,
	)
}

func resetEmailBody(username, link string) string {
	return fmt.Sprintf(
		"Hi %s,\n\n"+
			"Someone requested a password reset for your CyberTrain account. "+
			"If this was you, click the link below to set a new password:\n"+
			"%s\n\n"+
			"If you did not request a password reset, please ignore this email.\n\n"+
			"Thanks,\nThe CyberTrain Team",
		username, link,
	)
}

// SMTPMailer delivers mail over plain SMTP with AUTH. It satisfies Mailer
// and is safe for concurrent use.
type SMTPMailer struct {
	addr     string
	username string
	password string
	from     string
	fromName string
	timeout  time.Duration
	logger   Logger
}

// SMTPMailerConfig carries the connection settings for SMTPMailer.
type SMTPMailerConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

func NewSMTPMailer(cfg SMTPMailerConfig) *SMTPMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SMTPMailer{
		addr:     cfg.Addr,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		fromName: cfg.FromName,
		timeout:  timeout,
		logger:   defLogger{},
	}
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	fromHeader := m.from
	if m.fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	host := m.addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	auth := smtp.PlainAuth("", m.username, m.password, host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(m.timeout):
		return fmt.Errorf("smtp send to %s timed out after %s", to, m.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Debug("mail sent to=%s subject=%q", to, subject)
	return nil
}

// LogMailer prints messages instead of delivering them. Default for local
// development when no SMTP server is configured.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	m.logger.Info("to: %s", to)
	m.logger.Info("subject: %s", subject)
	m.logger.Info("%s", body)
	return nil
}
