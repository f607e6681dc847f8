// Package alert e-mails operators when a sync run fails.
package alert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Enabled reports whether enough is configured to send mail.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && len(c.To) > 0
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

// Mailer sends alerts over SMTP.
type Mailer struct {
	cfg    Config
	send   sendFunc
	logger *zap.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(cfg Config, logger *zap.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("alert: smtp host and recipients are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		cfg:    cfg,
		send:   func(m *email.Email, addr string, auth smtp.Auth) error { return m.Send(addr, auth) },
		logger: logger.Named("alert"),
	}, nil
}

// Alert sends a plain text message to every recipient.
func (m *Mailer) Alert(ctx context.Context, subject, body string) error {
	mail := email.NewEmail()
	mail.From = m.cfg.From
	mail.To = append([]string(nil), m.cfg.To...)
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	done := make(chan error, 1)
	go func() {
		done <- m.deliver(mail, addr)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send alert canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send alert: %w", err)
		}
		m.logger.Info("alert sent", zap.String("subject", subject), zap.Strings("to", mail.To))
		return nil
	}
}

func (m *Mailer) deliver(mail *email.Email, addr string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	err := m.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	return err
}

// Log records alerts in the log when no mail server is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog constructs a Log alerter.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("alert")}
}

// Alert writes the alert at warn level.
func (l *Log) Alert(_ context.Context, subject, body string) error {
	l.logger.Warn("alert", zap.String("subject", subject), zap.String("body", body))
	return nil
}
