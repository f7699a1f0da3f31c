package service

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mlevan/hearth/internal/config"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

type EmailSender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	cfg config.MailConfig
}

func NewEmailSender(cfg config.MailConfig) EmailSender {
	return &smtpSender{cfg: cfg}
}

// enabled reports whether the sender is usable; invite mail is best-effort
// and skipped entirely when SMTP is not configured.
func (s *smtpSender) enabled() bool {
	return s.cfg.Host != "" && s.cfg.Port != 0 && strings.TrimSpace(s.cfg.From) != ""
}

func (s *smtpSender) Send(to, subject, body string) error {
	if !s.enabled() {
		return appErr.ErrInvalid
	}
	from := strings.TrimSpace(s.cfg.From)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body)
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}
