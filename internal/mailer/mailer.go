package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strconv"
	"strings"
)

var ErrNoRecipient = errors.New("recipient is required")

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender доставляет письма.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSender struct {
	conf SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(conf SMTPConfig) Sender {
	if conf.From == "" {
		conf.From = conf.Username
	}
	return &smtpSender{conf: conf, send: smtp.SendMail}
}

// NewSender picks SMTP when a host is configured and the log sender otherwise.
func NewSender(conf SMTPConfig, logger *log.Logger) Sender {
	if strings.TrimSpace(conf.Host) == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(conf)
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := s.conf.Host + ":" + strconv.Itoa(s.conf.Port)
	var auth smtp.Auth
	if s.conf.Username != "" {
		auth = smtp.PlainAuth("", s.conf.Username, s.conf.Password, s.conf.Host)
	}

	if err := s.send(addr, auth, s.conf.From, []string{msg.To}, compose(s.conf.From, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func compose(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + sanitizeHeader(msg.To) + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", "")
}

type logSender struct {
	logger *log.Logger
}

// NewLogSender пишет письма в лог, когда SMTP не настроен.
func NewLogSender(logger *log.Logger) Sender {
	if logger == nil {
		logger = log.Default()
	}
	return &logSender{logger: logger}
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	s.logger.Printf("[MAIL] to=%s subject=%q", msg.To, msg.Subject)
	return nil
}
