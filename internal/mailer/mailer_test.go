package mailer

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPSenderComposesMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte

	s := NewSMTPSender(SMTPConfig{Host: "smtp.local", Port: 2525, Username: "bot@local", Password: "pw"}).(*smtpSender)
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	msg, err := ResetOTP("user@example.com", ResetOTPData{Name: "Ann", Code: "123456", TTL: "10m0s"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "smtp.local:2525" || gotFrom != "bot@local" || len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("unexpected envelope: %s %s %v", gotAddr, gotFrom, gotTo)
	}
	body := string(gotBody)
	if !strings.Contains(body, "Subject: Password reset code\r\n") || !strings.Contains(body, "<b>123456</b>") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestSMTPSenderWrapsFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.local", Port: 25, From: "a@b.c"}).(*smtpSender)
	boom := errors.New("connection refused")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := s.Send(context.Background(), Message{To: "x@y.z", Subject: "s"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := s.Send(context.Background(), Message{}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestHeaderInjectionIsStripped(t *testing.T) {
	raw := string(compose("a@b.c", Message{To: "x@y.z", Subject: "hi\r\nBcc: evil@x.y"}))
	if strings.Contains(raw, "\r\nBcc:") {
		t.Fatalf("header injection survived: %q", raw)
	}
}

func TestTemplatesEscapeInput(t *testing.T) {
	msg, err := TaskUpdate("x@y.z", TaskUpdateData{TaskID: "1", Title: "Fix", Summary: "status changed to COMPLETED", Comment: "<script>"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(msg.Body, "<script>") {
		t.Fatalf("comment not escaped: %s", msg.Body)
	}
	if msg.Subject != "Task update: Fix" {
		t.Fatalf("subject = %q", msg.Subject)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(log.New(&buf, "", 0))
	if err := s.Send(context.Background(), Message{To: "x@y.z", Subject: "Hello"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "to=x@y.z") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	if _, ok := NewSender(SMTPConfig{}, nil).(*logSender); !ok {
		t.Fatal("expected log sender without SMTP host")
	}
	if _, ok := NewSender(SMTPConfig{Host: "smtp.example.com", Port: 587}, nil).(*smtpSender); !ok {
		t.Fatal("expected smtp sender")
	}
}
