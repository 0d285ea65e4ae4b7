package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"passwordless-auth/internal/config"
)

func TestNew_SelectsProvider(t *testing.T) {
	cfg := &config.Config{EmailProvider: "maildev", MailDevHost: "localhost", MailDevPort: 1025, MailFromEmail: "noreply@example.com"}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, ok := d.(*SMTPSender)
	if !ok {
		t.Fatalf("dispatcher = %T, want *SMTPSender", d)
	}
	if s.Addr != "localhost:1025" {
		t.Errorf("Addr = %q", s.Addr)
	}

	cfg.EmailProvider = "sendgrid"
	if _, err := New(cfg); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("sendgrid without key: err = %v, want ErrNotConfigured", err)
	}
	cfg.SendGridAPIKey = "key"
	d, err = New(cfg)
	if err != nil {
		t.Fatalf("New sendgrid: %v", err)
	}
	if _, ok := d.(*SendGridClient); !ok {
		t.Errorf("dispatcher = %T, want *SendGridClient", d)
	}

	cfg.EmailProvider = "carrier-pigeon"
	if _, err := New(cfg); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestSenderAddress(t *testing.T) {
	if got := (Sender{Email: "a@b.c"}).Address(); got != "a@b.c" {
		t.Errorf("Address = %q", got)
	}
	if got := (Sender{Email: "a@b.c", Name: "Creatik Hub"}).Address(); got != `"Creatik Hub" <a@b.c>` {
		t.Errorf("Address = %q", got)
	}
}

func TestPlainText(t *testing.T) {
	got := plainText("<p>Hello</p>\n  <p><strong>123456</strong></p>\n\n")
	if got != "Hello\n123456" {
		t.Errorf("plainText = %q", got)
	}
}

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTPSender("localhost", 1025, Sender{Email: "noreply@example.com", Name: "Example"})
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}
	err := s.Send(context.Background(), Message{To: "user@example.com", Subject: "Hi", HTML: "<p>Body</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "localhost:1025" || gotFrom != "noreply@example.com" {
		t.Errorf("addr=%q from=%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	raw := string(gotMsg)
	for _, want := range []string{
		"From: \"Example\" <noreply@example.com>\r\n",
		"Subject: Hi\r\n",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"<p>Body</p>",
		"@example.com>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPSender_SendError(t *testing.T) {
	s := NewSMTPSender("localhost", 1025, Sender{Email: "noreply@example.com"})
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	if err := s.Send(context.Background(), Message{To: "u@example.com"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s := NewSMTPSender("localhost", 1025, Sender{Email: "noreply@example.com"})
	called := false
	s.send = func(string, smtp.Auth, string, []string, []byte) error { called = true; return nil }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Message{To: "u@example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("send should not be called")
	}
}

func TestTemplates(t *testing.T) {
	tm := Templates{Product: "Creatik Hub", FrontendURL: "http://localhost:3000/", Expiry: 5 * time.Minute}

	if got := tm.MagicLinkURL("a+b/c"); got != "http://localhost:3000/auth/verify?token=a%2Bb%2Fc" {
		t.Errorf("MagicLinkURL = %q", got)
	}

	msg, err := tm.MagicLink("user@example.com", "tok")
	if err != nil {
		t.Fatalf("MagicLink: %v", err)
	}
	if msg.To != "user@example.com" || msg.Subject != "Your Magic Link to Sign In" {
		t.Errorf("msg = %+v", msg)
	}
	if !strings.Contains(msg.HTML, "http://localhost:3000/auth/verify?token=tok") || !strings.Contains(msg.HTML, "5 minutes") {
		t.Errorf("magic link html missing link or expiry: %s", msg.HTML)
	}

	msg, err = tm.OTP("user@example.com", "012345")
	if err != nil {
		t.Fatalf("OTP: %v", err)
	}
	if msg.Subject != "Your One-Time Password" || !strings.Contains(msg.HTML, "012345") {
		t.Errorf("otp msg = %+v", msg)
	}

	msg, err = tm.Welcome("user@example.com", "")
	if err != nil {
		t.Fatalf("Welcome: %v", err)
	}
	if msg.Subject != "Welcome to Creatik Hub!" || !strings.Contains(msg.HTML, "Hi there") {
		t.Errorf("welcome msg = %+v", msg)
	}
}

func TestTemplates_EscapesInput(t *testing.T) {
	tm := Templates{Product: "P", FrontendURL: "http://x"}
	msg, err := tm.Welcome("u@example.com", "<script>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("name should be escaped")
	}
}
