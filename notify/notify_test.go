package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
)

func emailMessage() goVerify.Message {
	return goVerify.Message{
		Channel:     goVerify.ChannelEmail,
		Destination: "user@example.com",
		Subject:     "Your code",
		Body:        "Your verification code is 482913.\nIt expires in 10 minutes.",
	}
}

func smsMessage() goVerify.Message {
	return goVerify.Message{
		Channel:     goVerify.ChannelSMS,
		Destination: "+15550100",
		Body:        "Code 482913",
	}
}

func TestMuxRoutesByChannel(t *testing.T) {
	var got []goVerify.Channel
	record := goVerify.NotifierFunc(func(_ context.Context, msg goVerify.Message) error {
		got = append(got, msg.Channel)
		return nil
	})

	mux := NewMux().Handle(goVerify.ChannelEmail, record)

	if err := mux.Send(context.Background(), emailMessage()); err != nil {
		t.Fatalf("email send: %v", err)
	}
	if err := mux.Send(context.Background(), smsMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected ErrNotifierUnavailable for unrouted sms, got %v", err)
	}
	if len(got) != 1 || got[0] != goVerify.ChannelEmail {
		t.Fatalf("unexpected deliveries %v", got)
	}

	mux.Handle(goVerify.ChannelEmail, nil)
	if err := mux.Send(context.Background(), emailMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected route removal, got %v", err)
	}

	var zero Mux
	if err := zero.Send(context.Background(), emailMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected zero mux to be unavailable, got %v", err)
	}
}

func TestSMTPNotifierComposesMessage(t *testing.T) {
	n, err := NewSMTPNotifier("mail.example.com:587", "noreply@example.com", "user", "pass")
	if err != nil {
		t.Fatalf("NewSMTPNotifier: %v", err)
	}
	if n.Auth == nil {
		t.Fatal("expected plain auth for a username")
	}

	var gotTo []string
	var gotMsg []byte
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "mail.example.com:587" || from != "noreply@example.com" {
			t.Errorf("unexpected relay %s from %s", addr, from)
		}
		gotTo = to
		gotMsg = msg
		return nil
	}

	if err := n.Send(context.Background(), emailMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	body := string(gotMsg)
	for _, want := range []string{"Subject: Your code\r\n", "To: user@example.com\r\n", "482913.\r\nIt expires"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in message:\n%s", want, body)
		}
	}
}

func TestSMTPNotifierRejects(t *testing.T) {
	if _, err := NewSMTPNotifier("no-port", "a@b.c", "", ""); err == nil {
		t.Fatal("expected invalid address error")
	}
	if _, err := NewSMTPNotifier("h:25", " ", "", ""); err == nil {
		t.Fatal("expected missing sender error")
	}

	n, _ := NewSMTPNotifier("h:25", "a@b.c", "", "")
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not run")
		return nil
	}

	if err := n.Send(context.Background(), smsMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected ErrNotifierUnavailable for sms, got %v", err)
	}
	msg := emailMessage()
	msg.Subject = "hi\r\nBcc: victim@example.com"
	if err := n.Send(context.Background(), msg); err == nil {
		t.Fatal("expected header injection to be rejected")
	}
}

func TestSMTPNotifierHonoursContext(t *testing.T) {
	n, _ := NewSMTPNotifier("h:25", "a@b.c", "", "")
	release := make(chan struct{})
	defer close(release)
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Send(ctx, emailMessage()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPSMSNotifierSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body smsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Route != "otp" || body.Numbers != "15550100" || body.Message != "Code 482913" || body.Sender != "VERIFY" {
			t.Errorf("unexpected body %+v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewHTTPSMSNotifier("test-api-key", server.URL, "VERIFY")
	if err := n.Send(context.Background(), smsMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestHTTPSMSNotifierFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewHTTPSMSNotifier("key", server.URL, "")
	err := n.Send(context.Background(), smsMessage())
	if err == nil || errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("expected status in error, got %v", err)
	}

	if err := n.Send(context.Background(), emailMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected ErrNotifierUnavailable for email, got %v", err)
	}
	if err := NewHTTPSMSNotifier("", server.URL, "").Send(context.Background(), smsMessage()); !errors.Is(err, goVerify.ErrNotifierUnavailable) {
		t.Fatalf("expected ErrNotifierUnavailable without api key, got %v", err)
	}
}

func TestLogNotifierNeverLogsBody(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	if err := n.Send(context.Background(), emailMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "482913") {
		t.Fatalf("log leaked the code: %s", out)
	}
	if !strings.Contains(out, "user@example.com") {
		t.Fatalf("expected destination in log: %s", out)
	}
}
