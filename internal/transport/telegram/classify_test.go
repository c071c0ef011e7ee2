package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"forwardbot/internal/transport"
)

func TestClassifyFlood(t *testing.T) {
	t.Parallel()
	flood := &tele.FloodError{
		Error:      tele.NewError(429, "Too Many Requests: retry after 4"),
		RetryAfter: 4,
	}
	got := classify(flood)
	after, ok := transport.AsRateLimited(got)
	if !ok {
		t.Fatalf("expected rate-limit classification, got %v", got)
	}
	if after != 4*time.Second {
		t.Fatalf("RetryAfter = %v, want 4s", after)
	}
}

func TestClassifyPermanentSentinels(t *testing.T) {
	t.Parallel()
	for _, err := range permanentAPIErrors {
		if got := classify(err); !transport.IsPermanent(got) {
			t.Fatalf("classify(%v) = %v, want permanent", err, got)
		}
	}
}

func TestClassifyForbiddenCode(t *testing.T) {
	t.Parallel()
	err := tele.NewError(403, "Forbidden: bot is not a member of the channel chat")
	if got := classify(err); !transport.IsPermanent(got) {
		t.Fatalf("403 should be permanent, got %v", got)
	}
}

func TestClassifyOtherAPIErrorsTransient(t *testing.T) {
	t.Parallel()
	for _, err := range []error{
		tele.NewError(500, "Internal Server Error"),
		tele.NewError(400, "Bad Request: message to forward not found"),
	} {
		if got := classify(err); !transport.IsTransient(got) {
			t.Fatalf("classify(%v) = %v, want transient", err, got)
		}
	}
}

func TestClassifyTimeouts(t *testing.T) {
	t.Parallel()
	if got := classify(context.DeadlineExceeded); !transport.IsTimeout(got) {
		t.Fatalf("deadline should classify as timeout, got %v", got)
	}
	if got := classify(fmt.Errorf("do request: %w", timeoutNetErr{})); !transport.IsTimeout(got) {
		t.Fatalf("net timeout should classify as timeout, got %v", got)
	}
}

func TestClassifyUnknownPassesThrough(t *testing.T) {
	t.Parallel()
	err := errors.New("something odd")
	got := classify(err)
	if got != err {
		t.Fatalf("unknown error should pass through unchanged, got %v", got)
	}
	if transport.Classified(got) {
		t.Fatal("unknown error must stay unclassified")
	}
}

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestCommandName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "/status", want: "status"},
		{in: "/STATUS", want: "status"},
		{in: "/stats@forward_bot", want: "stats"},
		{in: "/channels now please", want: "channels"},
		{in: "/channels@bot now", want: "channels"},
	}
	for _, tt := range tests {
		if got := commandName(tt.in); got != tt.want {
			t.Fatalf("commandName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
