package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeGenerator struct {
	reply   string
	err     error
	delay   time.Duration
	system  string
	message string
	calls   int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	f.calls++
	f.system, f.message = system, message
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeGenerator) Model() string { return "fake" }

func TestReply(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "  Start with IELTS preparation.  "}
	svc := New(gen, time.Second, zap.NewNop())

	got, err := svc.Reply(context.Background(), "  How do I apply to Canada?  ")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if got != "Start with IELTS preparation." {
		t.Fatalf("reply = %q", got)
	}
	if gen.message != "How do I apply to Canada?" {
		t.Fatalf("message sent = %q", gen.message)
	}
	if gen.system == "" {
		t.Fatal("system instruction not sent")
	}
}

func TestReplyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gen     *fakeGenerator
		message string
		want    error
	}{
		{name: "empty message", gen: &fakeGenerator{}, message: "   ", want: ErrEmptyMessage},
		{name: "generator error", gen: &fakeGenerator{err: errors.New("unavailable")}, message: "hi", want: ErrReplyFailed},
		{name: "empty reply", gen: &fakeGenerator{reply: " "}, message: "hi", want: ErrReplyFailed},
		{name: "timeout", gen: &fakeGenerator{reply: "late", delay: time.Second}, message: "hi", want: ErrReplyFailed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.WarnLevel)
			svc := New(tt.gen, 20*time.Millisecond, zap.New(core))

			_, err := svc.Reply(context.Background(), tt.message)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.want == ErrEmptyMessage && tt.gen.calls != 0 {
				t.Fatal("generator must not be called for an empty message")
			}
			if tt.name == "generator error" && logs.FilterMessage("chat reply failed").Len() != 1 {
				t.Fatalf("expected a warning log, got %v", logs.All())
			}
		})
	}
}

func TestReplyTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "ok"}
	svc := New(gen, 0, nil)

	if _, err := svc.Reply(context.Background(), strings.Repeat("é", maxMessageRunes+10)); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if n := len([]rune(gen.message)); n != maxMessageRunes {
		t.Fatalf("sent %d runes, want %d", n, maxMessageRunes)
	}
}
