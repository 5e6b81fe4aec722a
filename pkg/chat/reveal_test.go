package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestReveal_PrefixesGrowToFullReply(t *testing.T) {
	full := "Bonjour 👋 || ¡Hola!"
	r := NewReveal("stream-1", full)

	var prefixes []string
	for i := 0; i < 100; i++ {
		prefix, done := r.Next()
		prefixes = append(prefixes, prefix)
		if done {
			break
		}
	}

	if got := prefixes[len(prefixes)-1]; got != full {
		t.Fatalf("Expected final prefix %q, got %q", full, got)
	}
	if len(prefixes) != len([]rune(full)) {
		t.Errorf("Expected one step per character (%d), got %d", len([]rune(full)), len(prefixes))
	}

	prevLen := 0
	for _, p := range prefixes {
		if p == "" {
			t.Fatal("Intermediate prefix must not be empty")
		}
		if !strings.HasPrefix(full, p) {
			t.Fatalf("%q is not a prefix of %q", p, full)
		}
		if len(p) <= prevLen {
			t.Fatalf("Prefix length must strictly increase, got %d after %d", len(p), prevLen)
		}
		prevLen = len(p)
	}
}

func TestReveal_NextAfterDoneKeepsFull(t *testing.T) {
	r := NewReveal("s", "ab")
	r.Next()
	r.Next()
	prefix, done := r.Next()
	if !done || prefix != "ab" {
		t.Errorf("Expected (ab, true), got (%q, %v)", prefix, done)
	}
}

func TestReveal_EmptyReplyCompletesImmediately(t *testing.T) {
	r := NewReveal("s", "")
	if !r.Done() {
		t.Error("Expected empty reveal to be done")
	}
	prefix, done := r.Next()
	if !done || prefix != "" {
		t.Errorf("Expected (\"\", true), got (%q, %v)", prefix, done)
	}
}

func TestReveal_Cancel(t *testing.T) {
	r := NewReveal("s", "abcdef")
	r.Next()
	r.Cancel()

	prefix, done := r.Next()
	if !done {
		t.Error("Expected canceled reveal to report done")
	}
	if prefix != "a" {
		t.Errorf("Expected canceled reveal to stop at %q, got %q", "a", prefix)
	}
	if !r.Canceled() {
		t.Error("Expected Canceled() to be true")
	}
}

func TestRun_DeliversEveryPrefixInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, interval := range []time.Duration{FastRevealInterval, DefaultRevealInterval} {
		full := "Hola, ¿qué tal?"
		var got []string
		err := Run(context.Background(), NewReveal("s", full), interval, func(prefix string) {
			got = append(got, prefix)
		})
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if len(got) != len([]rune(full)) {
			t.Fatalf("interval %v: expected %d callbacks, got %d", interval, len([]rune(full)), len(got))
		}
		if got[len(got)-1] != full {
			t.Errorf("interval %v: expected final %q, got %q", interval, full, got[len(got)-1])
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReveal("s", strings.Repeat("x", 10000))
	calls := 0

	err := Run(ctx, r, time.Millisecond, func(string) {
		calls++
		if calls == 3 {
			cancel()
		}
	})

	if err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !r.Canceled() {
		t.Error("Expected reveal to be canceled")
	}
	if calls >= 10000 {
		t.Error("Expected reveal to stop early")
	}
}
