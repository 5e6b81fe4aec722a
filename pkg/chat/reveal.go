package chat

import (
	"context"
	"time"
)

const (
	DefaultRevealInterval = 10 * time.Millisecond
	FastRevealInterval    = 2 * time.Millisecond
)

// Reveal walks a complete reply one character (rune) at a time. Each call to
// Next yields a strictly longer prefix until the prefix equals the full text.
type Reveal struct {
	id       string
	full     string
	runes    []rune
	pos      int
	canceled bool
}

// NewReveal prepares a reveal of full under the given message id.
func NewReveal(id, full string) *Reveal {
	return &Reveal{
		id:    id,
		full:  full,
		runes: []rune(full),
	}
}

// ID returns the message id the revealed turn will carry.
func (r *Reveal) ID() string { return r.id }

// Full returns the complete reply.
func (r *Reveal) Full() string { return r.full }

// Next extends the revealed prefix by one character. done is true once the
// prefix equals the full reply; further calls keep returning the full reply.
func (r *Reveal) Next() (prefix string, done bool) {
	if r.canceled {
		return string(r.runes[:r.pos]), true
	}
	if r.pos < len(r.runes) {
		r.pos++
	}
	if r.pos >= len(r.runes) {
		return r.full, true
	}
	return string(r.runes[:r.pos]), false
}

// Done reports whether the reveal finished or was canceled.
func (r *Reveal) Done() bool {
	return r.canceled || r.pos >= len(r.runes)
}

// Cancel stops the reveal. Pending ticks become no-ops.
func (r *Reveal) Cancel() {
	r.canceled = true
}

// Canceled reports whether Cancel was called.
func (r *Reveal) Canceled() bool { return r.canceled }

// Run drives a reveal on a ticker, calling onPrefix from the calling
// goroutine once per tick with each new prefix. It returns nil once the full
// reply has been delivered, or ctx.Err() when canceled first.
func Run(ctx context.Context, r *Reveal, interval time.Duration, onPrefix func(prefix string)) error {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	if len(r.runes) == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		case <-ticker.C:
			prefix, done := r.Next()
			onPrefix(prefix)
			if done {
				return nil
			}
		}
	}
}
