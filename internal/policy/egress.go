/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"context"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// EgressLimiter throttles the bytes a world session writes back to the
// controlling terminal to the rate configured in a NetRules.EgressBudget,
// and cuts it off once TotalBytes is exhausted for the limiter's lifetime
// (the shell builds a fresh limiter for each world command's output).
// This is the output-stream channel substrate's world backend actually
// implements today; it is not a packet-level network shaper (that needs
// the nftables/stub-resolver machinery spec §4.5.1 describes, which isn't
// built yet), but it is the one place bytes a world session produces
// leave the process, so it is where an egress_budget has something to bite.
type EgressLimiter struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	remaining int64 // bytes left before TotalBytes is exhausted; -1 means unbounded
}

// NewEgressLimiter builds a limiter from budget. It returns nil — meaning
// unrestricted passthrough — when budget is nil or sets no limit at all.
func NewEgressLimiter(budget *EgressBudget) *EgressLimiter {
	if budget == nil || (budget.BytesPerSec <= 0 && budget.TotalBytes <= 0) {
		return nil
	}
	l := &EgressLimiter{remaining: -1}
	if budget.BytesPerSec > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(budget.BytesPerSec), int(budget.BytesPerSec))
	}
	if budget.TotalBytes > 0 {
		l.remaining = budget.TotalBytes
	}
	return l
}

// Wrap returns w unchanged when l is nil; otherwise every Write blocks
// until the token bucket admits it and is truncated (then returns
// io.ErrShortWrite) once the limiter's TotalBytes budget runs out.
func (l *EgressLimiter) Wrap(w io.Writer) io.Writer {
	if l == nil {
		return w
	}
	return &throttledWriter{limiter: l, w: w}
}

type throttledWriter struct {
	limiter *EgressLimiter
	w       io.Writer
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	n, err := t.limiter.admit(len(p))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.ErrShortWrite
	}
	written, werr := t.w.Write(p[:n])
	if werr != nil {
		return written, werr
	}
	if n < len(p) {
		return written, io.ErrShortWrite
	}
	return written, nil
}

// admit returns how many of the requested n bytes the budget allows
// (truncating at what TotalBytes has left), blocking on the per-second
// rate limiter for that many bytes first.
func (l *EgressLimiter) admit(n int) (int, error) {
	l.mu.Lock()
	if l.remaining == 0 {
		l.mu.Unlock()
		return 0, nil
	}
	if l.remaining > 0 && int64(n) > l.remaining {
		n = int(l.remaining)
	}
	if l.remaining > 0 {
		l.remaining -= int64(n)
	}
	l.mu.Unlock()

	if l.limiter != nil && n > 0 {
		// WaitN rejects a request larger than the bucket's burst, so
		// larger writes wait in burst-sized chunks.
		for left := n; left > 0; {
			chunk := left
			if b := l.limiter.Burst(); chunk > b {
				chunk = b
			}
			if err := l.limiter.WaitN(context.Background(), chunk); err != nil {
				return 0, err
			}
			left -= chunk
		}
	}
	return n, nil
}
