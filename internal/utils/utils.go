// Package utils holds small helpers shared across packages.
package utils

import (
	"context"
	"strings"
	"time"
)

// WaitFor blocks for d or until ctx is done. sleep performs the actual wait
// and defaults to time.Sleep, which lets tests skip real delays.
func WaitFor(ctx context.Context, d time.Duration, sleep func(time.Duration)) error {
	if d <= 0 {
		return nil
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
