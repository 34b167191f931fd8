package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/coral-ai/proctor/internal/i18n"
)

// Watchdog settings for the exam-data arrival check.
const (
	DefaultWatchdogInterval = 5 * time.Second
	DefaultWatchdogChecks   = 12
	watchdogReminderCheck   = 3
)

// RunDataWatchdog periodically checks whether exam data has arrived after
// the session started. A reminder is spoken after the third check; if data
// never arrives, the agent speaks a timeout notice and onTimeout tears the
// session down. Returns as soon as data arrives or ctx is canceled.
func (c *Controller) RunDataWatchdog(ctx context.Context, interval time.Duration, maxChecks int, onTimeout func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for check := 1; check <= maxChecks; check++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if c.DataReceived() {
			return
		}
		slog.Info("exam data check", "check", check, "max", maxChecks, "received", false)

		if check == watchdogReminderCheck {
			c.mu.Lock()
			c.say(ctx, i18n.T(ctx, "WaitingForData"), false)
			c.mu.Unlock()
		}
	}

	if c.DataReceived() {
		return
	}
	slog.Error("exam data never arrived, terminating session")
	c.mu.Lock()
	c.say(ctx, i18n.T(ctx, "DataTimeout"), false)
	c.mu.Unlock()
	if onTimeout != nil {
		onTimeout()
	}
}
