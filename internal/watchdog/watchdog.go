// Package watchdog escalates when the supervised loop goes quiet for too
// long.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/pager"
)

// idlePageTitle is the fixed title for idle escalations.
const idlePageTitle = "no activity detected"

// Alerter delivers an escalation. Satisfied by *pager.Pager.
type Alerter interface {
	Page(ctx context.Context, req pager.Request) (pager.Result, error)
}

// Watchdog is a single background timer over one piece of shared state: the
// last-activity timestamp. It fires at most one page per stall; observing
// new activity re-arms it. All state transitions happen under one mutex.
type Watchdog struct {
	alerter Alerter
	timeout time.Duration
	tick    time.Duration
	logger  *zap.Logger

	mu           sync.Mutex
	lastActivity time.Time
	armed        bool

	now func() time.Time // swapped in tests
}

// New creates an armed Watchdog. timeout is the inactivity window; tick is
// how often it is checked.
func New(alerter Alerter, timeout, tick time.Duration, logger *zap.Logger) *Watchdog {
	w := &Watchdog{
		alerter: alerter,
		timeout: timeout,
		tick:    tick,
		logger:  logger.Named("watchdog"),
		armed:   true,
		now:     time.Now,
	}
	w.lastActivity = w.now()
	return w
}

// Touch records activity: the idle window restarts and the watchdog re-arms.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = w.now()
	w.armed = true
}

// Run drives the tick loop until ctx is cancelled. Cancellation is checked
// before acting on a tick, so no escalation fires after shutdown is
// requested even if a tick was already scheduled.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.logger.Info("watchdog running",
		zap.Duration("idle_timeout", w.timeout),
		zap.Duration("tick", w.tick))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopped")
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.checkIdle(ctx)
		}
	}
}

// checkIdle fires one escalation if the idle window has elapsed while armed,
// then disarms until the next Touch.
func (w *Watchdog) checkIdle(ctx context.Context) {
	w.mu.Lock()
	idle := w.now().Sub(w.lastActivity)
	shouldFire := w.armed && idle >= w.timeout
	if shouldFire {
		w.armed = false
	}
	w.mu.Unlock()

	if !shouldFire {
		return
	}

	w.logger.Warn("idle timeout reached, escalating", zap.Duration("idle", idle))

	req := pager.NewRequest(
		idlePageTitle,
		fmt.Sprintf("The supervised loop has produced no activity for %s (timeout %s).",
			idle.Round(time.Second), w.timeout),
		1,
	)
	if _, err := w.alerter.Page(ctx, req); err != nil {
		// Stay disarmed: retrying every tick against a dead pager would
		// just burn the fallback directory. The next activity re-arms.
		w.logger.Error("idle escalation failed", zap.Error(err))
	}
}
