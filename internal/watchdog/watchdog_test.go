package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/pager"
)

// countingAlerter records pages it receives.
type countingAlerter struct {
	mu   sync.Mutex
	reqs []pager.Request
}

func (a *countingAlerter) Page(ctx context.Context, req pager.Request) (pager.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reqs = append(a.reqs, req)
	return pager.Result{Delivered: true, Channel: pager.ChannelFallback}, nil
}

func (a *countingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reqs)
}

func (a *countingAlerter) first() pager.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reqs[0]
}

func eventually(t *testing.T, cond func() bool, within time.Duration, msg string) {
	t.Helper()
	assert.Eventually(t, cond, within, 2*time.Millisecond, msg)
}

func TestFiresOnceThenDisarms(t *testing.T) {
	alerter := &countingAlerter{}
	w := New(alerter, 10*time.Millisecond, 3*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	eventually(t, func() bool { return alerter.count() == 1 }, time.Second, "watchdog should fire")

	// Stays disarmed: no repeat pages while the stall continues.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, alerter.count())

	req := alerter.first()
	assert.Equal(t, "no activity detected", req.Title)
	assert.Equal(t, 1, req.Priority)
}

func TestTouchReArms(t *testing.T) {
	alerter := &countingAlerter{}
	w := New(alerter, 10*time.Millisecond, 3*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	eventually(t, func() bool { return alerter.count() == 1 }, time.Second, "first fire")

	w.Touch()

	eventually(t, func() bool { return alerter.count() == 2 }, time.Second, "re-armed fire")
}

func TestActivityDefersFiring(t *testing.T) {
	alerter := &countingAlerter{}
	w := New(alerter, 40*time.Millisecond, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Keep touching faster than the timeout: nothing should fire.
	for i := 0; i < 10; i++ {
		time.Sleep(10 * time.Millisecond)
		w.Touch()
	}
	assert.Zero(t, alerter.count())
}

func TestNoFireAfterCancellation(t *testing.T) {
	alerter := &countingAlerter{}
	w := New(alerter, time.Millisecond, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, alerter.count())
}

func TestWatchLogTouchesOnWrite(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "training.log")
	require.NoError(t, os.WriteFile(logPath, []byte("start\n"), 0o644))

	alerter := &countingAlerter{}
	w := New(alerter, time.Hour, time.Hour, zap.NewNop())

	// Move last activity far into the past, then verify a log write
	// brings it forward.
	w.mu.Lock()
	w.lastActivity = time.Now().Add(-2 * time.Hour)
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.WatchLog(ctx, logPath)

	// Give the watcher a moment to register.
	time.Sleep(50 * time.Millisecond)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("epoch done\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return time.Since(w.lastActivity) < time.Minute
	}, time.Second, "log write should count as activity")
}
