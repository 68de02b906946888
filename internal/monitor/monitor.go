package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sessentry/sessentry/internal/config"
	"github.com/sessentry/sessentry/internal/loginstate"
)

// errBackoff is how long the loop waits after an unexpected iteration failure.
const errBackoff = time.Minute

// stopTimeout bounds how long Stop waits for the loop goroutine to exit.
const stopTimeout = 5 * time.Second

// Monitor periodically evaluates the session and delivers a warning when the
// session is close to expiry. At most one warning fires per cooldown window.
type Monitor struct {
	store   *config.Store
	src     *loginstate.Source
	deliver *Deliverer
	log     *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastFired time.Time
}

// New creates a Monitor. Call [Monitor.Start] to begin checking.
func New(store *config.Store, src *loginstate.Source, deliver *Deliverer, log *slog.Logger) *Monitor {
	return &Monitor{
		store:   store,
		src:     src,
		deliver: deliver,
		log:     log,
	}
}

// Start launches the background check loop. Calling Start while the loop is
// already running is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	m.log.Info("warning monitor started")
}

// Stop cancels the check loop and waits for it to exit, bounded by a short
// timeout. Calling Stop when the loop is not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.log.Warn("warning monitor did not stop in time")
	}
	m.log.Info("warning monitor stopped")
}

// Running reports whether the check loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// run is the check loop. It evaluates immediately, then re-evaluates every
// check interval and whenever the device-info file changes (a fresh login
// resets the online clock, so waiting out the interval would be wrong).
func (m *Monitor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var fileEvents <-chan struct{}
	if w, err := loginstate.NewWatcher(m.src.PrimaryPath()); err == nil {
		defer w.Close()
		fileEvents = w.Events()
		if w.Polling() {
			m.log.Info("watching login state via polling")
		}
	} else {
		m.log.Warn("login state watcher unavailable", "error", err)
	}

	for {
		interval := m.store.Snapshot().CheckInterval()
		if err := m.checkOnce(ctx); err != nil {
			m.log.Error("warning check failed", "error", err)
			interval = errBackoff
		}
		m.deliver.cleanupStaleImages()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-fileEvents:
			timer.Stop()
			m.log.Info("login state changed, re-evaluating")
		}
	}
}

// checkOnce runs a single evaluation and fires the warning when due. A panic
// in the evaluation is converted to an error so one bad iteration cannot
// take the loop down.
func (m *Monitor) checkOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()

	cfg := m.store.Snapshot()
	loginTime, err := m.src.LoginTime()
	if err != nil {
		// No resolvable login time means nothing to warn about.
		m.log.Debug("no login time available", "error", err)
		return nil
	}

	ev := Evaluate(time.Now(), loginTime, cfg.Enabled, cfg.Target, cfg.ThresholdHours, cfg.SessionDurationHours)
	if !ev.Due {
		return nil
	}

	m.mu.Lock()
	cooled := time.Since(m.lastFired) >= warningCooldown
	m.mu.Unlock()
	if !cooled {
		return nil
	}

	text := warningText(ev.OnlineHours, ev.RemainingHours)
	sent, err := m.deliver.Deliver(ctx, cfg.Target, text)
	if sent {
		// The text went out, so the warning counts as fired even when the
		// QR follow-up failed.
		m.mu.Lock()
		m.lastFired = time.Now()
		m.mu.Unlock()
		m.log.Info("warning delivered", "to", cfg.Target,
			"online_hours", fmt.Sprintf("%.1f", ev.OnlineHours),
			"remaining_hours", fmt.Sprintf("%.1f", ev.RemainingHours))
	}
	return err
}

// warningText is the automated warning message body.
func warningText(onlineHours, remainingHours float64) string {
	return fmt.Sprintf("⚠️ 登录状态预警\n\n"+
		"您已持续在线超过%.0f小时，预计%.0f小时内即将掉线。\n\n"+
		"为避免服务中断，请手动扫码重新登录！\n"+
		"稍后将为您发送登录二维码。",
		onlineHours, remainingHours)
}
