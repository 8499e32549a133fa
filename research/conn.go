package research

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyagent/voyagent/config"
	"github.com/voyagent/voyagent/errors"
	"github.com/voyagent/voyagent/metrics"
)

// Conn abstracts the WebSocket connection for testability.
// The real implementation wraps gorilla/websocket; tests use a channel pair.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a live channel for one job
type Dialer interface {
	Dial(ctx context.Context, jobID string) (Conn, error)
}

// StatusPoller is the slice of the backend client the fallback poller
// needs.
type StatusPoller interface {
	Status(ctx context.Context, jobID string) (Job, error)
}

// pingMsg is the keepalive frame sent while the channel is quiet
type pingMsg struct {
	Type string `json:"type"`
}

// ConnectionManager owns the live channel for one job: it dials,
// reads frames into the coordinator's message channel, reconnects with
// bounded exponential backoff on loss, and falls back to REST status
// polling once reconnect attempts are exhausted.
//
// A stalled-but-open channel is treated the same as a lost one: if no
// frame arrives within the idle timeout the connection is torn down and
// the normal reconnect path runs.
type ConnectionManager struct {
	jobID    string
	dialer   Dialer
	poller   StatusPoller
	cfg      config.ConnectionConfig
	msgs     chan<- Msg
	terminal func() bool
	logger   *zap.SugaredLogger
	metrics  *metrics.Collector

	mu        sync.Mutex
	connected bool
	connErr   error

	reconnectCh chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewConnectionManager wires a manager for one job. Messages read from
// the channel (and synthesized by the fallback poller) are delivered to
// msgs in arrival order. terminal is consulted before scheduling a
// reconnect so a finished job never reopens the channel.
func NewConnectionManager(
	jobID string,
	dialer Dialer,
	poller StatusPoller,
	cfg config.ConnectionConfig,
	msgs chan<- Msg,
	terminal func() bool,
	logger *zap.SugaredLogger,
	collector *metrics.Collector,
) *ConnectionManager {
	return &ConnectionManager{
		jobID:       jobID,
		dialer:      dialer,
		poller:      poller,
		cfg:         cfg,
		msgs:        msgs,
		terminal:    terminal,
		logger:      logger,
		metrics:     collector,
		reconnectCh: make(chan struct{}, 1),
	}
}

// Run starts the connection loop in its own goroutine
func (m *ConnectionManager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop tears the channel down and waits for the loop to exit
func (m *ConnectionManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// IsConnected reports whether the live channel is currently open
func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ConnectionError returns the most recent connection failure, or nil
// while the channel is healthy.
func (m *ConnectionManager) ConnectionError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connErr
}

// Reconnect requests an immediate reconnect attempt with a fresh
// backoff counter. Safe to call at any time; a duplicate request while
// one is pending is a no-op.
func (m *ConnectionManager) Reconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *ConnectionManager) setConnected() {
	m.mu.Lock()
	m.connected = true
	m.connErr = nil
	m.mu.Unlock()
}

func (m *ConnectionManager) setDisconnected(err error) {
	m.mu.Lock()
	m.connected = false
	m.connErr = err
	m.mu.Unlock()
}

func (m *ConnectionManager) run(ctx context.Context) {
	defer m.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		conn, err := m.dialer.Dial(ctx, m.jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			m.metrics.RecordReconnectAttempt()
			m.setDisconnected(errors.WrapNetwork(err, "failed to open live channel"))
			m.logger.Warnw("Live channel open failed",
				"job_id", m.jobID,
				"attempt", attempt,
				"max_attempts", m.cfg.MaxAttempts,
				"error", err,
			)

			if attempt >= m.cfg.MaxAttempts {
				m.logger.Errorw("Live channel reconnect attempts exhausted, falling back to status polling",
					"job_id", m.jobID,
					"attempts", attempt,
				)
				if !m.awaitManualReconnect(ctx) {
					return
				}
				attempt = 0
				continue
			}

			manual, ok := m.sleepBackoff(ctx, backoffDelay(m.cfg, attempt))
			if !ok {
				return
			}
			if manual {
				attempt = 0
			}
			continue
		}

		attempt = 0
		m.setConnected()
		m.metrics.RecordConnect()
		m.logger.Infow("Live channel established", "job_id", m.jobID)

		err = m.readLoop(ctx, conn)
		conn.Close()
		m.setDisconnected(err)
		m.metrics.RecordDisconnect()

		if ctx.Err() != nil {
			return
		}
		if m.terminal() {
			return
		}
		m.logger.Warnw("Live channel lost, reconnecting",
			"job_id", m.jobID,
			"error", err,
		)
	}
}

// readLoop pumps frames from one open connection into the message
// channel until the connection drops, stalls, or the context ends.
// Frames that fail to parse are surfaced as malformed messages so the
// activity log records them.
func (m *ConnectionManager) readLoop(ctx context.Context, conn Conn) error {
	type frame struct {
		data []byte
		err  error
	}
	frames := make(chan frame, 1)
	go func() {
		for {
			data, err := conn.ReadMessage()
			select {
			case frames <- frame{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.Duration(m.cfg.IdleTimeoutSeconds) * time.Second
	idleTimer := time.NewTimer(idle)
	defer idleTimer.Stop()

	pings := time.NewTicker(idle / 2)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idleTimer.C:
			// Closing unblocks the reader goroutine.
			conn.Close()
			return errors.Wrapf(errors.ErrStall, "no message within %s", idle)

		case <-pings.C:
			if err := conn.WriteJSON(pingMsg{Type: "ping"}); err != nil {
				return errors.WrapNetwork(err, "live channel ping failed")
			}

		case f := <-frames:
			if f.err != nil {
				return errors.WrapNetwork(f.err, "live channel read failed")
			}
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idle)

			msg, err := ParseMsg(f.data)
			if err != nil {
				m.logger.Warnw("Malformed live-channel frame",
					"job_id", m.jobID,
					"error", err,
				)
				msg = Msg{Type: msgMalformed, Message: err.Error()}
			}
			if !m.deliver(ctx, msg) {
				return ctx.Err()
			}
		}
	}
}

// sleepBackoff waits out one backoff delay. A manual reconnect request
// cuts the wait short and reports manual=true so the caller resets its
// attempt counter. ok is false when the context ended instead.
func (m *ConnectionManager) sleepBackoff(ctx context.Context, d time.Duration) (manual, ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, false
	case <-m.reconnectCh:
		m.logger.Infow("Manual reconnect requested", "job_id", m.jobID)
		return true, true
	case <-timer.C:
		return false, true
	}
}

// awaitManualReconnect runs the fallback poller until a manual reconnect
// request arrives. Returns false when the context ended instead.
func (m *ConnectionManager) awaitManualReconnect(ctx context.Context) bool {
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	m.wg.Add(1)
	go m.pollLoop(pollCtx)

	select {
	case <-ctx.Done():
		return false
	case <-m.reconnectCh:
		m.logger.Infow("Manual reconnect requested", "job_id", m.jobID)
		return true
	}
}

// pollLoop fetches job status over REST on a fixed interval while the
// live channel is down. It only surfaces terminal transitions; interim
// progress is not replayed into the activity log. Exits once the
// backend reports a terminal status.
func (m *ConnectionManager) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := time.Duration(m.cfg.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.metrics.RecordPoll()
		job, err := m.poller.Status(ctx, m.jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warnw("Fallback status poll failed",
				"job_id", m.jobID,
				"error", err,
			)
			continue
		}

		switch job.Status {
		case StatusCompleted:
			m.deliver(ctx, Msg{Type: MsgCompleted})
			return
		case StatusFailed:
			m.deliver(ctx, Msg{Type: MsgFailed, Error: job.Error})
			return
		case StatusCancelled:
			// Cancellation is driven locally; nothing to replay.
			return
		default:
			m.logger.Debugw("Fallback status poll",
				"job_id", m.jobID,
				"status", job.Status,
				"percentage", job.ProgressPercentage,
			)
		}
	}
}

func (m *ConnectionManager) deliver(ctx context.Context, msg Msg) bool {
	select {
	case m.msgs <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffDelay computes the wait before reconnect attempt n (1-based):
// base doubled per prior attempt, capped at the configured maximum.
func backoffDelay(cfg config.ConnectionConfig, attempt int) time.Duration {
	base := time.Duration(cfg.BackoffBaseMillis) * time.Millisecond
	maxDelay := time.Duration(cfg.BackoffMaxMillis) * time.Millisecond
	if base <= 0 {
		base = time.Second
	}
	if maxDelay < base {
		maxDelay = base
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
