package research

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyagent/voyagent/config"
	"github.com/voyagent/voyagent/errors"
	"github.com/voyagent/voyagent/metrics"
)

// Coordinator tracks one research job end to end: submission over REST,
// live progress over the WebSocket channel, reconnect and fallback
// polling on channel loss, cancellation, and results retrieval.
//
// All job state is mutated on a single event loop goroutine; every
// accessor returns a copy, so readers never observe a half-applied
// transition. Starting a new job supersedes the previous session: the
// old channel is torn down and its state discarded, but the old backend
// job is left to finish on its own.
type Coordinator struct {
	client  *Client
	dialer  Dialer
	cfg     *config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Collector

	mu       sync.RWMutex
	job      Job
	prefs    Preferences
	activity *ActivityLog
	active   bool

	conn   *ConnectionManager
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator wires a coordinator against one backend
func NewCoordinator(client *Client, dialer Dialer, cfg *config.Config, logger *zap.SugaredLogger, collector *metrics.Collector) *Coordinator {
	return &Coordinator{
		client:   client,
		dialer:   dialer,
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
		activity: NewActivityLog(cfg.Activity.LogCapacity),
	}
}

// Start validates the preferences, submits the job, and begins tracking
// it. Any session already in flight is superseded first. The returned
// job is the initial pending snapshot.
//
// The tracking session is detached from ctx: it runs until the job
// reaches a terminal state, Cancel, or Close. ctx only bounds the
// submission call itself.
func (c *Coordinator) Start(ctx context.Context, prefs Preferences) (Job, error) {
	if err := prefs.Validate(); err != nil {
		return Job{}, err
	}

	c.teardown()

	job, err := c.client.Start(ctx, prefs)
	if err != nil {
		return Job{}, errors.Wrap(err, "failed to submit research job")
	}

	c.logger.Infow("Research job submitted",
		"job_id", job.ID,
		"origin", prefs.Origin,
	)

	msgs := make(chan Msg, 16)
	runCtx, cancel := context.WithCancel(context.Background())
	conn := NewConnectionManager(job.ID, c.dialer, c.client, c.cfg.Connection, msgs, c.jobTerminal, c.logger, c.metrics)

	c.mu.Lock()
	c.job = job
	c.prefs = prefs
	c.activity = NewActivityLog(c.cfg.Activity.LogCapacity)
	c.active = true
	c.cancel = cancel
	c.conn = conn
	c.mu.Unlock()

	conn.Run(runCtx)

	c.wg.Add(1)
	go c.loop(runCtx, msgs)

	return job.Clone(), nil
}

// Cancel moves the tracked job to cancelled and stops the session.
// Cancellation is local-first: state flips immediately, then the backend
// is told on a best-effort basis. Calling it with no job in flight or on
// an already terminal job is a no-op.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.mu.Lock()
	if !c.active || c.job.ID == "" || c.job.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	c.job.Status = StatusCancelled
	c.job.CompletedAt = &now
	c.activity.Append(Entry{Timestamp: now, Kind: EntryCancelled, Message: "research cancelled"})
	jobID := c.job.ID
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	c.logger.Infow("Research job cancelled", "job_id", jobID)

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Stop()
	}

	if err := c.client.CancelJob(ctx, jobID); err != nil {
		c.logger.Warnw("Backend cancellation failed, job cancelled locally",
			"job_id", jobID,
			"error", err,
		)
	}
}

// Close tears down the current session without changing job state
func (c *Coordinator) Close() {
	c.teardown()
}

// Job returns a snapshot of the tracked job
func (c *Coordinator) Job() Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job.Clone()
}

// Preferences returns the questionnaire the current job was started with
func (c *Coordinator) Preferences() Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// Activity returns the retained activity log entries, oldest first
func (c *Coordinator) Activity() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activity.Entries()
}

// ActivityOf returns the retained entries matching the given kinds
func (c *Coordinator) ActivityOf(kinds ...EntryKind) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activity.Filter(kinds...)
}

// IsConnected reports whether the live channel is currently open
func (c *Coordinator) IsConnected() bool {
	if conn := c.connManager(); conn != nil {
		return conn.IsConnected()
	}
	return false
}

// ConnectionError returns the most recent channel failure, or nil
func (c *Coordinator) ConnectionError() error {
	if conn := c.connManager(); conn != nil {
		return conn.ConnectionError()
	}
	return nil
}

// Reconnect requests an immediate reconnect with a fresh backoff counter
func (c *Coordinator) Reconnect() {
	if conn := c.connManager(); conn != nil {
		conn.Reconnect()
	}
}

func (c *Coordinator) connManager() *ConnectionManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Results returns the raw results payload for a completed job, fetching
// it over REST if the completed message did not carry it inline.
func (c *Coordinator) Results(ctx context.Context) (json.RawMessage, error) {
	c.mu.RLock()
	job := c.job
	c.mu.RUnlock()

	if job.Status != StatusCompleted {
		return nil, errors.Newf("job %s is %s, results require completion", job.ID, job.Status)
	}
	if job.ResultsAvailable && len(job.Results) > 0 {
		return job.Results, nil
	}

	raw, err := c.client.Results(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.job.ID == job.ID {
		c.job.Results = raw
		c.job.ResultsAvailable = true
	}
	c.mu.Unlock()
	return raw, nil
}

func (c *Coordinator) jobTerminal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job.Status.Terminal()
}

// loop is the single writer for job state and the activity log
func (c *Coordinator) loop(ctx context.Context, msgs <-chan Msg) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			c.apply(msg)
		}
	}
}

func (c *Coordinator) apply(msg Msg) {
	now := time.Now().UTC()

	c.mu.Lock()
	wasTerminal := c.job.Status.Terminal()
	job, entries := Reduce(c.job, msg, now)
	c.job = job
	for _, e := range entries {
		c.activity.Append(e)
	}
	becameTerminal := !wasTerminal && job.Status.Terminal()
	fetchResults := becameTerminal && job.Status == StatusCompleted && !job.ResultsAvailable
	c.mu.Unlock()

	c.metrics.RecordMessage()
	for _, e := range entries {
		if e.Kind == EntryProtocolError {
			c.metrics.RecordProtocolError()
		}
	}

	if becameTerminal {
		c.logger.Infow("Research job reached terminal state",
			"job_id", job.ID,
			"status", job.Status,
		)
		c.wg.Add(1)
		go c.finish(fetchResults)
	}
}

// finish runs once the job turns terminal: it fetches results not
// delivered inline and shuts the live channel down.
func (c *Coordinator) finish(fetchResults bool) {
	defer c.wg.Done()

	if fetchResults {
		timeout := time.Duration(c.cfg.Backend.TimeoutSeconds) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		c.mu.RLock()
		jobID := c.job.ID
		c.mu.RUnlock()

		raw, err := c.client.Results(ctx, jobID)
		if err != nil {
			c.logger.Warnw("Failed to fetch results after completion",
				"job_id", jobID,
				"error", err,
			)
		} else {
			c.mu.Lock()
			if c.job.ID == jobID {
				c.job.Results = raw
				c.job.ResultsAvailable = true
			}
			c.mu.Unlock()
		}
	}

	if conn := c.connManager(); conn != nil {
		conn.Stop()
	}
}

// teardown stops the running session, if any, and waits for its
// goroutines. Job state is left as-is for post-mortem inspection.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	active := c.active
	c.active = false
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()
	if !active {
		return
	}

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Stop()
	}
	c.wg.Wait()
}
