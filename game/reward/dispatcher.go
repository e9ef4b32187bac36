package reward

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15/v3"
	"github.com/jpillora/backoff"
)

var (
	ErrQueueFull = errors.New("reward queue is full")
	ErrRejected  = errors.New("transfer rejected")
)

const (
	defaultQueueSize      = 256
	defaultMaxAttempts    = 5
	defaultMinBackoff     = 200 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
	defaultAttemptTimeout = 10 * time.Second
	maxRecentResults      = 100
)

// Incrementer performs one wallet transfer. RoyaleClient is the production
// implementation.
type Incrementer interface {
	Increment(ctx context.Context, userID string, amount float64, reason, nonce string) (bool, error)
}

// Payout is one queued transfer. Nonce stays the same across retries.
type Payout struct {
	UserID   string    `json:"user_id"`
	Amount   float64   `json:"amount"`
	Reason   string    `json:"reason"`
	Nonce    string    `json:"nonce"`
	QueuedAt time.Time `json:"queued_at"`
}

// Result records how a payout ended
type Result struct {
	Payout   Payout `json:"payout"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Stats summarizes dispatcher activity
type Stats struct {
	Queued  int64    `json:"queued"`
	Sent    int64    `json:"sent"`
	Failed  int64    `json:"failed"`
	Dropped int64    `json:"dropped"`
	Pending int      `json:"pending"`
	Recent  []Result `json:"recent"`
}

// Dispatcher pays out asynchronously. Increment only enqueues; a worker
// started with Run performs the transfers with bounded, backed-off retries.
type Dispatcher struct {
	client Incrementer
	queue  chan Payout
	logger log15.Logger

	maxAttempts    int
	minBackoff     time.Duration
	maxBackoff     time.Duration
	attemptTimeout time.Duration

	queued  atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64

	mu     sync.Mutex
	recent []Result
	held   []Payout
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithQueueSize bounds the number of pending payouts
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.queue = make(chan Payout, n) }
}

// WithRetry sets the attempt limit and the backoff range between attempts
func WithRetry(maxAttempts int, min, max time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxAttempts = maxAttempts
		d.minBackoff = min
		d.maxBackoff = max
	}
}

// WithAttemptTimeout caps a single transfer attempt
func WithAttemptTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.attemptTimeout = t }
}

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(l log15.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher sending transfers through client
func NewDispatcher(client Incrementer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:         client,
		queue:          make(chan Payout, defaultQueueSize),
		maxAttempts:    defaultMaxAttempts,
		minBackoff:     defaultMinBackoff,
		maxBackoff:     defaultMaxBackoff,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log15.New("module", "reward")
	}
	if d.maxAttempts < 1 {
		d.maxAttempts = 1
	}
	return d
}

// Increment queues a payout for userID. It never blocks; a full queue drops
// the payout and logs it.
func (d *Dispatcher) Increment(userID string, amount float64, reason string) {
	p := Payout{
		UserID:   userID,
		Amount:   amount,
		Reason:   reason,
		Nonce:    uuid.NewString(),
		QueuedAt: time.Now(),
	}
	if err := d.Enqueue(p); err != nil {
		d.logger.Error("payout dropped", "user", userID, "amount", amount, "nonce", p.Nonce, "err", err)
	}
}

// Enqueue adds p to the queue without blocking
func (d *Dispatcher) Enqueue(p Payout) error {
	if p.Nonce == "" {
		p.Nonce = uuid.NewString()
	}
	select {
	case d.queue <- p:
		d.queued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		d.record(Result{Payout: p, Error: ErrQueueFull.Error()})
		return ErrQueueFull
	}
}

// Run delivers queued payouts until ctx is canceled. An attempt in flight at
// cancellation runs to completion; a payout waiting to be retried goes back
// to the queue for Drain.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("reward dispatcher started", "max_attempts", d.maxAttempts)
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case p := <-d.queue:
			if ctx.Err() != nil {
				d.requeue(p)
				return nil
			}
			d.deliver(ctx, context.WithoutCancel(ctx), p)
		}
	}
}

// Drain delivers whatever is still queued, giving up when ctx expires.
// It returns the number of payouts left undelivered.
func (d *Dispatcher) Drain(ctx context.Context) int {
	for {
		if ctx.Err() != nil {
			left := d.pending()
			if left > 0 {
				d.logger.Warn("reward queue not drained", "pending", left)
			}
			return left
		}
		p, ok := d.next()
		if !ok {
			return 0
		}
		d.deliver(ctx, ctx, p)
	}
}

// Stats returns counters and the most recent results
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	recent := make([]Result, len(d.recent))
	copy(recent, d.recent)
	d.mu.Unlock()

	return Stats{
		Queued:  d.queued.Load(),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
		Pending: d.pending(),
		Recent:  recent,
	}
}

// deliver tries p until it succeeds, fails for good or ctx is canceled. Each
// attempt runs under attemptParent, so Run can let the last one finish after
// shutdown starts. Cancellation of ctx puts p back in the queue.
func (d *Dispatcher) deliver(ctx, attemptParent context.Context, p Payout) {
	b := &backoff.Backoff{
		Min:    d.minBackoff,
		Max:    d.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	attempts := 0
	for attempts < d.maxAttempts {
		attempts++

		attemptCtx, cancel := context.WithTimeout(attemptParent, d.attemptTimeout)
		ok, err := d.client.Increment(attemptCtx, p.UserID, p.Amount, p.Reason, p.Nonce)
		cancel()

		if err == nil && ok {
			d.sent.Add(1)
			d.record(Result{Payout: p, Success: true, Attempts: attempts})
			d.logger.Info("payout sent", "user", p.UserID, "amount", p.Amount, "nonce", p.Nonce, "attempts", attempts)
			return
		}
		if err == nil {
			err = ErrRejected
		}
		lastErr = err

		if !retryable(err) || attempts == d.maxAttempts {
			break
		}

		wait := b.Duration()
		d.logger.Warn("payout attempt failed", "user", p.UserID, "nonce", p.Nonce, "attempt", attempts, "retry_in", wait, "err", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.requeue(p)
			d.logger.Info("payout retry deferred", "user", p.UserID, "nonce", p.Nonce, "attempts", attempts)
			return
		case <-timer.C:
		}
	}

	d.failed.Add(1)
	d.record(Result{Payout: p, Attempts: attempts, Error: lastErr.Error()})
	d.logger.Error("payout failed", "user", p.UserID, "amount", p.Amount, "nonce", p.Nonce, "attempts", attempts, "err", lastErr)
}

// requeue puts p back without blocking. The nonce is kept, so a later
// attempt cannot pay twice.
func (d *Dispatcher) requeue(p Payout) {
	select {
	case d.queue <- p:
	default:
		d.mu.Lock()
		d.held = append(d.held, p)
		d.mu.Unlock()
	}
}

// next returns a held payout first, then one from the queue.
func (d *Dispatcher) next() (Payout, bool) {
	d.mu.Lock()
	if len(d.held) > 0 {
		p := d.held[0]
		d.held = d.held[1:]
		d.mu.Unlock()
		return p, true
	}
	d.mu.Unlock()

	select {
	case p := <-d.queue:
		return p, true
	default:
		return Payout{}, false
	}
}

func (d *Dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + len(d.held)
}

func (d *Dispatcher) record(r Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recent = append(d.recent, r)
	if len(d.recent) > maxRecentResults {
		d.recent = d.recent[len(d.recent)-maxRecentResults:]
	}
}

// retryable reports whether a failed transfer is worth another attempt.
// Client errors other than rate limiting will fail the same way again.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrRejected) && !errors.Is(err, ErrInvalidAmount)
}

// DryRun stands in for the wallet API when no key is configured: it logs the
// transfer and reports success.
type DryRun struct {
	Logger log15.Logger
}

func (d DryRun) Increment(_ context.Context, userID string, amount float64, reason, nonce string) (bool, error) {
	logger := d.Logger
	if logger == nil {
		logger = log15.New("module", "reward")
	}
	logger.Info("dry-run payout", "user", userID, "amount", amount, "reason", reason, "nonce", nonce)
	return true, nil
}
