// Package queue provides the retryable write queue between the indexer and
// the graph store. Mutations execute immediately; failures classified as
// transient are re-queued with a bounded retry budget and re-submitted on a
// fixed drain interval. Exhausted mutations are logged and dropped — there
// is no dead-letter persistence.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bluej-social/bluej/store"
)

const (
	DefaultRetryBudget   = 10
	DefaultDrainInterval = 5 * time.Second
)

// Execer is the slice of the store the queue needs.
type Execer interface {
	Exec(ctx context.Context, m store.Mutation) error
}

type queued struct {
	m       store.Mutation
	retries int
}

type Queue struct {
	store    Execer
	logger   *slog.Logger
	budget   int
	interval time.Duration

	// retryable decides whether a failed mutation is worth re-queueing.
	retryable func(error) bool

	mu    sync.Mutex
	items []queued

	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once

	execsCounter *prometheus.CounterVec
	depthGauge   prometheus.Gauge
}

type Args struct {
	Store    Execer
	Logger   *slog.Logger
	Budget   int
	Interval time.Duration

	// Retryable overrides the retry classifier. The default treats every
	// failure as transient.
	Retryable func(error) bool

	// PrometheusCounterPrefix registers metrics when non-empty.
	PrometheusCounterPrefix string
}

func New(args *Args) *Queue {
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	if args.Budget <= 0 {
		args.Budget = DefaultRetryBudget
	}
	if args.Interval <= 0 {
		args.Interval = DefaultDrainInterval
	}
	if args.Retryable == nil {
		args.Retryable = func(error) bool { return true }
	}

	q := &Queue{
		store:     args.Store,
		logger:    args.Logger,
		budget:    args.Budget,
		interval:  args.Interval,
		retryable: args.Retryable,
		stop:      make(chan struct{}),
	}

	if args.PrometheusCounterPrefix != "" {
		q.execsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "mutation_execs",
			Namespace: args.PrometheusCounterPrefix,
			Help:      "total mutation executions by status",
		}, []string{"status"})

		q.depthGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "retry_queue_depth",
			Namespace: args.PrometheusCounterPrefix,
			Help:      "mutations currently waiting for a retry tick",
		})
	} else {
		args.Logger.Info("no prometheus prefix provided, no metrics will be registered for this queue")
	}

	return q
}

// Submit executes the mutation with the default retry budget.
func (q *Queue) Submit(ctx context.Context, m store.Mutation) {
	q.submit(ctx, m, q.budget)
}

func (q *Queue) submit(ctx context.Context, m store.Mutation, retries int) {
	err := q.store.Exec(ctx, m)
	if err == nil {
		q.count("ok")
		return
	}

	if q.retryable(err) && retries > 0 {
		q.mu.Lock()
		q.items = append(q.items, queued{m: m, retries: retries - 1})
		depth := len(q.items)
		q.mu.Unlock()

		if q.depthGauge != nil {
			q.depthGauge.Set(float64(depth))
		}
		q.count("requeued")
		q.logger.Warn("mutation failed, retrying later", "mutation", m.Name, "retries_remaining", retries-1, "error", err)
		return
	}

	q.count("dropped")
	q.logger.Error("mutation failed, giving up", "mutation", m.Name, "error", err)
}

// Start launches the drain ticker. Stop must be called to release it.
func (q *Queue) Start(ctx context.Context) {
	q.ticker = time.NewTicker(q.interval)
	go func() {
		for {
			select {
			case <-q.ticker.C:
				q.Drain(ctx)
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		if q.ticker != nil {
			q.ticker.Stop()
		}
		close(q.stop)
	})
}

// Drain re-submits every currently queued mutation exactly once. Mutations
// that fail again re-queue through the same path and wait for a later tick.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	if q.depthGauge != nil {
		q.depthGauge.Set(0)
	}

	for _, it := range items {
		q.submit(ctx, it.m, it.retries)
	}
}

// Depth reports the number of mutations waiting for the next tick.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) count(status string) {
	if q.execsCounter != nil {
		q.execsCounter.WithLabelValues(status).Inc()
	}
}
