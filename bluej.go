package bluej

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bluej-social/bluej/algos"
	"github.com/bluej-social/bluej/queue"
	"github.com/bluej-social/bluej/store"
)

type BlueJ struct {
	logger *slog.Logger

	relayHost   string
	cursor      string
	cursorFile  string
	metricsAddr string
	feedAddr    string

	serviceDID   string
	publisherDID string
	hostname     string

	store store.Store
	queue *queue.Queue
	algos *algos.Algos
	seeds *algos.SeedCache
	auth  AuthValidator

	now       func() time.Time
	lastPrune time.Time
	lastHour  int

	eventsCounter *prometheus.CounterVec
}

type Args struct {
	Logger       *slog.Logger
	RelayHost    string
	FeedAddr     string
	MetricsAddr  string
	CursorFile   string
	ServiceDID   string
	PublisherDID string
	Hostname     string

	Store        store.Store
	FollowClient algos.FollowListClient
	Auth         AuthValidator

	// RegisterMetrics controls prometheus registration; leave false in
	// tests to avoid duplicate collectors.
	RegisterMetrics bool
}

func New(ctx context.Context, args *Args) (*BlueJ, error) {
	if args.Logger == nil {
		args.Logger = slog.Default()
	}

	b := &BlueJ{
		logger:       args.Logger,
		relayHost:    args.RelayHost,
		cursorFile:   args.CursorFile,
		metricsAddr:  args.MetricsAddr,
		feedAddr:     args.FeedAddr,
		serviceDID:   args.ServiceDID,
		publisherDID: args.PublisherDID,
		hostname:     args.Hostname,
		store:        args.Store,
		auth:         args.Auth,
		now:          time.Now,
		lastPrune:    time.Now(),
	}

	var requestHist *prometheus.HistogramVec
	queuePrefix := ""
	if args.RegisterMetrics {
		requestHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bluej_feed_request_time",
			Help:    "histogram of feed skeleton request durations",
			Buckets: prometheus.ExponentialBucketsRange(0.0001, 30, 20),
		}, []string{"algo"})

		b.eventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bluej_firehose_events",
			Help: "total firehose operations consumed by category",
		}, []string{"category"})

		queuePrefix = "bluej"
	}

	b.queue = queue.New(&queue.Args{
		Store:                   args.Store,
		Logger:                  args.Logger,
		PrometheusCounterPrefix: queuePrefix,
	})

	b.seeds = algos.NewSeedCache()

	b.algos = algos.New(&algos.Args{
		Store:     args.Store,
		Follows:   args.FollowClient,
		Seeds:     b.seeds,
		Logger:    args.Logger,
		Histogram: requestHist,
	})

	return b, nil
}

func (b *BlueJ) Run(baseCtx context.Context) error {
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	metricsServer := http.NewServeMux()
	metricsServer.Handle("/metrics", promhttp.Handler())

	go func() {
		b.logger.Info("starting metrics server", "addr", b.metricsAddr)
		if err := http.ListenAndServe(b.metricsAddr, metricsServer); err != nil {
			b.logger.Error("metrics server failed", "error", err)
		}
	}()

	feedServer := &http.Server{
		Addr:    b.feedAddr,
		Handler: b.feedRouter(),
	}

	go func() {
		b.logger.Info("starting feed server", "addr", b.feedAddr)
		if err := feedServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("feed server failed", "error", err)
		}
	}()

	b.queue.Start(ctx)
	b.seeds.Start()

	go func(ctx context.Context, cancel context.CancelFunc) {
		b.logger.Info("starting relay consumer", "relayHost", b.relayHost)
		if err := b.startConsumer(ctx, cancel); err != nil {
			b.logger.Error("consumer failed", "error", err)
			cancel()
		}
	}(ctx, cancel)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	b.logger.Info("shutting down")

	if err := feedServer.Shutdown(shutdownCtx); err != nil {
		b.logger.Error("failed to shut down feed server", "error", err)
	}

	// One final drain so anything still queued gets a last attempt.
	b.queue.Drain(shutdownCtx)
	b.queue.Stop()
	b.seeds.Stop()

	b.logger.Info("shutdown complete")

	return nil
}

func (b *BlueJ) countEvent(category string) {
	if b.eventsCounter != nil {
		b.eventsCounter.WithLabelValues(category).Inc()
	}
}
