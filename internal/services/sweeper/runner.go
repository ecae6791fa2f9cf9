package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Cleaner removes ledger entries that are past their expiry.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Config struct {
	Tick    time.Duration
	Timeout time.Duration
}

var (
	mRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_sweep_tokens_removed_total", Help: "Expired ledger entries removed by the sweeper",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_sweep_errors_total", Help: "Failed sweep ticks",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "gatekeeper_sweep_duration_seconds", Help: "Sweep tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	log     *zap.Logger
	cleaner Cleaner
	cfg     Config
}

func New(log *zap.Logger, cleaner Cleaner, cfg Config) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Tick {
		cfg.Timeout = cfg.Tick
	}
	return &Runner{log: log.With(zap.String("component", "sweeper")), cleaner: cleaner, cfg: cfg}
}

// tick runs one sweep. A failure is logged and left for the next tick.
func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	defer func() { mLoopDur.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	n, err := r.cleaner.CleanupExpired(ctx)
	if err != nil {
		mErr.Inc()
		r.log.Warn("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		mRemoved.Add(float64(n))
		r.log.Info("expired tokens removed", zap.Int64("count", n))
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
