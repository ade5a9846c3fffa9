package effects

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Observer receives timing callbacks from an Ensemble. ObserveDraw is called
// concurrently from worker goroutines.
type Observer interface {
	ObserveDraw(index int, elapsed time.Duration)
	ObserveRun(draws int, elapsed time.Duration, err error)
}

// Option configures an Ensemble.
type Option func(*Ensemble)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Ensemble) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver attaches an Observer to every run.
func WithObserver(o Observer) Option {
	return func(e *Ensemble) { e.observer = o }
}

// Ensemble evaluates many posterior draws against a shared design matrix.
type Ensemble struct {
	concurrency int
	logger      *slog.Logger
	observer    Observer
}

// NewEnsemble returns an Ensemble running at most concurrency draws at once.
// A concurrency below 1 uses runtime.GOMAXPROCS(0).
func NewEnsemble(concurrency int, opts ...Option) *Ensemble {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	e := &Ensemble{
		concurrency: concurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Concurrency reports the worker limit.
func (e *Ensemble) Concurrency() int {
	return e.concurrency
}

// Run computes one K × len(v) effects matrix per (beta[i], zeta[i]) pair, in
// input order. All inputs are validated before any draw is evaluated; on
// error no results are returned. Inputs are only read.
func (e *Ensemble) Run(ctx context.Context, beta, zeta []*mat.Dense, x *mat.Dense, v []float64) ([]*mat.Dense, error) {
	start := time.Now()
	results, err := e.run(ctx, beta, zeta, x, v)
	if e.observer != nil {
		e.observer.ObserveRun(len(beta), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("posterior predict finished",
		slog.Int("draws", len(beta)),
		slog.Int("values", len(v)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (e *Ensemble) run(ctx context.Context, beta, zeta []*mat.Dense, x *mat.Dense, v []float64) ([]*mat.Dense, error) {
	if err := Validate(beta, zeta, x, v); err != nil {
		return nil, err
	}

	k, _ := beta[0].Dims()
	results := make([]*mat.Dense, len(beta))
	for i := range results {
		results[i] = mat.NewDense(k, len(v), nil)
	}

	e.logger.Debug("posterior predict started",
		slog.Int("draws", len(beta)),
		slog.Int("classes", k),
		slog.Int("values", len(v)),
		slog.Int("concurrency", e.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range beta {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			drawStart := time.Now()
			Predict(results[i], beta[i], zeta[i], x, v)
			if e.observer != nil {
				e.observer.ObserveDraw(i, time.Since(drawStart))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PosteriorPredict evaluates all draws with the given worker limit.
func PosteriorPredict(beta, zeta []*mat.Dense, x *mat.Dense, v []float64, concurrency int) ([]*mat.Dense, error) {
	return NewEnsemble(concurrency).Run(context.Background(), beta, zeta, x, v)
}
