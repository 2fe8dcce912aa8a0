package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bmir-radx/harmonization-framework/internal/harmonize"
)

// IDGenerator generates job ids.
// Implemented by UUIDv7Generator (production) and testutil.SequenceGenerator
// (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 job ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Orchestrator accepts harmonize requests and runs each on its own
// goroutine.
//
// By default concurrency is unbounded. WithMaxConcurrent bounds the number
// of running jobs; excess jobs stay queued until a slot frees. Running jobs
// cannot be cancelled.
type Orchestrator struct {
	store   *Store
	ids     IDGenerator
	sem     *semaphore.Weighted
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIDGenerator sets the job id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = g
	}
}

// WithMaxConcurrent bounds the number of running jobs. n <= 0 means
// unbounded.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		} else {
			o.sem = nil
		}
	}
}

// WithMetrics records job metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock sets the time source for job timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator with its own job store.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.store = NewStore(o.now)
	return o
}

// Store returns the job store.
func (o *Orchestrator) Store() *Store { return o.store }

// Submit validates params, registers a queued job and starts its worker.
// A validation failure is the only error; everything later is reported
// through the job.
func (o *Orchestrator) Submit(params HarmonizeParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", NewError(CodeValidation, err.Error(), nil)
	}

	id := o.ids.Generate()
	if err := o.store.Register(id, params.OutputFilePath, params.ReplayLogFilePath); err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}
	o.metrics.jobSubmitted()
	o.logger.Info("job accepted", "job_id", id, "mode", params.Mode)

	o.wg.Add(1)
	go o.work(id, params)
	return id, nil
}

// Get returns a snapshot of the job, or a JOB_NOT_FOUND error.
func (o *Orchestrator) Get(id string) (Job, error) {
	job, ok := o.store.Get(id)
	if !ok {
		return Job{}, NewError(CodeJobNotFound, "Job not found: "+id, map[string]any{"job_id": id})
	}
	return job, nil
}

// Wait blocks until every submitted job has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) work(id string, params HarmonizeParams) {
	defer o.wg.Done()

	if o.sem != nil {
		if err := o.sem.Acquire(context.Background(), 1); err != nil {
			o.store.Fail(id, AsError(err))
			return
		}
		defer o.sem.Release(1)
	}

	logger := o.logger.With("job_id", id)
	o.store.Start(id)
	o.metrics.jobStarted()
	started := o.now()

	result, err := o.execute(id, params, logger)
	elapsed := o.now().Sub(started)
	if err != nil {
		jerr := AsError(err)
		o.store.Fail(id, jerr)
		o.metrics.jobFinished(StatusFailed, elapsed)
		logger.Warn("job failed", "code", jerr.Code, "message", jerr.Message)
		return
	}
	o.store.Complete(id, result)
	o.metrics.jobFinished(StatusCompleted, elapsed)
	logger.Info("job completed", "output_path", result.OutputPath, "elapsed", elapsed)
}

func (o *Orchestrator) execute(id string, params HarmonizeParams, logger *slog.Logger) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(CodeHarmonizationFailed, "%v", r)
		}
	}()
	return Execute(params,
		harmonize.WithLogger(logger),
		harmonize.WithProgress(func(processed, total int) {
			o.store.UpdateProgress(id, processed, total)
		}),
	)
}
