package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"go.uber.org/zap"
)

// Polling defaults.
const (
	DefaultMaxAttempts          = 30
	DefaultPresentationInterval = 5 * time.Second
	DefaultCrawlInterval        = 3 * time.Second
)

// CheckFunc fetches the current status of jobID from the provider.
type CheckFunc[T any] func(ctx context.Context, jobID string) (Status[T], error)

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Options configures a Poll call.
type Options struct {
	Kind        string // job kind used in logs and metrics, e.g. "crawl"
	Interval    time.Duration
	MaxAttempts int
	Logger      *zap.Logger
	Wait        WaitFunc
}

// PresentationOptions returns the polling schedule for presentation generation jobs.
func PresentationOptions(logger *zap.Logger) Options {
	return Options{Kind: "presentation", Interval: DefaultPresentationInterval, MaxAttempts: DefaultMaxAttempts, Logger: logger}
}

// CrawlOptions returns the polling schedule for site crawl jobs.
func CrawlOptions(logger *zap.Logger) Options {
	return Options{Kind: "crawl", Interval: DefaultCrawlInterval, MaxAttempts: DefaultMaxAttempts, Logger: logger}
}

func (o Options) withDefaults() Options {
	if o.Kind == "" {
		o.Kind = "job"
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPresentationInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Wait == nil {
		o.Wait = Sleep
	}
	return o
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FailedError reports a job the provider marked as failed.
type FailedError struct {
	JobID   string
	Message string
}

func (e *FailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// TimeoutError reports a job that was still running after the last permitted attempt.
type TimeoutError struct {
	JobID    string
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish after %d attempts (%s)", e.JobID, e.Attempts, time.Duration(e.Attempts)*e.Interval)
}

// Poll waits Interval, checks the job, and repeats until the job completes, fails, or
// MaxAttempts checks have been made. A check that returns an error counts as an attempt
// and polling continues. The total wait never exceeds MaxAttempts*Interval.
func Poll[T any](ctx context.Context, jobID string, check CheckFunc[T], opts Options) (T, error) {
	var zero T
	opts = opts.withDefaults()
	log := logging.With(ctx, opts.Logger).With(zap.String("job_id", jobID), zap.String("kind", opts.Kind))

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := opts.Wait(ctx, opts.Interval); err != nil {
			telemetry.JobPolls.WithLabelValues(opts.Kind, "cancelled").Inc()
			return zero, err
		}

		status, err := check(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				telemetry.JobPolls.WithLabelValues(opts.Kind, "cancelled").Inc()
				return zero, ctx.Err()
			}
			log.Warn("job status check failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch status.State {
		case Completed:
			log.Info("job completed", zap.Int("attempt", attempt))
			telemetry.JobPolls.WithLabelValues(opts.Kind, "completed").Inc()
			return status.Result, nil
		case Failed:
			log.Warn("job failed", zap.Int("attempt", attempt), zap.String("provider_error", status.Error))
			telemetry.JobPolls.WithLabelValues(opts.Kind, "failed").Inc()
			return zero, &FailedError{JobID: jobID, Message: status.Error}
		default:
			log.Debug("job still running", zap.Int("attempt", attempt), zap.Stringer("state", status.State))
		}
	}

	telemetry.JobPolls.WithLabelValues(opts.Kind, "timeout").Inc()
	return zero, &TimeoutError{JobID: jobID, Attempts: opts.MaxAttempts, Interval: opts.Interval}
}
