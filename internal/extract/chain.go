package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backdrop/internal/format"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
	"backdrop/internal/workers"
)

// ErrAllStrategiesFailed is returned when no extractor in a chain produced a
// result for a target.
var ErrAllStrategiesFailed = errors.New("all metadata extraction strategies failed")

// Target is the file an extractor is asked about.
type Target struct {
	Path      string
	Format    mediatypes.Format
	Container format.Container
}

// Extractor reads metadata from one family of formats.
type Extractor interface {
	// Name is a short label used in logs and metrics.
	Name() string
	// Accepts reports whether the extractor understands the target.
	Accepts(t Target) bool
	// Extract returns whatever it could read. Fields it could not read are
	// left nil.
	Extract(ctx context.Context, t Target) (*Partial, error)
}

// Chain runs extractors in order, filling each field from the first
// extractor that provides it.
type Chain struct {
	extractors []Extractor
	overwrite  bool
	limiter    *workers.Limiter
}

// Option configures a Chain.
type Option func(*Chain)

// WithOverwrite lets later extractors replace fields earlier ones set. Use it
// for a full recompute.
func WithOverwrite() Option {
	return func(c *Chain) { c.overwrite = true }
}

// WithLimiter bounds concurrent Extract calls across every chain sharing the
// limiter.
func WithLimiter(l *workers.Limiter) Option {
	return func(c *Chain) { c.limiter = l }
}

// NewChain builds a chain from extractors in priority order.
func NewChain(extractors []Extractor, opts ...Option) *Chain {
	c := &Chain{extractors: extractors}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extractors returns the extractor names in order.
func (c *Chain) Extractors() []string {
	names := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		names[i] = e.Name()
	}
	return names
}

// Run feeds target through the chain, merging results into acc. It stops as
// soon as acc is complete. Extractor failures are logged and skipped; if no
// accepting extractor succeeded the result is ErrAllStrategiesFailed. acc
// keeps whatever partial data was found either way.
func (c *Chain) Run(ctx context.Context, target Target, acc *Partial) error {
	succeeded := 0
	var failures []error

	for _, e := range c.extractors {
		if acc.Complete() && !c.overwrite {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Accepts(target) {
			continue
		}

		result, err := c.extract(ctx, e, target)
		if err != nil {
			logging.Debug("Extractor %s failed for %s: %v", e.Name(), target.Path, err)
			failures = append(failures, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}

		succeeded++
		acc.Merge(result, c.overwrite)
	}

	if succeeded == 0 {
		if len(failures) == 0 {
			return fmt.Errorf("%w: no extractor accepts %s", ErrAllStrategiesFailed, target.Format)
		}
		return fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(failures...))
	}
	return nil
}

func (c *Chain) extract(ctx context.Context, e Extractor, target Target) (*Partial, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}

	start := time.Now()
	result, err := safeExtract(ctx, e, target)
	metrics.ExtractorDuration.WithLabelValues(e.Name()).Observe(time.Since(start).Seconds())

	if err == nil && result == nil {
		err = errors.New("extractor returned no result")
	}
	if err != nil {
		metrics.ExtractorAttempts.WithLabelValues(e.Name(), "error").Inc()
		return nil, err
	}
	metrics.ExtractorAttempts.WithLabelValues(e.Name(), "success").Inc()
	return result, nil
}

// safeExtract turns a panic inside a parser into an error so one malformed
// file cannot take down the caller.
func safeExtract(ctx context.Context, e Extractor, target Target) (result *Partial, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return e.Extract(ctx, target)
}
