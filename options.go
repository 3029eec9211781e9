// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uvloop

import "runtime"

// loopOptions holds configuration resolved from Option values at New time.
type loopOptions struct {
	threadPoolSize int
	slowWorkCap    int
	metricsEnabled bool
	logger         *Logger
}

// Option configures a Loop instance.
type Option interface {
	apply(*loopOptions) error
}

type optionFunc func(*loopOptions) error

func (f optionFunc) apply(opts *loopOptions) error { return f(opts) }

// WithThreadPoolSize sets the number of fixed worker goroutines backing the
// thread pool (spec §4.6). Values < 1 are an error. The pool is shared by
// every Loop in the process, so the value is used only if this Loop's
// QueueWork call is the one that creates it.
func WithThreadPoolSize(n int) Option {
	return optionFunc(func(opts *loopOptions) error {
		if n < 1 {
			return &wrappedErrno{errno: INVAL, cause: nil}
		}
		opts.threadPoolSize = n
		return nil
	})
}

// WithSlowWorkCap sets the maximum number of "slow" work items (the
// getaddrinfo/name-lookup class, per spec §4.6) that may occupy worker
// threads concurrently. original_source pins this at 4; override with
// care. Like WithThreadPoolSize, it is used only if this Loop creates the
// shared pool.
func WithSlowWorkCap(n int) Option {
	return optionFunc(func(opts *loopOptions) error {
		if n < 1 {
			return &wrappedErrno{errno: INVAL, cause: nil}
		}
		opts.slowWorkCap = n
		return nil
	})
}

// WithMetrics enables Prometheus-compatible runtime metrics collection
// (tick latency, tick rate, pending and work queue depth, active handle
// count; see metrics.go and metrics_prometheus.go). No worker busy count
// is collected.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	})
}

// WithLogger attaches a structured Logger to this loop instance, overriding
// the package-level global set via SetLogger.
func WithLogger(l *Logger) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.logger = l
		return nil
	})
}

// defaultThreadPoolSize implements the Open Question decision in
// SPEC_FULL.md: runtime.NumCPU() clamped to [2,8], unless overridden by
// WithThreadPoolSize or the UVLOOP_THREADPOOL_SIZE environment variable.
func defaultThreadPoolSize() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	if n > 8 {
		return 8
	}
	return n
}

// resolveOptions applies Option values over a fresh loopOptions, defaulting
// fields left unset.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		threadPoolSize: envOrDefaultThreadPoolSize(),
		slowWorkCap:    4, // original_source src/threadpool.c's hard-coded slow-work cap
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
