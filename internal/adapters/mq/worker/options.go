package worker

import (
	"time"

	"github.com/okian/merit/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithBackoff sets the base and maximum retry delay.
func WithBackoff(base, max time.Duration) Option {
	return func(w *InMemoryWorker) {
		if base > 0 && max >= base {
			w.baseDelay = base
			w.maxDelay = max
		}
	}
}

// WithResultFunc registers an observer for job outcomes.
func WithResultFunc(f ResultFunc) Option {
	return func(w *InMemoryWorker) {
		w.onResult = f
	}
}
