package repository

import (
	"time"

	"github.com/okian/merit/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithTimeout bounds every store call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns limits the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxOpen = n
		}
	}
}
