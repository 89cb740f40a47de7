package dedupe

const defaultMaxSize = 50000

// Option configures the cache.
type Option func(*ring)

// WithMaxSize bounds the number of remembered keys. Zero or negative
// means unbounded.
func WithMaxSize(n int) Option {
	return func(c *ring) {
		c.maxSize = n
	}
}
