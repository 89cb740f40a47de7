package service

import (
	"time"

	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/internal/domain/dedupe"
	"github.com/okian/merit/internal/domain/league"
	"github.com/okian/merit/internal/domain/ranking"
	"github.com/okian/merit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRules installs a compiled rules snapshot instead of DefaultRules.
func WithRules(rs *config.RuleSet) Option {
	return func(s *Service) {
		if rs != nil {
			s.initialRules = rs
		}
	}
}

// WithLocation sets the timezone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLeagueConfig sets the league assignment parameters.
func WithLeagueConfig(cfg league.Config) Option {
	return func(s *Service) {
		s.leagueCfg = cfg
	}
}

// WithRankingConfig sets the leaderboard bias parameters.
func WithRankingConfig(cfg ranking.Config) Option {
	return func(s *Service) {
		s.rankCfg = cfg
	}
}

// WithEligibility overrides the store-backed eligibility filter.
func WithEligibility(e ranking.Eligibility) Option {
	return func(s *Service) {
		if e != nil {
			s.eligibility = e
		}
	}
}

// WithDedupeSize sets the size of the committed source key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupe replaces the committed source key cache.
func WithDedupe(c dedupe.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.dedupe = c
		}
	}
}

// WithQueueSize sets the maximum size of the async award queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of award workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithAwardRetries sets how often a worker retries a transient failure.
func WithAwardRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithMaxLeaderboardLimit caps leaderboard page sizes.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}
