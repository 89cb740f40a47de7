// Package service orchestrates the merit engine: the award transaction,
// streaks, seasons, league assignment and leaderboards. It implements the
// dependencies required by the HTTP API and the admin CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/merit/internal/adapters/mq/queue"
	"github.com/okian/merit/internal/adapters/mq/worker"
	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/internal/domain/caps"
	"github.com/okian/merit/internal/domain/dedupe"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/league"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/ranking"
	"github.com/okian/merit/internal/domain/types"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 100_000
	defaultRetries    = 5
	defaultMaxLimit   = 100
)

// snapshot is one immutable generation of the rules catalog.
type snapshot struct {
	rules    *config.RuleSet
	enforcer *caps.Enforcer
	version  int64
}

// Service implements the merit engine on top of a Store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	eligibility ranking.Eligibility
	dedupe      dedupe.Cache
	rules       atomic.Pointer[snapshot]
	queue       queue.Queue
	pool        *worker.Pool
	cancelPool  context.CancelFunc

	// Configuration
	initialRules *config.RuleSet
	loc          *time.Location
	now          func() time.Time
	leagueCfg    league.Config
	rankCfg      ranking.Config
	workerCount  int
	queueSize    int
	dedupeSize   int
	retries      int
	maxLimit     int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service over store. Without WithRules the built-in
// catalog is used.
func New(store repository.Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:       store,
		eligibility: store,
		loc:         time.UTC,
		now:         time.Now,
		leagueCfg:   league.DefaultConfig(),
		rankCfg:     ranking.DefaultConfig(),
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		retries:     defaultRetries,
		maxLimit:    defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.leagueCfg.Validate(); err != nil {
		return nil, err
	}
	if s.dedupe == nil {
		s.dedupe = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	}
	rs := s.initialRules
	if rs == nil {
		var err error
		if rs, err = config.DefaultRules().Compile(); err != nil {
			return nil, fmt.Errorf("compile default rules: %w", err)
		}
	}
	s.install(rs)
	return s, nil
}

func (s *Service) install(rs *config.RuleSet) int64 {
	var version int64 = 1
	if cur := s.rules.Load(); cur != nil {
		version = cur.version + 1
	}
	s.rules.Store(&snapshot{
		rules:    rs,
		enforcer: caps.NewEnforcer(rs.Caps, s.loc),
		version:  version,
	})
	return version
}

// ReloadRules compiles r and atomically replaces the rules snapshot.
// Awards already running finish against the snapshot they started with.
func (s *Service) ReloadRules(ctx context.Context, r config.Rules) (int64, error) {
	rs, err := r.Compile()
	if err != nil {
		return 0, errs.Invalid(err)
	}
	v := s.install(rs)
	s.logger.Info(ctx, "rules reloaded",
		logger.Int64("version", v),
		logger.Int("caps", len(rs.Caps.List())),
		logger.Int("point_rules", len(rs.Points.Entries())),
	)
	return v, nil
}

// Rules returns the active rules snapshot and its version.
func (s *Service) Rules() (*config.RuleSet, int64) {
	snap := s.rules.Load()
	return snap.rules, snap.version
}

// Start creates the async award queue and worker pool. The pool outlives
// ctx: accepted jobs are only abandoned when Stop's deadline passes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s,
		worker.WithRetries(s.retries),
		worker.WithResultFunc(s.observeAsync),
	)
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelPool = cancel
	s.pool.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "merit service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the queue and waits until the workers drain it or ctx is
// done, whichever comes first. Jobs still queued at the deadline are lost.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping merit service...",
		logger.Int("queued", s.queue.Len(ctx)))
	err := s.pool.Shutdown(ctx)
	s.cancelPool()
	if err != nil {
		s.logger.Error(ctx, "queued awards abandoned", logger.Int("queued", s.queue.Len(ctx)), logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "merit service stopped")
	return err
}

// Enqueue submits an award for asynchronous processing. Commits that are
// already known are answered from the dedupe cache without queueing.
func (s *Service) Enqueue(ctx context.Context, in model.AwardInput) (model.AwardResult, bool, error) {
	if err := validate(in); err != nil {
		return model.AwardResult{}, false, err
	}
	if s.dedupe.Seen(ctx, in.SourceKey) {
		metrics.RecordDedupeCacheHit()
		metrics.RecordAward("skipped", string(model.SkipDuplicate))
		return model.Skip(model.SkipDuplicate), false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.AwardResult{}, false, ErrNotStarted
	}
	if !s.queue.Enqueue(ctx, in) {
		return model.AwardResult{}, false, ErrQueueFull
	}
	return model.AwardResult{}, true, nil
}

func (s *Service) observeAsync(job queue.Job, res model.AwardResult, err error) { //nolint:gocritic // hugeParam: Job mirrors queue semantics
	if err != nil {
		return
	}
	s.logger.Debug(context.Background(), "async award done",
		logger.String("source_key", job.SourceKey),
		logger.Bool("applied", res.Applied),
		logger.String("skipped", string(res.Skipped)),
	)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, version := s.Rules()
	st := types.Stats{
		QueueCapacity: s.queueSize,
		Workers:       s.workerCount,
		DedupeSize:    s.dedupe.Size(),
		RulesVersion:  version,
	}
	if s.started {
		st.QueueLength = s.queue.Len(ctx)
		st.Workers = s.pool.Size()
		metrics.UpdateQueueSize(st.QueueLength)
	}
	if season, err := s.ActiveSeason(ctx); err == nil {
		st.ActiveSeason = season.ID
	}
	metrics.UpdateDedupeCacheSize(st.DedupeSize)
	return st
}

func (s *Service) today() (time.Time, model.Date) {
	now := s.now()
	return now, model.DateOf(now, s.loc)
}

// report routes errors to the alerting path by class.
func (s *Service) report(ctx context.Context, op string, err error, fields ...logger.Field) {
	class := errs.Class(err)
	fields = append(fields, logger.String("op", op), logger.Error(err))
	switch class {
	case "invariant":
		entity := "unknown"
		var inv *errs.InvariantError
		if errors.As(err, &inv) {
			entity = inv.Entity
		}
		metrics.RecordInvariantViolation(entity)
		s.logger.Error(ctx, "invariant violation", append(fields, logger.Alert("invariant"))...)
	case "configuration":
		s.logger.Error(ctx, "engine misconfigured", append(fields, logger.Alert("configuration"))...)
	case "transient":
		s.logger.Warn(ctx, "transient storage error", fields...)
	case "invalid_input", "not_found", "conflict":
		s.logger.Debug(ctx, "request rejected", fields...)
	default:
		s.logger.Error(ctx, "operation failed", fields...)
	}
}
