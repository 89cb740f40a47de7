package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
	"github.com/okian/merit/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	progressInterval    = time.Second
)

// tally accumulates what the server reported per request.
type tally struct {
	mu       sync.Mutex
	stats    Stats
	expected map[string]int64    // user -> sum of applied points
	applied  map[string]struct{} // source keys reported applied
	doubles  []string            // source keys applied more than once
}

func (t *tally) record(req types.AwardRequest, res types.AwardResponse, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Submitted++
	if err != nil {
		t.stats.Failed++
		return
	}
	switch {
	case res.Status == types.StatusApplied:
		if _, seen := t.applied[req.SourceKey]; seen {
			t.doubles = append(t.doubles, req.SourceKey)
		}
		t.applied[req.SourceKey] = struct{}{}
		t.expected[req.UserID] += res.AwardedPoints
		t.stats.Applied++
		t.stats.Points += res.AwardedPoints
	case res.Reason == string(model.SkipDuplicate):
		t.stats.Duplicates++
	case res.Reason == string(model.SkipCap):
		t.stats.Capped++
	default:
		t.stats.NoPoints++
	}
}

// Run generates and submits award traffic, then verifies every user's
// season total against the sum of applied points.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Stats, error) {
	if cfg.Users <= 0 || cfg.Awards <= 0 || cfg.Workers <= 0 || cfg.DuplicatePct < 0 || cfg.DuplicatePct >= 1 {
		return Stats{}, fmt.Errorf("%w: users, awards and workers must be positive; duplicate pct in [0,1)", ErrInvalidConfig)
	}
	start := time.Now()
	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.Retries)

	log.Info(ctx, "starting merit load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("awards", cfg.Awards),
		logger.Float64("duplicatePct", cfg.DuplicatePct),
		logger.Int("workers", cfg.Workers))

	if err := client.Health(ctx); err != nil {
		return Stats{}, err
	}

	reqs := Generate(cfg)
	t := &tally{expected: map[string]int64{}, applied: map[string]struct{}{}}
	t.stats.Generated = len(reqs)

	if err := submit(ctx, client, cfg, reqs, t, log); err != nil {
		return t.stats, err
	}

	if cfg.OutputFile != "" {
		if err := save(cfg.OutputFile, reqs); err != nil {
			log.Warn(ctx, "failed to save requests", logger.Error(err))
		}
	}

	verified, err := verify(ctx, client, cfg.Workers, t.expected, t.doubles)
	t.stats.Users = len(t.expected)
	t.stats.Verified = verified
	t.stats.Duration = time.Since(start)
	report(ctx, log, t.stats)
	return t.stats, err
}

func submit(ctx context.Context, client *Client, cfg Config, reqs []types.AwardRequest, t *tally, log logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	last := time.Now()
	for _, req := range reqs {
		g.Go(func() error {
			var res types.AwardResponse
			err := client.Award(gctx, req, &res)
			t.record(req, res, err)
			if err != nil && cfg.Verbose {
				log.Warn(gctx, "award failed", logger.String("sourceKey", req.SourceKey), logger.Error(err))
			}
			return nil
		})
		if cfg.Verbose && time.Since(last) >= progressInterval {
			last = time.Now()
			t.mu.Lock()
			st := t.stats
			t.mu.Unlock()
			log.Info(ctx, "progress",
				logger.Int("submitted", st.Submitted),
				logger.Int("applied", st.Applied),
				logger.Int("duplicates", st.Duplicates),
				logger.Int("failed", st.Failed))
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// save writes the generated requests as a JSON array.
func save(path string, reqs []types.AwardRequest) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal requests: %w", err)
	}
	return os.WriteFile(path, data, filePermission)
}

func report(ctx context.Context, log logger.Logger, st Stats) {
	var perSecond float64
	if st.Duration > 0 {
		perSecond = float64(st.Submitted) / st.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", st.Generated),
		logger.Int("submitted", st.Submitted),
		logger.Int("applied", st.Applied),
		logger.Int("duplicates", st.Duplicates),
		logger.Int("capped", st.Capped),
		logger.Int("noPoints", st.NoPoints),
		logger.Int("failed", st.Failed),
		logger.Int64("points", st.Points),
		logger.Int("usersVerified", st.Verified),
		logger.Duration("duration", st.Duration),
		logger.Float64("awardsPerSecond", perSecond))
}
