package service

import (
	"fmt"

	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/internal/domain/league"
	"github.com/okian/merit/internal/domain/ranking"
)

// OptionsFromConfig translates process configuration into service options.
// The rules catalog is loaded from cfg.RulesPath and compiled.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	rs, err := rules.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	return []Option{
		WithRules(rs),
		WithLocation(loc),
		WithQueueSize(cfg.EventQueueSize),
		WithWorkerCount(cfg.WorkerCount),
		WithAwardRetries(cfg.AwardRetries),
		WithDedupeSize(cfg.DedupeSize),
		WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		WithLeagueConfig(league.Config{MinSize: cfg.MinLeagueSize, TopPct: cfg.TopPct, BottomPct: cfg.BottomPct}),
		WithRankingConfig(ranking.Config{BiasCap: cfg.BiasCap}),
	}, nil
}
