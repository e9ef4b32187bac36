package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wricardo/star-royale/game/engine"
)

// matchServiceImpl implements the MatchService interface
type matchServiceImpl struct {
	match       Match
	configs     ConfigManager
	connections ConnectionCounter
	rewards     RewardReporter
	rewardMode  string
	appID       string
	balance     WalletBalance
	startedAt   time.Time
}

// Option configures the match service
type Option func(*matchServiceImpl)

// WithConnections reports live connection counts in Health.
func WithConnections(c ConnectionCounter) Option {
	return func(s *matchServiceImpl) { s.connections = c }
}

// WithRewards reports payout activity. mode is one of the RewardMode constants.
func WithRewards(r RewardReporter, mode string) Option {
	return func(s *matchServiceImpl) {
		s.rewards = r
		s.rewardMode = mode
	}
}

// WithWallet reports the API wallet balance alongside reward stats.
func WithWallet(appID string, balance WalletBalance) Option {
	return func(s *matchServiceImpl) {
		s.appID = appID
		s.balance = balance
	}
}

// NewMatchService creates a new match service instance
func NewMatchService(match Match, configs ConfigManager, opts ...Option) MatchService {
	s := &matchServiceImpl{
		match:      match,
		configs:    configs,
		rewardMode: RewardModeDisabled,
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health reports that the server is up along with a few counters
func (s *matchServiceImpl) Health(ctx context.Context) (*HealthInfo, error) {
	info := &HealthInfo{
		Status:    "ok",
		Phase:     s.match.State().Phase,
		Players:   len(s.match.Players()),
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.connections != nil {
		info.Connections = s.connections.Count()
	}
	return info, nil
}

// GetMatch returns a consistent snapshot of the match
func (s *matchServiceImpl) GetMatch(ctx context.Context) (*engine.MatchSnapshot, error) {
	snap := s.match.Snapshot()
	return &snap, nil
}

// ListPlayers returns the roster ordered by player ID
func (s *matchServiceImpl) ListPlayers(ctx context.Context) ([]engine.Player, error) {
	return s.match.Players(), nil
}

// GetScore returns the score and the winning threshold
func (s *matchServiceImpl) GetScore(ctx context.Context) (*ScoreInfo, error) {
	snap := s.match.Snapshot()
	return &ScoreInfo{
		Score:        snap.Score,
		WinningScore: s.match.Config().WinningScore,
		Phase:        snap.State.Phase,
		Winner:       snap.State.Winner,
	}, nil
}

// GetRewardStats returns payout counters and, when a wallet is configured,
// its current balance. A failing balance lookup is reported, not returned.
func (s *matchServiceImpl) GetRewardStats(ctx context.Context) (*RewardInfo, error) {
	config := s.match.Config()
	info := &RewardInfo{
		Mode:   s.rewardMode,
		AppID:  s.appID,
		Prize:  config.Prize,
		Reason: config.RewardReason,
	}
	if s.rewards != nil {
		info.Stats = s.rewards.Stats()
	}

	if s.balance != nil {
		balance, err := s.balance(ctx)
		if err != nil {
			info.BalanceError = err.Error()
		} else {
			info.WalletBalance = &balance
		}
	}

	return info, nil
}

// ListConfigs returns all available configurations
func (s *matchServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	configs, err := s.configs.ListConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	return configs, nil
}

// LoadConfig loads a configuration by name
func (s *matchServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.MatchConfig, error) {
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
	}
	return config, nil
}
