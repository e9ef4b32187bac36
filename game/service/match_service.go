package service

import (
	"context"

	"github.com/wricardo/star-royale/game/engine"
	"github.com/wricardo/star-royale/game/reward"
)

// MatchService defines the read-side operations exposed over HTTP and MCP.
// Gameplay itself (join, move, claim, leave) only happens over the websocket.
type MatchService interface {
	Health(ctx context.Context) (*HealthInfo, error)

	// Match State
	GetMatch(ctx context.Context) (*engine.MatchSnapshot, error)
	ListPlayers(ctx context.Context) ([]engine.Player, error)
	GetScore(ctx context.Context) (*ScoreInfo, error)

	// Rewards
	GetRewardStats(ctx context.Context) (*RewardInfo, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.MatchConfig, error)
}

// Match is the read view of the running match. *engine.Engine implements it.
type Match interface {
	Snapshot() engine.MatchSnapshot
	State() engine.MatchState
	Score() engine.Score
	Players() []engine.Player
	Config() *engine.MatchConfig
}

// ConfigManager handles match configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.MatchConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.MatchConfig
}

// RewardReporter exposes payout counters. *reward.Dispatcher implements it.
type RewardReporter interface {
	Stats() reward.Stats
}

// ConnectionCounter reports live connections. *session.Manager implements it.
type ConnectionCounter interface {
	Count() int
}

// WalletBalance returns what is left in the API wallet.
type WalletBalance func(ctx context.Context) (float64, error)
