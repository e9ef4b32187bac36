package service

import (
	"time"

	"github.com/wricardo/star-royale/game/engine"
	"github.com/wricardo/star-royale/game/reward"
)

// HealthInfo is a liveness summary
type HealthInfo struct {
	Status      string       `json:"status"`
	Phase       engine.Phase `json:"phase"`
	Players     int          `json:"players"`
	Connections int          `json:"connections"`
	StartedAt   time.Time    `json:"started_at"`
	Uptime      string       `json:"uptime"`
}

// ScoreInfo is the score together with what it takes to win
type ScoreInfo struct {
	Score        engine.Score `json:"score"`
	WinningScore int          `json:"winning_score"`
	Phase        engine.Phase `json:"phase"`
	Winner       engine.Team  `json:"winner,omitempty"`
}

// Reward modes
const (
	RewardModeLive     = "live"
	RewardModeDryRun   = "dry-run"
	RewardModeDisabled = "disabled"
)

// RewardInfo describes payout configuration and activity
type RewardInfo struct {
	Mode          string       `json:"mode"`
	AppID         string       `json:"app_id,omitempty"`
	Prize         float64      `json:"prize"`
	Reason        string       `json:"reason,omitempty"`
	WalletBalance *float64     `json:"wallet_balance,omitempty"`
	BalanceError  string       `json:"balance_error,omitempty"`
	Stats         reward.Stats `json:"stats"`
}

// ConfigInfo provides information about a match configuration
type ConfigInfo struct {
	Filename       string  `json:"filename"`
	ConfigID       string  `json:"config_id"` // The identifier to pass to /api/configs/{name}
	Name           string  `json:"name"`      // Display name
	Description    string  `json:"description"`
	FieldWidth     float64 `json:"field_width"`
	FieldHeight    float64 `json:"field_height"`
	PointsPerClaim int     `json:"points_per_claim"`
	WinningScore   int     `json:"winning_score"`
	Prize          float64 `json:"prize"`
	TeamPolicy     string  `json:"team_policy"`
}

// NewConfigInfo summarizes config as stored in filename
func NewConfigInfo(filename, configID string, config *engine.MatchConfig) *ConfigInfo {
	policy := config.TeamPolicy
	if policy == "" {
		policy = engine.PolicyBalanced
	}
	return &ConfigInfo{
		Filename:       filename,
		ConfigID:       configID,
		Name:           config.Name,
		Description:    config.Description,
		FieldWidth:     config.FieldWidth,
		FieldHeight:    config.FieldHeight,
		PointsPerClaim: config.PointsPerClaim,
		WinningScore:   config.WinningScore,
		Prize:          config.Prize,
		TeamPolicy:     policy,
	}
}
