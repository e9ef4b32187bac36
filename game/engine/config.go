package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validation limits
const (
	MinFieldSize    = 100
	MaxFieldSize    = 10000
	MaxWinningScore = 100000
	MaxPrize        = 1000
)

// MatchConfig holds the rules of a match, loaded from JSON.
type MatchConfig struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	FieldWidth     float64 `json:"field_width"`
	FieldHeight    float64 `json:"field_height"`
	StarBounds     Bounds  `json:"star_bounds"`
	SpawnBounds    Bounds  `json:"spawn_bounds"`
	PointsPerClaim int     `json:"points_per_claim"`
	WinningScore   int     `json:"winning_score"`
	Prize          float64 `json:"prize"`
	RewardReason   string  `json:"reward_reason"`
	TeamPolicy     string  `json:"team_policy"`
}

// DefaultMatchConfig returns the classic rules: 800x600 field, star kept 50
// units away from the edges, 10 points per star, first team to 100 wins 0.01
// per member.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Name:           "classic",
		Description:    "First team to 100 points wins",
		FieldWidth:     800,
		FieldHeight:    600,
		StarBounds:     Bounds{MinX: 50, MaxX: 750, MinY: 50, MaxY: 550},
		SpawnBounds:    Bounds{MinX: 50, MaxX: 750, MinY: 50, MaxY: 550},
		PointsPerClaim: 10,
		WinningScore:   100,
		Prize:          0.01,
		RewardReason:   "Star Royale Win",
		TeamPolicy:     PolicyBalanced,
	}
}

// ValidateMatchConfig validates a match configuration for correctness and playability
func ValidateMatchConfig(config *MatchConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	if config.FieldWidth < MinFieldSize || config.FieldWidth > MaxFieldSize {
		return fmt.Errorf("config validation: field_width must be between %d and %d, got %v", MinFieldSize, MaxFieldSize, config.FieldWidth)
	}
	if config.FieldHeight < MinFieldSize || config.FieldHeight > MaxFieldSize {
		return fmt.Errorf("config validation: field_height must be between %d and %d, got %v", MinFieldSize, MaxFieldSize, config.FieldHeight)
	}

	if err := validateBounds("star_bounds", config.StarBounds, config); err != nil {
		return err
	}
	if err := validateBounds("spawn_bounds", config.SpawnBounds, config); err != nil {
		return err
	}

	if config.PointsPerClaim <= 0 {
		return fmt.Errorf("config validation: points_per_claim must be positive, got %d", config.PointsPerClaim)
	}
	if config.WinningScore <= 0 || config.WinningScore > MaxWinningScore {
		return fmt.Errorf("config validation: winning_score must be between 1 and %d, got %d", MaxWinningScore, config.WinningScore)
	}
	if config.PointsPerClaim > config.WinningScore {
		return fmt.Errorf("config validation: points_per_claim (%d) exceeds winning_score (%d)", config.PointsPerClaim, config.WinningScore)
	}
	if config.Prize < 0 || config.Prize > MaxPrize {
		return fmt.Errorf("config validation: prize must be between 0 and %d, got %v", MaxPrize, config.Prize)
	}
	if config.Prize > 0 && strings.TrimSpace(config.RewardReason) == "" {
		return fmt.Errorf("config validation: reward_reason is required when prize is set")
	}

	if config.TeamPolicy != "" && !isKnownPolicy(config.TeamPolicy) {
		return fmt.Errorf("config validation: unknown team_policy %q (want one of %s)", config.TeamPolicy, strings.Join(PolicyNames, ", "))
	}

	return nil
}

func validateBounds(name string, b Bounds, config *MatchConfig) error {
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return fmt.Errorf("config validation: %s must have min < max, got %+v", name, b)
	}
	if b.MinX < 0 || b.MinY < 0 || b.MaxX > config.FieldWidth || b.MaxY > config.FieldHeight {
		return fmt.Errorf("config validation: %s %+v lies outside the %vx%v field", name, b, config.FieldWidth, config.FieldHeight)
	}
	return nil
}

// LoadMatchConfig loads and validates a match configuration from a JSON file
func LoadMatchConfig(path string) (*MatchConfig, error) {
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filepath.Base(path), err)
	}

	var config MatchConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filepath.Base(path), err)
	}

	if err := ValidateMatchConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filepath.Base(path), err)
	}

	return &config, nil
}
