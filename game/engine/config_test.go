package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultMatchConfig(t *testing.T) {
	if err := ValidateMatchConfig(DefaultMatchConfig()); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestValidateMatchConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*MatchConfig)
		wantErr string
	}{
		{"missing name", func(c *MatchConfig) { c.Name = "" }, "name is required"},
		{"narrow field", func(c *MatchConfig) { c.FieldWidth = 50 }, "field_width"},
		{"tall field", func(c *MatchConfig) { c.FieldHeight = 20000 }, "field_height"},
		{"inverted star bounds", func(c *MatchConfig) { c.StarBounds.MinX = 800 }, "star_bounds"},
		{"spawn outside field", func(c *MatchConfig) { c.SpawnBounds.MaxY = 700 }, "spawn_bounds"},
		{"zero points", func(c *MatchConfig) { c.PointsPerClaim = 0 }, "points_per_claim"},
		{"zero winning score", func(c *MatchConfig) { c.WinningScore = 0 }, "winning_score"},
		{"points above winning score", func(c *MatchConfig) { c.PointsPerClaim = 200 }, "exceeds"},
		{"negative prize", func(c *MatchConfig) { c.Prize = -1 }, "prize"},
		{"prize without reason", func(c *MatchConfig) { c.RewardReason = " " }, "reward_reason"},
		{"unknown policy", func(c *MatchConfig) { c.TeamPolicy = "chaos" }, "team_policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchConfig()
			tt.modify(config)
			err := ValidateMatchConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := ValidateMatchConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestLoadMatchConfig(t *testing.T) {
	dir := t.TempDir()

	valid := `{
		"name": "tiny",
		"field_width": 400,
		"field_height": 300,
		"star_bounds": {"min_x": 20, "max_x": 380, "min_y": 20, "max_y": 280},
		"spawn_bounds": {"min_x": 20, "max_x": 380, "min_y": 20, "max_y": 280},
		"points_per_claim": 5,
		"winning_score": 25,
		"prize": 0
	}`
	if err := os.WriteFile(filepath.Join(dir, "tiny.json"), []byte(valid), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadMatchConfig(filepath.Join(dir, "tiny"))
	if err != nil {
		t.Fatalf("LoadMatchConfig failed: %v", err)
	}
	if config.Name != "tiny" || config.WinningScore != 25 || config.StarBounds.MaxX != 380 {
		t.Errorf("Unexpected config %+v", config)
	}

	if _, err := LoadMatchConfig(filepath.Join(dir, "broken.json")); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := LoadMatchConfig(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected read error")
	}
}
