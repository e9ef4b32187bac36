package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/star-royale/game/engine"
)

func createValidConfig(name string) *engine.MatchConfig {
	config := engine.DefaultMatchConfig()
	config.Name = name
	config.Description = "Test configuration"
	return config
}

func writeConfigFile(t *testing.T, dir, name string, config any) {
	t.Helper()

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		if _, err := NewManager(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("Expected error for missing directory")
		}
	})

	t.Run("classic is default", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "classic", createValidConfig("classic"))
		writeConfigFile(t, dir, "aaa", createValidConfig("aaa"))

		m, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if got := m.GetDefault().Name; got != "classic" {
			t.Errorf("Expected classic default, got %s", got)
		}
	})

	t.Run("first valid file is default", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "zeta", createValidConfig("zeta"))
		writeConfigFile(t, dir, "alpha", createValidConfig("alpha"))

		m, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if got := m.GetDefault().Name; got != "alpha" {
			t.Errorf("Expected alpha default, got %s", got)
		}
	})

	t.Run("empty directory uses built-in rules", func(t *testing.T) {
		m, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if got := m.GetDefault(); got == nil || got.WinningScore != 100 {
			t.Errorf("Expected built-in classic rules, got %+v", got)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig("classic"))

	invalid := createValidConfig("broken")
	invalid.WinningScore = 0
	writeConfigFile(t, dir, "broken", invalid)

	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tests := []struct {
		name    string
		config  string
		wantErr error
	}{
		{"by name", "classic", nil},
		{"with extension", "classic.json", nil},
		{"missing", "nope", ErrConfigNotFound},
		{"path traversal", "../classic", ErrConfigNotFound},
		{"fails validation", "broken", ErrInvalidConfig},
		{"not json", "garbage", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := m.LoadConfig(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if config.Name != "classic" {
				t.Errorf("Unexpected config %+v", config)
			}
		})
	}
}

func TestLoadConfig_Cached(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig("classic"))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	first, _ := m.LoadConfig("classic")
	os.Remove(filepath.Join(dir, "classic.json"))
	second, err := m.LoadConfig("classic")
	if err != nil || first != second {
		t.Errorf("Expected cached config, got %v, %v", second, err)
	}
}

func TestListConfigs(t *testing.T) {
	dir := t.TempDir()
	quick := createValidConfig("Quick Match")
	quick.WinningScore = 30
	quick.TeamPolicy = engine.PolicyAlternating
	writeConfigFile(t, dir, "quick", quick)
	writeConfigFile(t, dir, "classic", createValidConfig("classic"))

	invalid := createValidConfig("broken")
	invalid.PointsPerClaim = -1
	writeConfigFile(t, dir, "broken", invalid)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644)
	os.Mkdir(filepath.Join(dir, "sub.json"), 0755)

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	configs, err := m.ListConfigs()
	if err != nil {
		t.Fatalf("ListConfigs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("Expected 2 valid configs, got %d", len(configs))
	}
	if configs[0].ConfigID != "classic" || configs[1].ConfigID != "quick" {
		t.Errorf("Unexpected order: %s, %s", configs[0].ConfigID, configs[1].ConfigID)
	}

	q := configs[1]
	if q.Filename != "quick.json" || q.Name != "Quick Match" || q.WinningScore != 30 || q.TeamPolicy != engine.PolicyAlternating {
		t.Errorf("Unexpected config info %+v", q)
	}
}

func TestConcurrentLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig("classic"))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.LoadConfig("classic"); err != nil {
				t.Errorf("LoadConfig failed: %v", err)
			}
			m.ListConfigs()
		}()
	}
	wg.Wait()
}
