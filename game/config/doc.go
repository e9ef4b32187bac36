// Package config provides match configuration management for Star Royale.
//
// The config package handles:
//   - Loading match rules from JSON files
//   - Validation through engine.ValidateMatchConfig
//   - Default configuration selection
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Each JSON file in the configs directory describes one rule set: field size,
// star and spawn rectangles, points per star, the winning score, the prize paid
// to every member of the winning team and the team assignment policy.
//
// Available Configurations:
//   - classic: 800x600 field, 10 points per star, first team to 100 wins
//   - quick: same field, first team to 30 wins, alternating teams
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	matchConfig, err := manager.LoadConfig("quick")
//	if errors.Is(err, config.ErrConfigNotFound) {
//		matchConfig = manager.GetDefault()
//	}
//
// When no file can be loaded the manager falls back to
// engine.DefaultMatchConfig.
package config
