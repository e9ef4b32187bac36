// Command validate provides a small CLI that validates match configuration
// JSON files in the ../configs directory (or the directory given as the first
// argument). It checks:
//   - JSON structure, including unknown keys that usually mean a typo
//   - Every rule enforced by engine.ValidateMatchConfig
//   - That the star can spawn somewhere the players can reach
//
// Valid files also get a short summary of how the match will play.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/star-royale/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var config engine.MatchConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := engine.ValidateMatchConfig(&config); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	if !overlaps(config.StarBounds, config.SpawnBounds) {
		// Players can still walk there; this only flags an unusual layout.
		result.Errors = append(result.Errors, "⚠ star_bounds and spawn_bounds do not overlap")
	}

	claims := int(math.Ceil(float64(config.WinningScore) / float64(config.PointsPerClaim)))
	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ %s: %gx%g field, %d stars to win", config.Name, config.FieldWidth, config.FieldHeight, claims))

	if config.Prize > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Prize %g per winner (%q)", config.Prize, config.RewardReason))
	} else {
		result.Errors = append(result.Errors, "✓ No prize")
	}

	policy := config.TeamPolicy
	if policy == "" {
		policy = engine.PolicyBalanced
	}
	result.Errors = append(result.Errors, "✓ Team policy: "+policy)

	return result
}

func overlaps(a, b engine.Bounds) bool {
	return a.MinX < b.MaxX && b.MinX < a.MaxX && a.MinY < b.MaxY && b.MinY < a.MaxY
}

// main scans the config directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are
// invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No config files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
