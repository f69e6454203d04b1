// Command validate checks rule-set preset JSON files. By default it scans
// ../configs; a directory may be passed as the first argument. It checks:
//   - JSON structure, rejecting unknown fields
//   - Player and deck bounds, tribute counts and counter-card specs
//   - Slap rule names, actions and operators
//   - Condition paths that would never compile (reported as warnings)
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/ratslap/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings and Info never do.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// validatePreset loads and validates a single preset file
func validatePreset(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var preset engine.Preset
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&preset); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := engine.ValidatePreset(&preset); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	s := preset.Settings
	result.Warnings = append(result.Warnings, engine.NewRuleEngine(s).Diagnostics()...)

	if len(s.SlapRules) == 0 {
		result.Warnings = append(result.Warnings, "No slap rules: every slap is a penalty")
	}
	if len(s.FaceCardChallengeCounts) == 0 {
		result.Warnings = append(result.Warnings, "No face-card tributes: the pile is only won by slapping")
	}
	if s.ChallengeCounterSlapTimeoutMs > 0 && s.TurnTimeoutMs > 0 && s.ChallengeCounterSlapTimeoutMs >= s.TurnTimeoutMs {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Slap window (%dms) is not shorter than the turn timeout (%dms)",
			s.ChallengeCounterSlapTimeoutMs, s.TurnTimeoutMs))
	}

	result.Info = append(result.Info, fmt.Sprintf("✓ Name: %s", preset.Name))
	result.Info = append(result.Info, fmt.Sprintf("✓ Players: %d-%d", s.MinPlayers, s.MaxPlayers))
	result.Info = append(result.Info, fmt.Sprintf("✓ Cards: %d (%d deck(s))", s.TotalCards(), s.NumDecks))
	result.Info = append(result.Info, fmt.Sprintf("✓ Slap rules: %d", len(s.SlapRules)))
	result.Info = append(result.Info, fmt.Sprintf("✓ Tributes: %s", formatTributes(s.FaceCardChallengeCounts)))
	if len(s.ChallengeCounterCards) > 0 {
		result.Info = append(result.Info, fmt.Sprintf("✓ Counter cards: %d", len(s.ChallengeCounterCards)))
	}

	return result
}

func formatTributes(counts map[engine.Rank]int) string {
	if len(counts) == 0 {
		return "none"
	}
	ranks := make([]engine.Rank, 0, len(counts))
	for rank := range counts {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Value() < ranks[j].Value() })

	parts := make([]string, len(ranks))
	for i, rank := range ranks {
		parts[i] = fmt.Sprintf("%s=%d", rank, counts[rank])
	}
	return strings.Join(parts, " ")
}

// validateDir validates every *.json file in dir, in name order
func validateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validatePreset(file))
	}
	return results, nil
}

// main validates every preset in the target directory, printing a concise
// report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDir(configDir)
	if err != nil {
		fmt.Printf("Error finding preset files: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Printf("No preset files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Println("  ⚠️  " + warning)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All presets are valid!")
	} else {
		fmt.Println("❌ Some presets have errors")
		os.Exit(1)
	}
}
