// Package config manages the rule-set presets that sessions are created from.
//
// A preset is a JSON document in the configs directory holding a display name,
// a description and a full engine.GameSettings block:
//
//	{
//	  "name": "Classic",
//	  "description": "Doubles, sandwiches, top-bottom and marriages",
//	  "settings": {
//	    "minPlayers": 2,
//	    "maxPlayers": 8,
//	    "numDecks": 1,
//	    "slapRules": [ ... ],
//	    "faceCardChallengeCounts": {"J": 1, "Q": 2, "K": 3, "A": 4}
//	  }
//	}
//
// The preset id is the file name without ".json". classic.json is the default;
// without it the first valid preset wins, and an empty directory falls back to
// the built-in classic rules.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadConfig("party")
//	presets, err := manager.ListConfigs()
//
// Presets are validated with engine.ValidatePreset on load and on save. Invalid
// files are skipped by ListConfigs and reported as ErrInvalidConfig by LoadConfig.
package config
