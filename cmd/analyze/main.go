// Command analyze plays bot-only matches for every preset in a directory and
// prints quick, human-readable heuristics: how long games run, how often slaps
// and face-card challenges happen, and whether any match broke card conservation
// or stalled before a winner emerged.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/ratslap/game/bot"
	"github.com/wricardo/ratslap/game/engine"
)

// SimOptions controls one batch of simulated matches
type SimOptions struct {
	Matches    int
	Players    int // 0 uses the preset's minimum
	Seed       uint64
	MaxActions int
	// MistakeRate is the chance per step that a random bot slaps without a reason
	MistakeRate float64
}

// MatchStats summarizes one simulated match
type MatchStats struct {
	Actions       int
	Turns         int
	Slaps         int
	Penalties     int
	Challenges    int
	ChallengesWon int
	Counters      int
	Winner        string
	Stalled       bool
	Violations    int
	Failure       string
}

// Report aggregates the matches played for one preset
type Report struct {
	File    string
	Name    string
	Players int
	Matches []MatchStats
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Simulate bot-only matches for every preset",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing presets"},
			&cli.IntFlag{Name: "matches", Value: 20, Usage: "Matches per preset"},
			&cli.IntFlag{Name: "players", Usage: "Bots per match (default: preset minimum)"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Base random seed"},
			&cli.IntFlag{Name: "max-actions", Value: 20000, Usage: "Give up on a match after this many actions"},
			&cli.FloatFlag{Name: "mistake-rate", Value: 0.02, Usage: "Chance per step of a baseless slap"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := SimOptions{
				Matches:     int(cmd.Int("matches")),
				Players:     int(cmd.Int("players")),
				Seed:        uint64(cmd.Int("seed")),
				MaxActions:  int(cmd.Int("max-actions")),
				MistakeRate: cmd.Float("mistake-rate"),
			}
			return analyzeDir(ctx, cmd.String("config-dir"), opts)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.WithError(err).Fatal("analyze failed")
	}
}

func analyzeDir(ctx context.Context, dir string, opts SimOptions) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no presets found in %s", dir)
	}
	sort.Strings(files)

	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		preset, err := engine.LoadPreset(file)
		if err != nil {
			fmt.Printf("Error loading preset: %v\n", err)
			continue
		}
		report := analyzePreset(preset, opts)
		report.File = filepath.Base(file)
		printReport(report)
	}
	return nil
}

// analyzePreset plays opts.Matches matches with consecutive seeds
func analyzePreset(preset *engine.Preset, opts SimOptions) Report {
	players := opts.Players
	if players < preset.Settings.MinPlayers {
		players = preset.Settings.MinPlayers
	}
	if players > preset.Settings.MaxPlayers {
		players = preset.Settings.MaxPlayers
	}

	report := Report{Name: preset.Name, Players: players}
	for i := 0; i < opts.Matches; i++ {
		report.Matches = append(report.Matches, simulate(preset.Settings, players, opts.Seed+uint64(i), opts))
	}
	return report
}

// simulate runs one match to completion or until MaxActions. Each step the bots
// decide from the same view a client would get; one of them, picked at random,
// acts. When nobody wants to act the step stands in for a server timer.
func simulate(settings engine.GameSettings, players int, seed uint64, opts SimOptions) MatchStats {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g, err := engine.NewGame(fmt.Sprintf("sim-%d", seed), settings,
		engine.WithRand(rand.New(rand.NewPCG(seed, 0x2545f4914f6cdd1d))),
		engine.WithLogger(logger.WithField("seed", seed)))
	if err != nil {
		return MatchStats{Failure: err.Error()}
	}

	brains := make([]*bot.Brain, players)
	for i := range brains {
		id := fmt.Sprintf("bot-%d", i+1)
		if err := g.AddPlayer(id, fmt.Sprintf("Bot %d", i+1), true); err != nil {
			return MatchStats{Failure: err.Error()}
		}
		brains[i] = bot.NewBrain(id)
	}

	var stats MatchStats
	for stats.Actions < opts.MaxActions && !g.Finished() {
		stats.Actions++

		if g.Status() == engine.StatusPlaying && g.PileSize() > 0 && rng.Float64() < opts.MistakeRate {
			b := brains[rng.IntN(len(brains))]
			g.Slap(b.ID)
			stats.Violations += checkConservation(g)
			continue
		}

		view := g.View()
		acted := false
		for _, i := range rng.Perm(len(brains)) {
			intents := brains[i].Decide(view)
			if len(intents) == 0 {
				continue
			}
			if err := apply(g, brains[i].ID, intents[0]); err == nil {
				acted = true
				break
			}
		}

		if !acted {
			if ch := g.ActiveChallenge(); ch != nil && ch.Pending {
				g.CollectChallengePile()
			} else if err := g.AutoPlay(); err != nil {
				break
			}
		}
		stats.Violations += checkConservation(g)
	}

	stats.Stalled = !g.Finished()
	stats.Failure = g.Failure()
	if id := g.WinnerID(); id != "" {
		if p, ok := g.Player(id); ok {
			stats.Winner = p.Name
		}
	}
	countEvents(g.Log().Entries(), &stats)
	return stats
}

func apply(g *engine.Game, id string, intent bot.Intent) error {
	switch intent {
	case bot.IntentReady:
		return g.SetReady(id, true)
	case bot.IntentPlay:
		return g.PlayCard(id)
	case bot.IntentSlap:
		_, err := g.Slap(id)
		return err
	case bot.IntentVote:
		return g.SubmitVote(id, true)
	}
	return fmt.Errorf("unknown intent %v", intent)
}

// checkConservation returns 1 when the cards in hands and pile no longer add up
func checkConservation(g *engine.Game) int {
	if g.Status() != engine.StatusPlaying {
		return 0
	}
	total := g.PileSize()
	for _, id := range g.PlayerIDs() {
		p, _ := g.Player(id)
		total += p.CardCount()
	}
	if total != g.TotalCards() {
		return 1
	}
	return 0
}

func countEvents(entries []engine.GameAction, stats *MatchStats) {
	for _, e := range entries {
		switch e.EventType {
		case engine.EventPlayCard:
			stats.Turns++
		case engine.EventSlapSuccess:
			stats.Slaps++
		case engine.EventSlapPenalty:
			stats.Penalties++
		case engine.EventChallengeStarted:
			stats.Challenges++
		case engine.EventChallengeWon:
			stats.ChallengesWon++
		case engine.EventChallengeCountered:
			stats.Counters++
		}
	}
}

func printReport(r Report) {
	fmt.Printf("Name: %s\n", r.Name)
	fmt.Printf("Bots per match: %d\n", r.Players)
	fmt.Printf("Matches: %d\n", len(r.Matches))
	if len(r.Matches) == 0 {
		return
	}

	var turns, slaps, penalties, challenges, counters, stalled, violations, failed int
	minTurns, maxTurns := -1, 0
	wins := map[string]int{}
	for _, m := range r.Matches {
		turns += m.Turns
		slaps += m.Slaps
		penalties += m.Penalties
		challenges += m.Challenges
		counters += m.Counters
		violations += m.Violations
		if m.Stalled {
			stalled++
		}
		if m.Failure != "" {
			failed++
		}
		if m.Winner != "" {
			wins[m.Winner]++
		}
		if minTurns < 0 || m.Turns < minTurns {
			minTurns = m.Turns
		}
		if m.Turns > maxTurns {
			maxTurns = m.Turns
		}
	}

	n := float64(len(r.Matches))
	fmt.Printf("Turns: avg %.1f (min %d, max %d)\n", float64(turns)/n, minTurns, maxTurns)
	fmt.Printf("Slaps won: avg %.1f, penalties: avg %.1f\n", float64(slaps)/n, float64(penalties)/n)
	fmt.Printf("Challenges: avg %.1f, countered: %d\n", float64(challenges)/n, counters)

	names := make([]string, 0, len(wins))
	for name := range wins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s won %d\n", name, wins[name])
	}

	if stalled > 0 {
		fmt.Printf("⚠️  %d match(es) hit the action cap without a winner\n", stalled)
	}
	if violations > 0 || failed > 0 {
		fmt.Printf("⚠️  CRITICAL: %d conservation violation(s), %d cancelled match(es)\n", violations, failed)
	} else {
		fmt.Printf("✅ Card conservation held in every match\n")
	}
}
