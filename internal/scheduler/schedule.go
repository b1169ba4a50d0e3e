// Package scheduler drives market lifecycles from a game schedule: markets
// open ahead of kickoff, halt at kickoff, and resolve once a result is
// recorded.
package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"gopkg.in/yaml.v3"
)

// Game is one scheduled fixture. Side A is the home team.
//
//	games:
//	  - game_id: nfl-2026-w10-kc-buf
//	    home_team: Chiefs
//	    away_team: Bills
//	    kickoff: 2026-11-08T18:00:00Z
//	    result: home
type Game struct {
	GameID   string    `yaml:"game_id"`
	HomeTeam string    `yaml:"home_team"`
	AwayTeam string    `yaml:"away_team"`
	Kickoff  time.Time `yaml:"kickoff"`
	// Kind overrides the configured market kind for this game.
	Kind string `yaml:"kind,omitempty"`
	// Result is empty until the game is decided; then "home"/"away" (or
	// "a"/"b").
	Result string `yaml:"result,omitempty"`
}

// Schedule is the decoded schedule file.
type Schedule struct {
	Week  string `yaml:"week,omitempty"`
	Games []Game `yaml:"games"`
}

// LoadSchedule reads and validates a schedule file.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("scheduler: read %s: %w", path, err)
	}
	return ParseSchedule(data)
}

// ParseSchedule decodes a schedule and rejects games that can never be
// scheduled. Unknown fields are errors so typos surface early.
func ParseSchedule(data []byte) (Schedule, error) {
	var s Schedule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file is an empty schedule.
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Schedule{}, fmt.Errorf("scheduler: decode schedule: %w", err)
	}

	seen := make(map[string]bool, len(s.Games))
	var errs []error
	for i, g := range s.Games {
		switch {
		case strings.TrimSpace(g.GameID) == "":
			errs = append(errs, fmt.Errorf("game %d: game_id is required", i))
			continue
		case seen[g.GameID]:
			errs = append(errs, fmt.Errorf("game %s: duplicate game_id", g.GameID))
		case g.HomeTeam == "" || g.AwayTeam == "":
			errs = append(errs, fmt.Errorf("game %s: home_team and away_team are required", g.GameID))
		case g.Kickoff.IsZero():
			errs = append(errs, fmt.Errorf("game %s: kickoff is required", g.GameID))
		}
		seen[g.GameID] = true
		if g.Kind != "" && g.Kind != string(domain.MarketKindPool) && g.Kind != string(domain.MarketKindCurve) {
			errs = append(errs, fmt.Errorf("game %s: kind must be pool or curve", g.GameID))
		}
		if g.Result != "" {
			if _, err := domain.ParseSide(g.Result); err != nil {
				errs = append(errs, fmt.Errorf("game %s: %w", g.GameID, err))
			}
		}
	}
	if len(errs) > 0 {
		return Schedule{}, fmt.Errorf("scheduler: invalid schedule: %w", errors.Join(errs...))
	}
	return s, nil
}
