package league

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidScore = errors.New("invalid score")

// Set is one set of a match, written from the match winner's perspective:
// Games is the winner's game count and OpponentGames the loser's.
type Set struct {
	Games         int
	OpponentGames int
	// TieBreak holds the loser's points in a 7-6 tie-break, or -1.
	TieBreak int
}

func (s Set) wonByWinner() bool {
	return s.Games > s.OpponentGames
}

func (s Set) String() string {
	if s.TieBreak >= 0 {
		return fmt.Sprintf("%d-%d(%d)", s.Games, s.OpponentGames, s.TieBreak)
	}
	return fmt.Sprintf("%d-%d", s.Games, s.OpponentGames)
}

type Score struct {
	Sets []Set
}

// String renders the canonical form, e.g. "6-4, 3-6, 7-6(5)".
func (s Score) String() string {
	parts := make([]string, len(s.Sets))
	for i, set := range s.Sets {
		parts[i] = set.String()
	}
	return strings.Join(parts, ", ")
}

var setPattern = regexp.MustCompile(`(\d{1,2})\s*-\s*(\d{1,2})(?:\s*\(\s*(\d{1,2})\s*\))?`)

// ParseScore parses and validates a reported score such as "6-4, 3-6, 10-8".
// Sets are separated by commas, semicolons or spaces. The score must be
// written from the winner's perspective and contain at most maxSets sets.
func ParseScore(raw string, maxSets int) (Score, error) {
	if maxSets < 1 {
		maxSets = 1
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Score{}, fmt.Errorf("%w: score is required", ErrInvalidScore)
	}

	matches := setPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return Score{}, fmt.Errorf("%w: expected sets like 6-4", ErrInvalidScore)
	}

	var sets []Set
	prev := 0
	for _, m := range matches {
		if !isSeparator(raw[prev:m[0]]) {
			return Score{}, fmt.Errorf("%w: unexpected %q", ErrInvalidScore, strings.TrimSpace(raw[prev:m[0]]))
		}
		prev = m[1]

		games, _ := strconv.Atoi(raw[m[2]:m[3]])
		opponent, _ := strconv.Atoi(raw[m[4]:m[5]])
		tieBreak := -1
		if m[6] >= 0 {
			tieBreak, _ = strconv.Atoi(raw[m[6]:m[7]])
		}
		sets = append(sets, Set{Games: games, OpponentGames: opponent, TieBreak: tieBreak})
	}
	if !isSeparator(raw[prev:]) {
		return Score{}, fmt.Errorf("%w: unexpected %q", ErrInvalidScore, strings.TrimSpace(raw[prev:]))
	}

	if len(sets) > maxSets {
		return Score{}, fmt.Errorf("%w: at most %d sets allowed, got %d", ErrInvalidScore, maxSets, len(sets))
	}

	score := Score{Sets: sets}
	if err := score.validate(maxSets); err != nil {
		return Score{}, err
	}
	return score, nil
}

func isSeparator(s string) bool {
	return strings.Trim(s, ", ;\t") == ""
}

func (s Score) validate(maxSets int) error {
	needed := maxSets/2 + 1
	won, lost := 0, 0
	for i, set := range s.Sets {
		if won >= needed || lost >= needed {
			return fmt.Errorf("%w: match was already decided before set %d", ErrInvalidScore, i+1)
		}

		final := i == len(s.Sets)-1
		matchTieBreak := final && len(s.Sets) > 1 && won == lost
		if err := validateSet(set, len(s.Sets) == 1, matchTieBreak); err != nil {
			return fmt.Errorf("%w: set %d (%s) %s", ErrInvalidScore, i+1, set, err.Error())
		}

		if set.wonByWinner() {
			won++
		} else {
			lost++
		}
	}

	if won <= lost {
		return fmt.Errorf("%w: score must be written from the winner's perspective", ErrInvalidScore)
	}
	return nil
}

func validateSet(set Set, onlySet, matchTieBreak bool) error {
	hi, lo := set.Games, set.OpponentGames
	if hi < lo {
		hi, lo = lo, hi
	}
	if hi == lo {
		return errors.New("cannot be tied")
	}

	if set.TieBreak >= 0 {
		if hi != 7 || lo != 6 {
			return errors.New("only a 7-6 set has a tie-break")
		}
		return nil
	}

	switch {
	case hi == 6 && lo <= 4:
		return nil
	case hi == 7 && (lo == 5 || lo == 6):
		return nil
	case onlySet && hi == 8 && lo <= 6:
		// pro set
		return nil
	case matchTieBreak && hi >= 10 && hi-lo >= 2 && (hi == 10 || hi-lo == 2):
		return nil
	}
	return errors.New("is not a valid set")
}
