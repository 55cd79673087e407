package league

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/codr1/Courtside/internal/db/dbq"
)

const (
	PointsPerWin  = 3
	PointsPerLoss = 1
)

type Standing struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	MatchesPlayed int    `json:"matches_played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Points        int    `json:"points"`
}

type playerStats struct {
	Standing
	headToHeadWins map[string]int
}

// CalculateLeaderboard tallies completed matches into standings. Every
// player with a display name is listed, including those without results.
func CalculateLeaderboard(ctx context.Context, q *dbq.Queries) ([]Standing, error) {
	if q == nil {
		return nil, errors.New("queries are required")
	}

	players, err := q.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	results, err := q.ListDecidedMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decided matches: %w", err)
	}

	return buildStandings(players, results), nil
}

func buildStandings(players []dbq.User, results []dbq.DecidedMatch) []Standing {
	stats := make(map[string]*playerStats, len(players))
	ordered := make([]*playerStats, 0, len(players))
	for _, player := range players {
		entry := &playerStats{
			Standing: Standing{
				PlayerID:    player.ID,
				DisplayName: player.DisplayName,
				AvatarURL:   player.AvatarURL.String,
			},
			headToHeadWins: make(map[string]int),
		}
		stats[player.ID] = entry
		ordered = append(ordered, entry)
	}

	for _, result := range results {
		loserID := result.Player1ID
		if result.WinnerID == result.Player1ID {
			loserID = result.Player2ID
		}
		// Players who have since cleared their display name still count
		// against their opponents.
		if winner, ok := stats[result.WinnerID]; ok {
			winner.MatchesPlayed++
			winner.Wins++
			winner.headToHeadWins[loserID]++
		}
		if loser, ok := stats[loserID]; ok {
			loser.MatchesPlayed++
			loser.Losses++
		}
	}

	for _, entry := range ordered {
		entry.Points = entry.Wins*PointsPerWin + entry.Losses*PointsPerLoss
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Points != ordered[j].Points {
			return ordered[i].Points > ordered[j].Points
		}
		return lessByName(ordered[i], ordered[j])
	})

	sortStandingsByTiebreakers(ordered)

	standings := make([]Standing, 0, len(ordered))
	for i, entry := range ordered {
		entry.Rank = i + 1
		standings = append(standings, entry.Standing)
	}
	return standings
}

// sortStandingsByTiebreakers reorders each group of players level on points
// by head-to-head wins inside the group, then total wins, then name.
func sortStandingsByTiebreakers(ordered []*playerStats) {
	if len(ordered) < 2 {
		return
	}

	start := 0
	for start < len(ordered) {
		end := start + 1
		for end < len(ordered) && ordered[end].Points == ordered[start].Points {
			end++
		}

		if end-start > 1 {
			group := ordered[start:end]
			groupSet := make(map[string]struct{}, len(group))
			for _, player := range group {
				groupSet[player.PlayerID] = struct{}{}
			}

			sort.SliceStable(group, func(i, j int) bool {
				headToHeadI := headToHeadWins(group[i], groupSet)
				headToHeadJ := headToHeadWins(group[j], groupSet)
				if headToHeadI != headToHeadJ {
					return headToHeadI > headToHeadJ
				}
				if group[i].Wins != group[j].Wins {
					return group[i].Wins > group[j].Wins
				}
				return lessByName(group[i], group[j])
			})
		}

		start = end
	}
}

func headToHeadWins(player *playerStats, group map[string]struct{}) int {
	total := 0
	for opponentID, wins := range player.headToHeadWins {
		if _, ok := group[opponentID]; ok {
			total += wins
		}
	}
	return total
}

func lessByName(a, b *playerStats) bool {
	nameA, nameB := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
	if nameA != nameB {
		return nameA < nameB
	}
	return a.PlayerID < b.PlayerID
}

// Record is a player's win/loss count over completed matches.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// RecordFor counts playerID's wins and losses in matches.
func RecordFor(playerID string, matches []dbq.MatchDetail) Record {
	var record Record
	for _, match := range matches {
		if match.Status != StatusCompleted || !match.WinnerID.Valid {
			continue
		}
		if match.Player1ID != playerID && match.Player2ID != playerID {
			continue
		}
		if match.WinnerID.String == playerID {
			record.Wins++
		} else {
			record.Losses++
		}
	}
	return record
}
