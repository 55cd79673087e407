// cmd/dbtools/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/config"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/identity"
	"github.com/codr1/Courtside/internal/league"
)

type demoPlayer struct {
	email string
	name  string
	role  string
}

var demoPlayers = []demoPlayer{
	{"admin@courtside.test", "League Admin", authz.RoleAdmin},
	{"serena@courtside.test", "Serena Park", authz.RoleUser},
	{"rafa@courtside.test", "Rafa Ortiz", authz.RoleUser},
	{"steffi@courtside.test", "Steffi Grant", authz.RoleUser},
	{"andre@courtside.test", "Andre Cole", authz.RoleUser},
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	password := flag.String("password", "courtside123", "password for every demo account")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	count, err := database.Queries.CountUsers(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count users")
	}
	if count > 0 {
		log.Info().Int64("users", count).Msg("Database already has users; skipping seed")
		return
	}

	provider, err := identity.New(ctx, cfg, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create identity provider")
	}

	ids := make([]string, 0, len(demoPlayers))
	for _, p := range demoPlayers {
		id, err := seedUser(ctx, database, provider, p, *password)
		if err != nil {
			log.Fatal().Err(err).Str("email", p.email).Msg("Failed to seed user")
		}
		ids = append(ids, id)
		log.Info().Str("email", p.email).Str("role", p.role).Msg("Seeded user")
	}

	if err := seedMatches(ctx, league.NewService(database), ids); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed matches")
	}
	log.Info().Str("provider", provider.Name()).Msg("Seed complete")
}

func seedUser(ctx context.Context, database *db.DB, dir identity.Directory, p demoPlayer, password string) (string, error) {
	subject, err := dir.CreateUser(ctx, p.email, p.name, password)
	if err != nil {
		return "", fmt.Errorf("create identity: %w", err)
	}
	_, err = database.Queries.UpsertUser(ctx, dbq.CreateUserParams{
		ID:          subject,
		Email:       p.email,
		DisplayName: p.name,
		Role:        p.role,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}
	return subject, nil
}

// seedMatches leaves one match in every status. ids[0] is the admin.
func seedMatches(ctx context.Context, svc *league.Service, ids []string) error {
	admin, serena, rafa, steffi, andre := ids[0], ids[1], ids[2], ids[3], ids[4]

	results := []struct {
		challenger, opponent, winner, score string
	}{
		{serena, rafa, serena, "6-4, 6-3"},
		{steffi, andre, andre, "4-6, 6-2, 10-7"},
		{rafa, steffi, rafa, "7-6, 6-4"},
	}
	for _, r := range results {
		outcome, err := svc.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: r.challenger, OpponentID: r.opponent})
		if err != nil {
			return fmt.Errorf("create challenge: %w", err)
		}
		if _, err := svc.RespondToChallenge(ctx, r.opponent, outcome.Match.ID, true); err != nil {
			return fmt.Errorf("accept challenge: %w", err)
		}
		if _, err := svc.ReportScore(ctx, league.ScoreReport{
			ReporterID: r.challenger,
			MatchID:    outcome.Match.ID,
			WinnerID:   r.winner,
			Score:      r.score,
		}); err != nil {
			return fmt.Errorf("report score: %w", err)
		}
	}

	upcoming := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	accepted, err := svc.CreateChallenge(ctx, league.ChallengeParams{
		ChallengerID: andre,
		OpponentID:   serena,
		Notes:        "Court 3 after work?",
		ScheduledAt:  &upcoming,
	})
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	if _, err := svc.RespondToChallenge(ctx, serena, accepted.Match.ID, true); err != nil {
		return fmt.Errorf("accept challenge: %w", err)
	}

	declined, err := svc.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: rafa, OpponentID: andre})
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	if _, err := svc.RespondToChallenge(ctx, andre, declined.Match.ID, false); err != nil {
		return fmt.Errorf("decline challenge: %w", err)
	}

	rejected, err := svc.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: serena, OpponentID: steffi})
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	if _, err := svc.ReviewMatch(ctx, admin, rejected.Match.ID, league.StatusRejected); err != nil {
		return fmt.Errorf("review match: %w", err)
	}

	if _, err := svc.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: steffi, OpponentID: serena}); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}
