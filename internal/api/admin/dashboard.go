// internal/api/admin/dashboard.go
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/league"
)

type dashboardCounts struct {
	Users            int64 `json:"users"`
	Admins           int64 `json:"admins"`
	PendingMatches   int64 `json:"pending_matches"`
	CompletedMatches int64 `json:"completed_matches"`
}

type dailyCount struct {
	Date    string `json:"date"`
	Matches int    `json:"matches"`
}

type dashboardResponse struct {
	Counts        dashboardCounts     `json:"counts"`
	RecentMatches []apiutil.MatchView `json:"recent_matches"`
	Activity      []dailyCount        `json:"activity"`
}

// GET /api/v1/admin/dashboard
func HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := begin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	resp, err := loadDashboard(ctx, deps.DB.Queries, now)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to load dashboard")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, resp)
}

func loadDashboard(ctx context.Context, q *dbq.Queries, now time.Time) (dashboardResponse, error) {
	var (
		resp    dashboardResponse
		recent  []dbq.MatchDetail
		created []time.Time
	)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(dashboardActivityDays - 1))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		resp.Counts.Users, err = q.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		resp.Counts.Admins, err = q.CountUsersByRole(gctx, authz.RoleAdmin)
		return err
	})
	g.Go(func() (err error) {
		resp.Counts.PendingMatches, err = q.CountMatchesByStatus(gctx, league.StatusPending)
		return err
	})
	g.Go(func() (err error) {
		resp.Counts.CompletedMatches, err = q.CountMatchesByStatus(gctx, league.StatusCompleted)
		return err
	})
	g.Go(func() (err error) {
		recent, err = q.ListRecentMatches(gctx, dashboardRecentLimit)
		return err
	})
	g.Go(func() (err error) {
		created, err = q.ListMatchCreatedTimesSince(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboardResponse{}, err
	}

	resp.RecentMatches = apiutil.NewMatchViews(recent)
	resp.Activity = bucketByDay(created, since, dashboardActivityDays)
	return resp, nil
}

// bucketByDay counts times per UTC day for days days starting at since,
// oldest first. Days without matches are reported as zero.
func bucketByDay(times []time.Time, since time.Time, days int) []dailyCount {
	buckets := make([]dailyCount, days)
	index := make(map[string]int, days)
	for i := range buckets {
		date := since.AddDate(0, 0, i).Format(apiutil.DateLayout)
		buckets[i].Date = date
		index[date] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format(apiutil.DateLayout)]; ok {
			buckets[i].Matches++
		}
	}
	return buckets
}
