// Package audit appends admin actions to the admin log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/Courtside/internal/db/dbq"
)

const (
	ActionSetRole        = "set_role"
	ActionDeleteUser     = "delete_user"
	ActionInviteUser     = "invite_user"
	ActionResetPassword  = "reset_password"
	ActionUpdateSettings = "update_settings"

	TargetUser     = "user"
	TargetMatch    = "match"
	TargetSettings = "settings"
)

// MatchAction is the action logged when an admin moves a match to status.
func MatchAction(status string) string {
	return "match_" + status
}

type Entry struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	// Details is stored as JSON; nil becomes {}.
	Details any
}

// Record writes entry with a fresh id. Call it with transaction-bound
// queries so the log commits together with the change it describes.
func Record(ctx context.Context, q *dbq.Queries, entry Entry, at time.Time) error {
	if q == nil {
		return errors.New("queries are required")
	}
	if entry.ActorID == "" || entry.Action == "" {
		return errors.New("admin log actor and action are required")
	}

	details := []byte("{}")
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode admin log details: %w", err)
		}
		details = encoded
	}

	return q.CreateAdminLog(ctx, dbq.CreateAdminLogParams{
		ID:         uuid.NewString(),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Details:    string(details),
		CreatedAt:  at.UTC(),
	})
}
