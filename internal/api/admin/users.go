// internal/api/admin/users.go
package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/audit"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/identity"
)

type inviteRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Role        string `json:"role" validate:"omitempty,oneof=admin user"`
}

func (r *inviteRequest) Normalize() {
	r.Email = apiutil.NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

type inviteResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	TempPassword string `json:"temp_password"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}

type resetResponse struct {
	ResetLink string `json:"reset_link"`
}

// GET /api/v1/admin/users
func HandleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := begin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	users, err := deps.DB.Queries.ListUsers(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list users")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}

	views := make([]apiutil.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, apiutil.NewUserView(u))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, views)
}

// POST /api/v1/admin/users
func HandleInviteUser(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	emailAddr, displayName := req.Email, req.DisplayName
	role := req.Role
	if role == "" {
		role = authz.RoleUser
	}

	ctx, cancel := context.WithTimeout(r.Context(), directoryCallTimeout)
	defer cancel()

	if _, err := deps.DB.Queries.GetUserByEmail(ctx, emailAddr); err == nil {
		apiutil.WriteError(w, http.StatusConflict, "A user with that email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to check existing user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to invite user")
		return
	}

	tempPassword, err := identity.TemporaryPassword()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate temporary password")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to invite user")
		return
	}

	uid, err := deps.Directory.CreateUser(ctx, emailAddr, displayName, tempPassword)
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			apiutil.WriteError(w, http.StatusConflict, "A user with that email already exists")
			return
		}
		logger.Error().Err(err).Msg("Failed to create directory user")
		apiutil.WriteError(w, http.StatusBadGateway, "Failed to create user with the identity provider")
		return
	}

	now := time.Now().UTC()
	var user dbq.User
	err = deps.DB.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		user, err = tx.Queries.UpsertUser(ctx, dbq.CreateUserParams{
			ID:          uid,
			Email:       emailAddr,
			DisplayName: displayName,
			Role:        role,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx.Queries, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionInviteUser,
			TargetType: audit.TargetUser,
			TargetID:   uid,
			Details:    map[string]string{"email": emailAddr, "role": role},
		}, now)
	})
	if err != nil {
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to store invited user")
		if delErr := deps.Directory.DeleteUser(ctx, uid); delErr != nil {
			logger.Error().Err(delErr).Str("uid", uid).Msg("Failed to remove directory user after invite failure")
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to invite user")
		return
	}

	deps.Notifier.Invite(r.Context(), email.InviteDetails{
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		TempPassword: tempPassword,
	}, logger)

	logger.Info().Str("uid", uid).Str("role", role).Msg("User invited")
	_ = apiutil.WriteJSON(w, http.StatusCreated, inviteResponse{
		UID:          user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         user.Role,
		TempPassword: tempPassword,
	})
}

// PATCH /api/v1/admin/users/{uid}
func HandleSetRole(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	if uid == actor.ID {
		apiutil.WriteError(w, http.StatusConflict, "You cannot change your own role")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	var updated dbq.User
	err := deps.DB.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		updated, err = tx.Queries.UpdateUserRole(ctx, dbq.UpdateUserRoleParams{
			ID:        uid,
			Role:      req.Role,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx.Queries, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionSetRole,
			TargetType: audit.TargetUser,
			TargetID:   uid,
			Details:    map[string]string{"role": req.Role, "previous": current.Role},
		}, now)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to update role")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	logger.Info().Str("uid", uid).Str("role", req.Role).Msg("User role updated")
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewUserView(updated))
}

// DELETE /api/v1/admin/users/{uid}
func HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	if uid == actor.ID {
		apiutil.WriteError(w, http.StatusConflict, "You cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), directoryCallTimeout)
	defer cancel()

	target, err := deps.DB.Queries.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to load user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	if err := deps.Directory.DeleteUser(ctx, uid); err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to delete directory user")
		apiutil.WriteError(w, http.StatusBadGateway, "Failed to delete user from the identity provider")
		return
	}

	now := time.Now().UTC()
	err = deps.DB.RunInTx(ctx, func(tx *db.DB) error {
		if _, err := tx.Queries.DeleteUser(ctx, uid); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Queries, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionDeleteUser,
			TargetType: audit.TargetUser,
			TargetID:   uid,
			Details:    map[string]string{"email": target.Email},
		}, now)
	})
	if err != nil {
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to delete user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	logger.Info().Str("uid", uid).Msg("User deleted")
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/admin/users/{uid}/reset
func HandleResetUserPassword(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), directoryCallTimeout)
	defer cancel()

	target, err := deps.DB.Queries.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to load user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	if strings.TrimSpace(target.Email) == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "User has no email address")
		return
	}

	link, err := deps.Directory.ResetPassword(ctx, uid, target.Email)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			apiutil.WriteError(w, http.StatusNotFound, "User not found with the identity provider")
		case errors.Is(err, identity.ErrUnsupported):
			apiutil.WriteError(w, http.StatusNotImplemented, "Password reset is not supported by the identity provider")
		default:
			logger.Error().Err(err).Str("uid", uid).Msg("Failed to reset password")
			apiutil.WriteError(w, http.StatusBadGateway, "Failed to reset password")
		}
		return
	}

	if err := audit.Record(ctx, deps.DB.Queries, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionResetPassword,
		TargetType: audit.TargetUser,
		TargetID:   uid,
	}, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Str("uid", uid).Msg("Failed to record password reset")
	}

	deps.Notifier.PasswordReset(r.Context(), target.Email, link, logger)
	_ = apiutil.WriteJSON(w, http.StatusOK, resetResponse{ResetLink: link})
}
