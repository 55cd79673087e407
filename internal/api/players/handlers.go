// internal/api/players/handlers.go
package players

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/avatars"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/league"
	"github.com/codr1/Courtside/internal/phone"
)

const (
	playersQueryTimeout = 5 * time.Second
	avatarUploadTimeout = 30 * time.Second
	multipartOverhead   = 1 << 20
)

var (
	queries        *dbq.Queries
	avatarStore    avatars.Store
	maxAvatarBytes int64
	initOnce       sync.Once
)

// InitHandlers wires the query layer and the avatar store. maxUploadBytes
// caps avatar uploads.
func InitHandlers(q *dbq.Queries, store avatars.Store, maxUploadBytes int64) {
	if q == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		avatarStore = store
		maxAvatarBytes = maxUploadBytes
	})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	City        string `json:"city" validate:"omitempty,max=80"`
}

type playerDetailResponse struct {
	Player  apiutil.PlayerView  `json:"player"`
	Record  league.Record       `json:"record"`
	Matches []apiutil.MatchView `json:"matches"`
}

func loadQueries(w http.ResponseWriter, r *http.Request) *dbq.Queries {
	if queries == nil {
		log.Ctx(r.Context()).Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
	}
	return queries
}

// PUT /api/v1/me
func HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		apiutil.WriteValidationError(w, apiutil.FieldError{Field: "display_name", Reason: "is required"})
		return
	}

	var phoneNumber sql.NullString
	if strings.TrimSpace(req.Phone) != "" {
		normalized := phone.Normalize(req.Phone)
		if normalized == "" {
			apiutil.WriteValidationError(w, apiutil.FieldError{Field: "phone", Reason: "is not a valid phone number"})
			return
		}
		phoneNumber = sql.NullString{String: normalized, Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), playersQueryTimeout)
	defer cancel()

	updated, err := q.UpdateUserProfile(ctx, dbq.UpdateUserProfileParams{
		ID:          user.ID,
		DisplayName: displayName,
		Phone:       phoneNumber,
		City:        apiutil.ToNullString(req.City),
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Msg("Failed to update profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewUserView(updated))
}

// POST /api/v1/me/avatar
func HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if avatarStore == nil {
		logger.Error().Msg("Avatar store not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiutil.WriteError(w, http.StatusRequestEntityTooLarge, avatars.ErrTooLarge.Error())
			return
		}
		apiutil.WriteError(w, http.StatusBadRequest, "Expected a multipart form with an avatar file")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("avatar")
	if err != nil {
		apiutil.WriteValidationError(w, apiutil.FieldError{Field: "avatar", Reason: "is required"})
		return
	}
	defer file.Close()

	upload, err := avatars.Read(file, maxAvatarBytes)
	if err != nil {
		switch {
		case errors.Is(err, avatars.ErrTooLarge):
			apiutil.WriteError(w, http.StatusRequestEntityTooLarge, avatars.ErrTooLarge.Error())
		case errors.Is(err, avatars.ErrUnsupportedType):
			apiutil.WriteError(w, http.StatusUnsupportedMediaType, avatars.ErrUnsupportedType.Error())
		case errors.Is(err, avatars.ErrEmpty):
			apiutil.WriteError(w, http.StatusBadRequest, avatars.ErrEmpty.Error())
		default:
			logger.Error().Err(err).Msg("Failed to read avatar upload")
			apiutil.WriteError(w, http.StatusBadRequest, "Failed to read avatar")
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), avatarUploadTimeout)
	defer cancel()

	current, err := q.GetUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Msg("Failed to load user for avatar")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update avatar")
		return
	}

	url, err := avatars.Save(ctx, avatarStore, user.ID, upload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store avatar")
		apiutil.WriteError(w, http.StatusBadGateway, "Failed to store avatar")
		return
	}

	updated, err := q.UpdateUserAvatar(ctx, dbq.UpdateUserAvatarParams{
		ID:        user.ID,
		AvatarURL: url,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save avatar url")
		if key, ok := avatarStore.KeyFromURL(url); ok {
			_ = avatarStore.Delete(ctx, key)
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update avatar")
		return
	}

	if current.AvatarURL.Valid {
		if key, ok := avatarStore.KeyFromURL(current.AvatarURL.String); ok {
			if err := avatarStore.Delete(ctx, key); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("Failed to delete replaced avatar")
			}
		}
	}

	logger.Info().Str("content_type", upload.ContentType).Int("bytes", len(upload.Data)).Msg("Avatar updated")
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewUserView(updated))
}

// GET /api/v1/players
func HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), playersQueryTimeout)
	defer cancel()

	users, err := q.ListPlayers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list players")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load players")
		return
	}

	views := make([]apiutil.PlayerView, 0, len(users))
	for _, u := range users {
		views = append(views, apiutil.NewPlayerView(u))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, views)
}

// GET /api/v1/players/{id}
func HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	playerID := strings.TrimSpace(r.PathValue("id"))
	if playerID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "Player id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), playersQueryTimeout)
	defer cancel()

	player, err := q.GetUser(ctx, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Player not found")
			return
		}
		logger.Error().Err(err).Str("player_id", playerID).Msg("Failed to load player")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load player")
		return
	}

	history, err := q.ListPlayerHistory(ctx, playerID)
	if err != nil {
		logger.Error().Err(err).Str("player_id", playerID).Msg("Failed to load match history")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load player")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, playerDetailResponse{
		Player:  apiutil.NewPlayerView(player),
		Record:  league.RecordFor(playerID, history),
		Matches: apiutil.NewMatchViews(history),
	})
}
