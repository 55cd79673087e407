package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/authz"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ValidationError carries per-field messages for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e ValidationError) Error() string {
	return "validation failed"
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

var ErrMissingBody = errors.New("missing request body")

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrMissingBody
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrMissingBody
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// DecodeAndValidate decodes a JSON body into dst, normalizes it when dst is a
// Normalizer, and runs its validate tags. On failure it writes the 400
// response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSON(r, dst); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("Invalid request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	if err := Validate(dst); err != nil {
		WriteValidationError(w, err)
		return false
	}
	return true
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, errorResponse{Error: message})
}

// WriteValidationError writes a 400 with field messages when err carries
// them.
func WriteValidationError(w http.ResponseWriter, err error) {
	var verr ValidationError
	if errors.As(err, &verr) {
		_ = WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Fields: verr.Fields})
		return
	}
	var ferr FieldError
	if errors.As(err, &ferr) {
		_ = WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:  ferr.Error(),
			Fields: map[string]string{ferr.Field: ferr.Reason},
		})
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}

// RequireUser returns the authenticated user or writes a 401.
func RequireUser(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, bool) {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// RequireAdmin returns the authenticated admin or writes a 401 or 403.
func RequireAdmin(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, bool) {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())
	if err := authz.RequireRole(r.Context(), authz.RoleAdmin); err != nil {
		switch {
		case errors.Is(err, authz.ErrUnauthenticated):
			logger.Warn().Msg("Admin access denied: unauthenticated")
			WriteError(w, http.StatusUnauthorized, "Authentication required")
		case errors.Is(err, authz.ErrForbidden):
			logEvent := logger.Warn()
			if user != nil {
				logEvent = logEvent.Str("user_id", user.ID)
			}
			logEvent.Msg("Admin access denied: forbidden")
			WriteError(w, http.StatusForbidden, "Admin access required")
		default:
			logger.Error().Err(err).Msg("Admin access denied: error")
			WriteError(w, http.StatusInternalServerError, "Failed to authorize request")
		}
		return nil, false
	}
	return user, true
}
