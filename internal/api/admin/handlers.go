// internal/api/admin/handlers.go
package admin

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/identity"
	"github.com/codr1/Courtside/internal/league"
)

const (
	adminQueryTimeout     = 5 * time.Second
	directoryCallTimeout  = 15 * time.Second
	dashboardRecentLimit  = 5
	dashboardActivityDays = 7
	defaultListLimit      = 50
	maxListLimit          = 200
)

// Deps are the admin console's collaborators. Notifier may be nil.
type Deps struct {
	DB        *db.DB
	League    *league.Service
	Directory identity.Directory
	Notifier  *email.Notifier
}

var (
	deps     Deps
	depsOnce sync.Once
)

func InitHandlers(d Deps) {
	if d.DB == nil || d.League == nil || d.Directory == nil {
		return
	}
	depsOnce.Do(func() {
		deps = d
	})
}

// begin checks initialization and the admin role. Routes are also wrapped
// in WithAdminAuth; the check here keeps handlers safe on their own.
func begin(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, bool) {
	if deps.DB == nil {
		log.Ctx(r.Context()).Error().Msg("Admin handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil, false
	}
	return apiutil.RequireAdmin(w, r)
}

func pathUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := strings.TrimSpace(r.PathValue("uid"))
	if uid == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "User id is required")
		return "", false
	}
	return uid, true
}
