package dbq

// Statements lists every query in the package for schema checks.
var Statements = map[string]string{
	"CreateAdminLog":                 createAdminLog,
	"ListAdminLogs":                  listAdminLogs,
	"GetLeagueSettings":              getLeagueSettings,
	"UpdateLeagueSettings":           updateLeagueSettings,
	"CreateLocalCredential":          createLocalCredential,
	"GetLocalCredential":             getLocalCredential,
	"GetLocalCredentialByEmail":      getLocalCredentialByEmail,
	"UpdateLocalPassword":            updateLocalPassword,
	"DeleteLocalCredential":          deleteLocalCredential,
	"CreatePasswordReset":            createPasswordReset,
	"GetPasswordReset":               getPasswordReset,
	"MarkPasswordResetUsed":          markPasswordResetUsed,
	"CreateMatch":                    createMatch,
	"GetMatch":                       getMatch,
	"GetMatchDetail":                 getMatchDetail,
	"ListMatchesForPlayer":           listMatchesForPlayer,
	"ListChallengesSent":             listChallengesSent,
	"ListPlayerHistory":              listPlayerHistory,
	"ListMatchesByStatus":            listMatchesByStatus,
	"ListRecentMatches":              listRecentMatches,
	"ListMatchCreatedTimesSince":     listMatchCreatedTimesSince,
	"ListStaleChallenges":            listStaleChallenges,
	"UpdateMatchStatus":              updateMatchStatus,
	"CompleteMatch":                  completeMatch,
	"CountMatchesByStatus":           countMatchesByStatus,
	"ListDecidedMatches":             listDecidedMatches,
	"CreateNotification":             createNotification,
	"GetNotification":                getNotification,
	"ListNotificationsForUser":       listNotificationsForUser,
	"CountUnreadNotifications":       countUnreadNotifications,
	"GetNotificationForUser":         getNotificationForUser,
	"MarkNotificationRead":           markNotificationRead,
	"MarkChallengeNotificationsRead": markChallengeNotificationsRead,
	"DeleteReadNotificationsBefore":  deleteReadNotificationsBefore,
	"CreateUser":                     createUser,
	"UpsertUser":                     upsertUser,
	"GetUser":                        getUser,
	"GetUserByEmail":                 getUserByEmail,
	"ListUsers":                      listUsers,
	"ListPlayers":                    listPlayers,
	"UpdateUserProfile":              updateUserProfile,
	"UpdateUserAvatar":               updateUserAvatar,
	"UpdateUserRole":                 updateUserRole,
	"DeleteUser":                     deleteUser,
	"CountUsers":                     countUsers,
	"CountUsersByRole":               countUsersByRole,
}
