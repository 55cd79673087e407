package dbq

import (
	"database/sql"
	"time"
)

type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	Phone       sql.NullString
	City        sql.NullString
	AvatarURL   sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Match struct {
	ID          int64
	Player1ID   string
	Player2ID   string
	Status      string
	Notes       string
	Score       sql.NullString
	WinnerID    sql.NullString
	ReportedBy  sql.NullString
	ScheduledAt sql.NullTime
	CompletedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MatchDetail is a match joined with both players' display names and emails.
type MatchDetail struct {
	Match
	Player1Name  string
	Player1Email string
	Player2Name  string
	Player2Email string
}

type Notification struct {
	ID        int64
	UserID    string
	Type      string
	Message   string
	Link      string
	MatchID   sql.NullInt64
	Read      bool
	CreatedAt time.Time
}

type AdminLog struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Details    string
	CreatedAt  time.Time
}

type LeagueSetting struct {
	SeasonStart sql.NullTime
	SeasonEnd   sql.NullTime
	MaxSets     int64
	UpdatedAt   sql.NullTime
	UpdatedBy   sql.NullString
}

type LocalCredential struct {
	Subject      string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PasswordReset struct {
	TokenHash string
	Subject   string
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	CreatedAt time.Time
}
