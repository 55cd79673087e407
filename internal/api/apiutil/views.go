package apiutil

import (
	"time"

	"github.com/codr1/Courtside/internal/db/dbq"
)

type UserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Phone       string    `json:"phone,omitempty"`
	City        string    `json:"city,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewUserView(u dbq.User) UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Phone:       NullString(u.Phone),
		City:        NullString(u.City),
		AvatarURL:   NullString(u.AvatarURL),
		CreatedAt:   u.CreatedAt.UTC(),
	}
}

// PlayerView is what other players see; e-mail and phone stay private.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	City        string `json:"city,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func NewPlayerView(u dbq.User) PlayerView {
	return PlayerView{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		City:        NullString(u.City),
		AvatarURL:   NullString(u.AvatarURL),
	}
}

type MatchView struct {
	ID          int64      `json:"id"`
	Player1ID   string     `json:"player1_id"`
	Player1Name string     `json:"player1_name"`
	Player2ID   string     `json:"player2_id"`
	Player2Name string     `json:"player2_name"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	Score       string     `json:"score,omitempty"`
	WinnerID    string     `json:"winner_id,omitempty"`
	ReportedBy  string     `json:"reported_by,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func NewMatchView(m dbq.MatchDetail) MatchView {
	return MatchView{
		ID:          m.ID,
		Player1ID:   m.Player1ID,
		Player1Name: m.Player1Name,
		Player2ID:   m.Player2ID,
		Player2Name: m.Player2Name,
		Status:      m.Status,
		Notes:       m.Notes,
		Score:       NullString(m.Score),
		WinnerID:    NullString(m.WinnerID),
		ReportedBy:  NullString(m.ReportedBy),
		ScheduledAt: nullTimePtr(m.ScheduledAt),
		CompletedAt: nullTimePtr(m.CompletedAt),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func NewMatchViews(matches []dbq.MatchDetail) []MatchView {
	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, NewMatchView(m))
	}
	return views
}

type NotificationView struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	MatchID   *int64    `json:"match_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNotificationView(n dbq.Notification) NotificationView {
	view := NotificationView{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if n.MatchID.Valid {
		id := n.MatchID.Int64
		view.MatchID = &id
	}
	return view
}
