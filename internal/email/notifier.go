package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/Courtside/internal/db/dbq"
)

const sendTimeout = 5 * time.Second

type NotifierOptions struct {
	From       string
	BaseURL    string
	LeagueName string
}

// Notifier e-mails league events. A nil Notifier, or one without a sender,
// silently does nothing.
type Notifier struct {
	sender  EmailSender
	queries *dbq.Queries
	opts    NotifierOptions
}

func NewNotifier(sender EmailSender, q *dbq.Queries, opts NotifierOptions) *Notifier {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Notifier{sender: sender, queries: q, opts: opts}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.sender != nil
}

// Notifications e-mails each notification to its recipient. Call it after
// the notifications have committed.
func (n *Notifier) Notifications(ctx context.Context, notifications []dbq.Notification, logger *zerolog.Logger) {
	if !n.enabled() || n.queries == nil {
		return
	}

	for _, notification := range notifications {
		user, err := n.queries.GetUser(ctx, notification.UserID)
		if err != nil {
			if logger != nil {
				logger.Error().Err(err).Str("user_id", notification.UserID).Msg("Failed to load user for notification email")
			}
			continue
		}
		recipient := strings.TrimSpace(user.Email)
		if recipient == "" {
			continue
		}

		link := ""
		if notification.Link != "" {
			link = n.opts.BaseURL + notification.Link
		}
		msg, err := BuildNotificationEmail(NotificationDetails{
			LeagueName:    n.opts.LeagueName,
			RecipientName: user.DisplayName,
			Message:       notification.Message,
			Link:          link,
		})
		if err != nil {
			if logger != nil {
				logger.Error().Err(err).Int64("notification_id", notification.ID).Msg("Failed to build notification email")
			}
			continue
		}
		n.sendAsync(ctx, recipient, msg, logger)
	}
}

// Invite e-mails a new user their temporary password.
func (n *Notifier) Invite(ctx context.Context, details InviteDetails, logger *zerolog.Logger) {
	if !n.enabled() {
		return
	}
	details.LeagueName = n.opts.LeagueName
	if details.LoginURL == "" && n.opts.BaseURL != "" {
		details.LoginURL = n.opts.BaseURL + "/login"
	}
	msg, err := BuildInviteEmail(details)
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Failed to build invite email")
		}
		return
	}
	n.sendAsync(ctx, details.Email, msg, logger)
}

// PasswordReset e-mails a reset link.
func (n *Notifier) PasswordReset(ctx context.Context, recipient, link string, logger *zerolog.Logger) {
	if !n.enabled() || link == "" {
		return
	}
	msg, err := BuildResetEmail(ResetDetails{LeagueName: n.opts.LeagueName, Link: link})
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Failed to build password reset email")
		}
		return
	}
	n.sendAsync(ctx, recipient, msg, logger)
}

func (n *Notifier) sendAsync(ctx context.Context, recipient string, msg Message, logger *zerolog.Logger) {
	go func() {
		sendCtx, cancel := newEmailContext(ctx, sendTimeout)
		defer cancel()
		if err := n.sender.SendFrom(sendCtx, recipient, msg, n.opts.From); err != nil && logger != nil {
			logger.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to send email")
		}
	}()
}
