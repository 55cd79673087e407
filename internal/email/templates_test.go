package email

import (
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestEmailsRenderInsideLayout(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Message, error)
		want  string
	}{
		{
			name: "notification",
			build: func() (Message, error) {
				return BuildNotificationEmail(NotificationDetails{
					LeagueName:    "Baseline & Co",
					RecipientName: "Ana",
					Message:       "Bo accepted your challenge!",
					Link:          "https://league.example.com/matches/3",
				})
			},
			want: `<p>Bo accepted your challenge!</p><p><a href="https://league.example.com/matches/3"`,
		},
		{
			name: "invite",
			build: func() (Message, error) {
				return BuildInviteEmail(InviteDetails{
					LeagueName:   "Baseline & Co",
					DisplayName:  "Ana",
					Email:        "ana@example.com",
					TempPassword: "Temp-123",
				})
			},
			want: `Temporary password: <code>Temp-123</code>`,
		},
		{
			name: "reset",
			build: func() (Message, error) {
				return BuildResetEmail(ResetDetails{
					LeagueName: "Baseline & Co",
					Link:       "https://league.example.com/auth/reset?token=abc",
				})
			},
			want: `<p>We received a request to reset your password.</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			html := msg.HTML
			if !strings.HasPrefix(html, "<!doctype html>") || !strings.HasSuffix(html, "</body></html>") {
				t.Fatalf("expected a full document, got %q", html)
			}
			header := `<h2 style="color:#15803d;">Baseline &amp; Co</h2>`
			headerAt := strings.Index(html, header)
			bodyAt := strings.Index(html, tt.want)
			if headerAt < 0 || bodyAt < headerAt {
				t.Fatalf("expected %q after the league header in %q", tt.want, html)
			}
		})
	}
}

func TestEmailButtonRejectsUnsafeLinks(t *testing.T) {
	msg, err := BuildNotificationEmail(NotificationDetails{
		Message: "Open me",
		Link:    "javascript:alert(1)",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(msg.HTML, "javascript:") {
		t.Fatalf("unsafe link rendered: %q", msg.HTML)
	}
	if !strings.Contains(msg.HTML, string(templ.FailedSanitizationURL)) {
		t.Fatalf("expected sanitized link in %q", msg.HTML)
	}
}
