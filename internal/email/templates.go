package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

const defaultLeagueName = "Tennis League"

type NotificationDetails struct {
	LeagueName    string
	RecipientName string
	Message       string
	// Link is absolute; empty when there is nothing to open.
	Link string
}

type InviteDetails struct {
	LeagueName   string
	DisplayName  string
	Email        string
	TempPassword string
	LoginURL     string
}

type ResetDetails struct {
	LeagueName string
	Link       string
}

func BuildNotificationEmail(details NotificationDetails) (Message, error) {
	league := leagueName(details.LeagueName)
	lines := []string{
		greeting(details.RecipientName),
		"",
		strings.TrimSpace(details.Message),
	}
	if details.Link != "" {
		lines = append(lines, "", fmt.Sprintf("View it here: %s", details.Link))
	}

	return render(Message{
		Subject: fmt.Sprintf("%s: %s", league, strings.TrimSpace(details.Message)),
		Body:    strings.Join(lines, "\n"),
	}, notificationEmail(league, details))
}

func BuildInviteEmail(details InviteDetails) (Message, error) {
	league := leagueName(details.LeagueName)
	lines := []string{
		greeting(details.DisplayName),
		"",
		fmt.Sprintf("You have been invited to join %s.", league),
		"",
		fmt.Sprintf("Email: %s", details.Email),
		fmt.Sprintf("Temporary password: %s", details.TempPassword),
	}
	if details.LoginURL != "" {
		lines = append(lines, fmt.Sprintf("Sign in: %s", details.LoginURL))
	}
	lines = append(lines, "", "Please change your password after signing in.")

	return render(Message{
		Subject: fmt.Sprintf("You're invited to %s", league),
		Body:    strings.Join(lines, "\n"),
	}, inviteEmail(league, details))
}

func BuildResetEmail(details ResetDetails) (Message, error) {
	league := leagueName(details.LeagueName)
	lines := []string{
		"We received a request to reset your password.",
		"",
		fmt.Sprintf("Reset it here: %s", details.Link),
		"",
		"The link expires in 1 hour. If you did not ask for this, you can ignore this e-mail.",
	}

	return render(Message{
		Subject: fmt.Sprintf("%s password reset", league),
		Body:    strings.Join(lines, "\n"),
	}, resetEmail(league, details))
}

// render fills msg.HTML from one of the components in emails.templ.
// Run `templ generate` after editing that file.
func render(msg Message, component templ.Component) (Message, error) {
	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func leagueName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return defaultLeagueName
}
