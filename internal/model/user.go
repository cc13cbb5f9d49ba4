package model

import "time"

// Role controls what a user may do in the tracker.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleUser     Role = "user"
)

// EmailPreference configures the email notification channel for a user.
type EmailPreference struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency,omitempty"` // immediate, daily, weekly
}

// SlackPreference configures the Slack notification channel for a user.
type SlackPreference struct {
	Enabled     bool   `json:"enabled"`
	SlackUserID string `json:"slackUserId,omitempty"`
}

// NotificationPreferences groups per-channel opt-ins.
type NotificationPreferences struct {
	Email EmailPreference `json:"email"`
	Slack SlackPreference `json:"slack"`
}

// User is a directory entry. Documents reference users through AssignedTo;
// users do not own documents.
type User struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Email       string                  `json:"email"`
	Role        Role                    `json:"role"`
	IsActive    bool                    `json:"isActive"`
	Preferences NotificationPreferences `json:"notificationPreferences"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}
