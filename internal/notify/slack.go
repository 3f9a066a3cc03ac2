// Package notify delivers tracker signals to Slack. The core only decides
// that something is notification-worthy; this package is the collaborator
// that carries the message out.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"
	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
)

// slackPoster is the subset of the Slack client used here, extracted so
// tests can fake message delivery
type slackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier subscribes to tracker events and posts to the configured
// alerts channel. Settings are re-read per event so toggling notifications
// in the database takes effect without a restart.
type SlackNotifier struct {
	db        *gorm.DB
	newClient func(token string) slackPoster
}

// NewSlackNotifier creates a Slack notifier backed by the settings row
func NewSlackNotifier(db *gorm.DB) *SlackNotifier {
	return &SlackNotifier{
		db: db,
		newClient: func(token string) slackPoster {
			return slack.New(token)
		},
	}
}

// Register subscribes the notifier to the events it delivers
func (n *SlackNotifier) Register(bus *events.Bus) {
	bus.Subscribe(events.EventNewIssue, "slack-notifier", n.handleNewIssue)
	bus.Subscribe(events.EventAnomalyDetected, "slack-notifier", n.handleAnomaly)
}

func (n *SlackNotifier) settings() *database.NotificationSettings {
	settings, err := database.GetNotificationSettings(n.db)
	if err != nil {
		log.Printf("Warning: could not load notification settings: %v", err)
		return nil
	}
	if !settings.IsActive() {
		return nil
	}
	return settings
}

func (n *SlackNotifier) post(settings *database.NotificationSettings, text string) {
	client := n.newClient(settings.BotToken)
	_, _, err := client.PostMessage(
		settings.AlertsChannel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		log.Printf("Failed to post Slack notification: %v", err)
	}
}

func (n *SlackNotifier) handleNewIssue(payload events.Payload) {
	settings := n.settings()
	if settings == nil || payload.Issue == nil {
		return
	}

	issue := payload.Issue
	text := fmt.Sprintf("%s *New issue:* `%s`\n%s\nPlatform: %s | Severity: %s | Fingerprint: `%s`",
		severityEmoji(issue.Severity), issue.ErrorType, issue.Message,
		issue.Platform, issue.Severity, issue.Fingerprint)
	n.post(settings, text)
}

func (n *SlackNotifier) handleAnomaly(payload events.Payload) {
	settings := n.settings()
	if settings == nil || payload.Extra == nil {
		return
	}

	text := fmt.Sprintf(":chart_with_upwards_trend: *Anomaly detected:* `%v` on %v\nLevel: %v | Current count: %v (%.1f std devs above baseline)",
		payload.Extra["error_type"], payload.Extra["platform"],
		payload.Extra["level"], payload.Extra["current_count"],
		payload.Extra["std_devs_above"])
	n.post(settings, text)
}

func severityEmoji(severity database.Severity) string {
	switch severity {
	case database.SeverityCritical:
		return ":red_circle:"
	case database.SeverityHigh:
		return ":large_orange_circle:"
	case database.SeverityMedium:
		return ":large_yellow_circle:"
	default:
		return ":large_blue_circle:"
	}
}
