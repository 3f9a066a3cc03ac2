package database

import "time"

// TrackerSettings controls deduplication and analytics behavior
type TrackerSettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Enabled                  bool      `gorm:"default:true" json:"enabled"`
	ReopenWindowHours        int       `gorm:"default:24" json:"reopen_window_hours"`
	CascadeWindowSeconds     int       `gorm:"default:300" json:"cascade_window_seconds"`
	CascadeMinProbability    float64   `gorm:"type:decimal(3,2);default:0.50" json:"cascade_min_probability"`
	BurstGapSeconds          int       `gorm:"default:60" json:"burst_gap_seconds"`
	BurstMinEvents           int       `gorm:"default:5" json:"burst_min_events"`
	AnomalySensitivity       float64   `gorm:"type:decimal(3,1);default:2.0" json:"anomaly_sensitivity"`
	AlertCooldownMinutes     int       `gorm:"default:120" json:"alert_cooldown_minutes"`
	PatternWindowDays        int       `gorm:"default:30" json:"pattern_window_days"`
	BaselineWindowDays       int       `gorm:"default:30" json:"baseline_window_days"`
	BaselineIntervalMinutes  int       `gorm:"default:60" json:"baseline_interval_minutes"`
	CascadeIntervalMinutes   int       `gorm:"default:15" json:"cascade_interval_minutes"`
	PatternIntervalMinutes   int       `gorm:"default:60" json:"pattern_interval_minutes"`
	SimilarityCandidateLimit int       `gorm:"default:100" json:"similarity_candidate_limit"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (TrackerSettings) TableName() string {
	return "tracker_settings"
}

// NewDefaultTrackerSettings returns settings with default values
func NewDefaultTrackerSettings() *TrackerSettings {
	return &TrackerSettings{
		Enabled:                  true,
		ReopenWindowHours:        24,
		CascadeWindowSeconds:     300,
		CascadeMinProbability:    0.50,
		BurstGapSeconds:          60,
		BurstMinEvents:           5,
		AnomalySensitivity:       2.0,
		AlertCooldownMinutes:     120,
		PatternWindowDays:        30,
		BaselineWindowDays:       30,
		BaselineIntervalMinutes:  60,
		CascadeIntervalMinutes:   15,
		PatternIntervalMinutes:   60,
		SimilarityCandidateLimit: 100,
	}
}

// NotificationSettings stores Slack notification configuration
type NotificationSettings struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BotToken      string    `gorm:"type:text" json:"bot_token"`
	AlertsChannel string    `gorm:"type:varchar(255)" json:"alerts_channel"`
	Enabled       bool      `gorm:"default:false" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (NotificationSettings) TableName() string {
	return "notification_settings"
}

// IsConfigured returns true if the required Slack fields are set
func (s *NotificationSettings) IsConfigured() bool {
	return s.BotToken != "" && s.AlertsChannel != ""
}

// IsActive returns true if notifications are enabled and configured
func (s *NotificationSettings) IsActive() bool {
	return s.Enabled && s.IsConfigured()
}
