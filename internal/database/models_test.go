package database

import (
	"testing"
	"time"
)

func TestJSONBScanValue(t *testing.T) {
	original := JSONB{"user_id": "42", "path": "/checkout"}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var restored JSONB
	if err := restored.Scan(value); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if restored["user_id"] != "42" || restored["path"] != "/checkout" {
		t.Errorf("round trip lost data: %v", restored)
	}
}

func TestJSONBScanNil(t *testing.T) {
	var j JSONB
	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if j == nil {
		t.Error("Scan(nil) should produce an empty map, not nil")
	}
}

func TestJSONBValueNil(t *testing.T) {
	var j JSONB
	value, err := j.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if value != nil {
		t.Errorf("nil JSONB should store as NULL, got %v", value)
	}
}

func TestJSONBScanRejectsNonBytes(t *testing.T) {
	var j JSONB
	if err := j.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestIssueBeforeCreateDefaults(t *testing.T) {
	db := setupTestDB(t)

	issue := &Issue{
		UUID:        "defaults-uuid",
		Fingerprint: "cccc000011112222",
		ErrorType:   "RuntimeError",
	}
	if err := db.Create(issue).Error; err != nil {
		t.Fatalf("failed to create issue: %v", err)
	}

	if issue.FirstSeenAt.IsZero() || issue.LastSeenAt.IsZero() {
		t.Error("seen timestamps should be defaulted on create")
	}
	if !issue.LastSeenAt.Equal(issue.FirstSeenAt) {
		t.Error("LastSeenAt should default to FirstSeenAt")
	}
	if issue.OccurrenceCount != 1 {
		t.Errorf("OccurrenceCount = %d, want 1", issue.OccurrenceCount)
	}
}

func TestIssueBeforeCreateKeepsExplicitValues(t *testing.T) {
	db := setupTestDB(t)

	firstSeen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issue := &Issue{
		UUID:            "explicit-uuid",
		Fingerprint:     "dddd000011112222",
		ErrorType:       "RuntimeError",
		OccurrenceCount: 7,
		FirstSeenAt:     firstSeen,
		LastSeenAt:      firstSeen.Add(time.Hour),
	}
	if err := db.Create(issue).Error; err != nil {
		t.Fatalf("failed to create issue: %v", err)
	}

	if issue.OccurrenceCount != 7 {
		t.Errorf("OccurrenceCount = %d, want 7", issue.OccurrenceCount)
	}
	if !issue.FirstSeenAt.Equal(firstSeen) {
		t.Errorf("FirstSeenAt = %v, want %v", issue.FirstSeenAt, firstSeen)
	}
}

func TestIssueIsOpen(t *testing.T) {
	open := &Issue{Resolved: false}
	closed := &Issue{Resolved: true}
	if !open.IsOpen() {
		t.Error("unresolved issue should be open")
	}
	if closed.IsOpen() {
		t.Error("resolved issue should not be open")
	}
}

func TestCascadePatternIsStrong(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		frequency   int
		want        bool
	}{
		{"high probability and frequency", 0.8, 5, true},
		{"exact thresholds", 0.7, 3, true},
		{"probability too low", 0.69, 10, false},
		{"frequency too low", 0.9, 2, false},
		{"both too low", 0.1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge := &CascadePattern{CascadeProbability: tt.probability, Frequency: tt.frequency}
			if got := edge.IsStrong(); got != tt.want {
				t.Errorf("IsStrong() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationSettingsIsActive(t *testing.T) {
	tests := []struct {
		name     string
		settings NotificationSettings
		want     bool
	}{
		{"configured and enabled", NotificationSettings{BotToken: "xoxb-1", AlertsChannel: "#alerts", Enabled: true}, true},
		{"configured but disabled", NotificationSettings{BotToken: "xoxb-1", AlertsChannel: "#alerts", Enabled: false}, false},
		{"enabled but missing token", NotificationSettings{AlertsChannel: "#alerts", Enabled: true}, false},
		{"enabled but missing channel", NotificationSettings{BotToken: "xoxb-1", Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.IsActive(); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetOrCreateTrackerSettingsSingleton(t *testing.T) {
	db := setupTestDB(t)

	first, err := GetOrCreateTrackerSettings(db)
	if err != nil {
		t.Fatalf("GetOrCreateTrackerSettings() error = %v", err)
	}
	if first.ReopenWindowHours != 24 || first.AnomalySensitivity != 2.0 {
		t.Errorf("unexpected defaults: %+v", first)
	}

	second, err := GetOrCreateTrackerSettings(db)
	if err != nil {
		t.Fatalf("second GetOrCreateTrackerSettings() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same settings row, got %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&TrackerSettings{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 settings row, got %d", count)
	}
}

func TestUpdateTrackerSettingsPersists(t *testing.T) {
	db := setupTestDB(t)

	settings, err := GetOrCreateTrackerSettings(db)
	if err != nil {
		t.Fatalf("GetOrCreateTrackerSettings() error = %v", err)
	}

	settings.AnomalySensitivity = 3.0
	settings.BurstMinEvents = 10
	if err := UpdateTrackerSettings(db, settings); err != nil {
		t.Fatalf("UpdateTrackerSettings() error = %v", err)
	}

	reloaded, err := GetOrCreateTrackerSettings(db)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if reloaded.AnomalySensitivity != 3.0 || reloaded.BurstMinEvents != 10 {
		t.Errorf("settings not persisted: %+v", reloaded)
	}
}
