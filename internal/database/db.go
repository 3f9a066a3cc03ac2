package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	log.Println("Running database migrations...")

	err := DB.AutoMigrate(
		&Issue{},
		&Occurrence{},
		&CascadePattern{},
		&ErrorBaseline{},
		&TrackerSettings{},
		&NotificationSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults() error {
	log.Println("Initializing default database records...")

	var count int64
	DB.Model(&NotificationSettings{}).Count(&count)
	if count == 0 {
		defaults := &NotificationSettings{
			Enabled: false, // Disabled by default until configured
		}
		if err := DB.Create(defaults).Error; err != nil {
			return fmt.Errorf("failed to create default notification settings: %w", err)
		}
		log.Println("Created default notification settings (disabled)")
	}

	if _, err := GetOrCreateTrackerSettings(DB); err != nil {
		return fmt.Errorf("failed to create default tracker settings: %w", err)
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrCreateTrackerSettings retrieves or creates tracker settings (singleton).
// Accepts a db parameter to support dependency injection, transaction
// contexts, and easier testing.
func GetOrCreateTrackerSettings(db *gorm.DB) (*TrackerSettings, error) {
	var settings TrackerSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = *NewDefaultTrackerSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateTrackerSettings updates tracker settings.
// Uses Save() which handles both insert and update operations.
func UpdateTrackerSettings(db *gorm.DB, settings *TrackerSettings) error {
	return db.Save(settings).Error
}

// GetNotificationSettings retrieves notification settings from the database
func GetNotificationSettings(db *gorm.DB) (*NotificationSettings, error) {
	var settings NotificationSettings
	if err := db.First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateNotificationSettings updates notification settings in the database
func UpdateNotificationSettings(db *gorm.DB, settings *NotificationSettings) error {
	return db.Model(&NotificationSettings{}).Where("id = ?", settings.ID).Updates(settings).Error
}
