package database

import (
	"fmt"
	"time"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures the database connection
type Options struct {
	// Driver is "postgres" or "sqlite"
	Driver string
	// DSN is the postgres connection string (postgres driver only)
	DSN string
	// Path is the sqlite file path; ":memory:" for tests
	Path string
	// Verbose enables SQL logging
	Verbose bool
}

// Open creates and configures a database connection
func Open(opts Options) (*gorm.DB, error) {
	gormLogger := gormlogger.Default
	if opts.Verbose {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	cfg := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error

	switch opts.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(opts.Path), cfg)
	case "postgres", "":
		db, err = gorm.Open(postgres.Open(opts.DSN), cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("✅ Database connected", zap.String("driver", opts.Driver))

	return db, nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Poll{},
		&models.PollOption{},
		&models.PollVote{},
		&models.Question{},
		&models.Answer{},
		&models.DiscussionThread{},
		&models.DiscussionMessage{},
		&models.MentorProfile{},
		&models.MentorMatch{},
		&models.Reaction{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.LeaderboardEntry{},
	)
}

// OpenForTests returns an in-memory sqlite database with migrations applied
func OpenForTests() (*gorm.DB, error) {
	db, err := Open(Options{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
