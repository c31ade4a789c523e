package db

import (
	"collaborative-canvas-backend/internal/config"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

// Connect opens the shared database handle. Connectivity is established
// with a small fixed number of attempts with backoff; if all attempts fail
// the service is degraded and startup aborts rather than limping along
// (an unreachable store must never read as "no data").
func Connect(cfg config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)

	level := logger.Info
	if cfg.Environment == "production" {
		level = logger.Error
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      level,
			Colorful:      true,
		},
	)

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: newLogger,
			// needed so duplicate-key violations surface as gorm.ErrDuplicatedKey
			TranslateError: true,
		})
		if err == nil {
			log.Println("Success connecting to db")
			return db, nil
		}
		log.Printf("db connect attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, err)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("failed to access underlying db: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("failed to close db: %v", err)
		return
	}
	log.Println("Closing DB")
}
