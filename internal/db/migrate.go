package db

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/canvas"
	"collaborative-canvas-backend/internal/comment"
	"log"

	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&canvas.Canvas{},
		&access.Grant{},
		&comment.Comment{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}
