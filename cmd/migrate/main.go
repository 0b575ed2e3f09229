package main

import (
	"log"

	"github.com/samujjwal/rental-sub011/config"
	"github.com/samujjwal/rental-sub011/internal/domain/chat"
	"github.com/samujjwal/rental-sub011/internal/domain/listing"
	"github.com/samujjwal/rental-sub011/pkg/database"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to the database: %s", err)
	}

	err = db.AutoMigrate(
		&listing.Listing{},
		&chat.Conversation{},
		&chat.ConversationSequence{},
		&chat.Message{},
		&chat.ReadWatermark{},
	)
	if err != nil {
		log.Fatalf("migration failed: %s", err)
	}

	log.Println("migrations applied")
}
