package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/stayhub/stayhub-backend/internal/config"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/repository"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	rebuildIndex := flag.Bool("rebuild-index", false, "rebuild the conversation index from message rows")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if loaded := config.LoadDotEnv(os.Getenv("APP_ENV")); len(loaded) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	start := time.Now()
	log.Println("[migrate] Running schema migration")
	if err := db.AutoMigrate(
		&domain.Message{},
		&domain.MessageAttachment{},
		&domain.ConversationIndex{},
	); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}
	log.Printf("[migrate] Schema up to date (%s)", time.Since(start).Round(time.Millisecond))

	if *rebuildIndex {
		log.Println("[migrate] Rebuilding conversation index from message rows")
		rStart := time.Now()
		indexRepo := repository.NewConversationIndexRepository(db)
		if err := indexRepo.Rebuild(); err != nil {
			log.Fatalf("Index rebuild failed: %v", err)
		}
		log.Printf("[migrate] Index rebuilt (%s)", time.Since(rStart).Round(time.Millisecond))
	}

	log.Printf("[migrate] Done in %s", time.Since(start).Round(time.Millisecond))
}
