package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/rentalhub/rental-backend/internal/config"
	"github.com/rentalhub/rental-backend/internal/migration"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seed := flag.Bool("seed", false, "insert demo landlord and tenant when the users table is empty")
	verify := flag.Bool("verify", false, "report chat data integrity without migrating")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv()

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

	if *verify {
		runVerify(db)
		return
	}

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Fatalf("[migrate] FAILED: %v", err)
	}
	log.Printf("[migrate] Schema up to date in %v", time.Since(start))

	if *seed {
		if err := migration.SeedDemoUsers(db); err != nil {
			log.Fatalf("[seed] FAILED: %v", err)
		}
		log.Println("[seed] Demo users ready")
	}
}

func runVerify(db *gorm.DB) {
	report, err := migration.Verify(db)
	if err != nil {
		log.Fatalf("[verify] FAILED: %v", err)
	}

	log.Printf("[verify] users=%d conversations=%d messages=%d", report.Users, report.Conversations, report.Messages)
	log.Printf("[verify] orphan_messages=%d duplicate_pairs=%d self_chats=%d",
		report.OrphanMessages, report.DuplicatePairs, report.SelfChats)

	if !report.OK() {
		log.Println("[verify] integrity problems found")
		os.Exit(1)
	}
	log.Println("[verify] OK")
}
