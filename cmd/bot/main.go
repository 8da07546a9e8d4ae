package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/config"
	"github.com/dikaprio01/BongoBot/internal/engine"
	"github.com/dikaprio01/BongoBot/internal/notifier"
	"github.com/dikaprio01/BongoBot/internal/recorder"
	"github.com/dikaprio01/BongoBot/internal/scheduler"
	"github.com/dikaprio01/BongoBot/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] BongoBot starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Static game data
	cat := catalog.Default()

	// Open storage
	st, err := store.Open(cfg, cat)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()
	log.Printf("[INFO] database: %s", cfg.Database.Dialect)

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, os.Getenv("HTTPS_PROXY"))

	// Init engine
	eng := engine.New(st, cat, cfg.Economy, cfg.Election, tn)

	// Init audit recorder
	var rec recorder.Recorder
	if cfg.Database.AuditPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.AuditPath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, st, cat, cfg.Economy, rec)
	if err := sched.RegisterAll(cfg.Schedule.SweepCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing sweep now")
		go sched.RunSweepNow()
	}

	log.Println("[INFO] BongoBot is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] BongoBot stopped")
}
