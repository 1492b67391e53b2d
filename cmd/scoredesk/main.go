package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/scoredesk/internal/api/rest"
	"github.com/fortuna/scoredesk/internal/api/websocket"
	"github.com/fortuna/scoredesk/internal/cache"
	"github.com/fortuna/scoredesk/internal/config"
	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
	"github.com/fortuna/scoredesk/internal/publisher"
	"github.com/fortuna/scoredesk/internal/scoring"
	"github.com/fortuna/scoredesk/internal/session"
	"github.com/fortuna/scoredesk/internal/store"
	"github.com/fortuna/scoredesk/internal/store/repository"
)

const (
	serviceName    = "scoredesk"
	serviceVersion = "1.0.0"

	redisMaxRetries = 30
	redisRetryDelay = 2 * time.Second
)

func main() {
	log.Printf("Starting %s v%s - Live Match Scoring Desk", serviceName, serviceVersion)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := matchscore.New(cfg.ScoreAPIBase, matchscore.Options{
		Timeout:           cfg.APITimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	log.Printf("✓ Match-score backend at %s", cfg.ScoreAPIBase)

	// Notifications: recent messages per match, the log, and optionally Discord
	recorder := notify.NewRecorder(50)
	sinks := notify.Multi{recorder, notify.NewLog(log.New(log.Writer(), "[notify] ", log.LstdFlags))}
	if cfg.DiscordEnabled() {
		discord, err := notify.NewDiscord(cfg.DiscordWebhookID, cfg.DiscordWebhookToken, notify.DiscordOptions{
			MinLevel:      cfg.DiscordMinLevel,
			ErrorCooldown: cfg.DiscordErrorCooldown,
		})
		if err != nil {
			log.Fatalf("Failed to create Discord notifier: %v", err)
		}
		sinks = append(sinks, discord)
		log.Printf("✓ Discord notifications enabled (level %s and above)", cfg.DiscordMinLevel)
	}

	hub := websocket.NewHub(log.New(log.Writer(), "[ws] ", log.LstdFlags))
	go hub.Run(ctx)

	hooks := []func(scoring.Snapshot){hub.SnapshotHook()}
	var journals scoring.Journals

	// Redis is optional; without it snapshots are only pushed to live viewers
	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisCache = connectRedis(cfg.RedisURL, cfg.SnapshotTTL)
		defer redisCache.Close()

		streams := publisher.NewRedisStreamPublisher(redisCache.Client())
		hooks = append(hooks, redisCache.SnapshotHook(), streams.SnapshotHook())
		journals = append(journals, streams)
		log.Println("✓ Snapshot cache and event streams enabled")
	} else {
		log.Println("⚠️  REDIS_URL not set, snapshot cache disabled")
	}

	var journalRepo *repository.JournalRepository
	if cfg.JournalDSN != "" {
		db, err := store.NewDatabase(cfg.JournalDSN)
		if err != nil {
			log.Fatalf("Failed to connect to journal database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
		log.Println("✓ Journal database ready")

		journalRepo = repository.NewJournalRepository(db)
		journals = append(journals, journalRepo)
	} else {
		log.Println("⚠️  JOURNAL_DSN not set, scoring journal disabled")
	}

	deps := scoring.Deps{
		API:          client,
		Notifier:     sinks,
		Navigator:    scoring.NavigatorFunc(logNavigation),
		PollInterval: cfg.PollInterval,
		Logger:       log.New(log.Writer(), "[scoring] ", log.LstdFlags),
	}
	if len(journals) > 0 {
		deps.Journal = journals
	}

	sessionConfig := session.DefaultConfig()
	sessionConfig.IdleTimeout = cfg.SessionIdleTimeout
	manager := session.NewManager(deps, sessionConfig)
	for _, hook := range hooks {
		manager.OnSnapshot(hook)
	}
	go manager.Start(ctx)
	log.Println("✓ Session manager started")

	handlerConfig := rest.HandlerConfig{
		Sessions:      manager,
		Matches:       client,
		Notifications: recorder,
		Logger:        log.New(log.Writer(), "[rest] ", log.LstdFlags),
	}
	var snapshots websocket.SnapshotSource
	if redisCache != nil {
		handlerConfig.Snapshots = redisCache
		snapshots = redisCache
	}
	if journalRepo != nil {
		handlerConfig.Journal = journalRepo
	}

	restServer := rest.NewServer(cfg.RESTPort, rest.NewHandler(handlerConfig), cfg.CORSAllowOrigins)
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("REST server error: %v", err)
		}
	}()

	wsServer := websocket.NewServer(hub, snapshots, cfg.CORSAllowOrigins)
	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WebSocket server error: %v", err)
		}
	}()

	log.Printf("✓ %s v%s started successfully", serviceName, serviceVersion)
	log.Printf("  REST API: http://0.0.0.0:%s", cfg.RESTPort)
	log.Printf("  WebSocket: ws://0.0.0.0:%s/ws/matches/{matchId}", cfg.WSPort)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down scoredesk gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket server shutdown error: %v", err)
	}

	// Stops the reaper and closes every open session
	cancel()
	manager.CloseAll()

	log.Println("scoredesk stopped")
}

// connectRedis retries while Redis is still starting alongside the desk.
func connectRedis(url string, ttl time.Duration) *cache.RedisCache {
	log.Println("Connecting to Redis...")
	for i := 0; i < redisMaxRetries; i++ {
		redisCache, err := cache.NewRedisCache(url, ttl)
		if err == nil {
			log.Println("✓ Connected to Redis")
			return redisCache
		}

		if i < redisMaxRetries-1 {
			log.Printf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, redisMaxRetries, err, redisRetryDelay)
			time.Sleep(redisRetryDelay)
		} else {
			log.Fatalf("Failed to connect to Redis after %d attempts: %v", redisMaxRetries, err)
		}
	}
	return nil
}

func logNavigation(matchID string, to scoring.Surface) {
	log.Printf("[navigate] %s -> %s", matchID, to.Path(matchID))
}
