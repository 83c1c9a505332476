package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fortuna/footballdb/internal/api/rest"
	"github.com/fortuna/footballdb/internal/api/websocket"
	"github.com/fortuna/footballdb/internal/cache"
	"github.com/fortuna/footballdb/internal/config"
	"github.com/fortuna/footballdb/internal/ingest/understat"
	"github.com/fortuna/footballdb/internal/loader"
	"github.com/fortuna/footballdb/internal/notify"
	"github.com/fortuna/footballdb/internal/publisher"
	"github.com/fortuna/footballdb/internal/scheduler"
	"github.com/fortuna/footballdb/internal/service"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the query API, the progress stream and the daily scrape and rebuild pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	log.Printf("Starting footballdb v%s", appVersion)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporters := loader.MultiReporter{loader.NewLogReporter(log.New(log.Writer(), "[loader] ", log.LstdFlags))}

	// Redis is optional: without it payloads are not cached and no stream
	// events are published.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = connectRedis(ctx, cfg.Redis.URL)
	}
	if redisClient != nil {
		defer redisClient.Close()
		pub := publisher.NewRedisStreamPublisher(redisClient, cfg.Redis.LoadStream, cfg.Redis.TableStream)
		reporters = append(reporters, publisher.NewReporter(pub, nil))
		log.Println("✓ Redis stream publisher initialized")
	}

	if cfg.Notify.TelegramToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, nil)
		if err != nil {
			log.Printf("⚠️  Telegram notifications disabled: %v", err)
		} else {
			reporters = append(reporters, notifier)
			log.Println("✓ Telegram notifications enabled")
		}
	}

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()
	reporters = append(reporters, websocket.NewReporter(hub))

	loads := service.NewLoadService(newLoader(cfg), reporters, nil)

	fetcher := understat.NewChromeFetcher(cfg.Understat)
	defer fetcher.Close()
	var (
		payloads   understat.Cache
		redisCache *cache.RedisCache
	)
	if redisClient != nil {
		redisCache = cache.NewRedisCache(redisClient)
		payloads = redisCache
	}
	xgScraper := understat.NewScraper(cfg.Understat, fetcher, payloads, nil)

	sched := scheduler.NewOrchestrator(scheduler.FromSettings(cfg.Scheduler), nil,
		scheduler.LeagueStage(newLeagueScraper(cfg)),
		scheduler.XGStage(xgScraper, xgPath(cfg)),
		scheduler.RebuildStage(loads),
	)
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("❌ Scheduler error: %v", err)
		}
	}()
	log.Println("✓ Scheduler started")

	restServer := rest.NewServer(cfg.API.RESTPort, loads)
	if redisCache != nil {
		restServer.SetRedis(redisCache)
	}
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("REST server error: %v", err)
			stop()
		}
	}()
	log.Printf("✓ REST API server listening on :%s", cfg.API.RESTPort)

	wsServer := websocket.NewServer(hub)
	go func() {
		if err := wsServer.Start(cfg.API.WSPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WebSocket server error: %v", err)
			stop()
		}
	}()

	log.Printf("  REST API: http://0.0.0.0:%s/api/v1", cfg.API.RESTPort)
	log.Printf("  WebSocket: ws://0.0.0.0:%s/ws/loads", cfg.API.WSPort)

	<-ctx.Done()
	log.Println("Shutting down footballdb gracefully...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket server shutdown error: %v", err)
	}
	if err := loads.Shutdown(shutdownCtx); err != nil {
		log.Printf("Load service shutdown error: %v", err)
	}

	log.Println("footballdb stopped")
	return nil
}

// connectRedis retries a few times before giving up; the service keeps
// running without Redis.
func connectRedis(ctx context.Context, url string) *redis.Client {
	const maxRetries = 5
	retryDelay := 2 * time.Second

	log.Println("Connecting to Redis...")
	for i := 0; i < maxRetries; i++ {
		client, err := cache.Connect(ctx, url)
		if err == nil {
			log.Println("✓ Connected to Redis")
			return client
		}

		if i == maxRetries-1 {
			log.Printf("⚠️  Redis unavailable after %d attempts, continuing without it: %v", maxRetries, err)
			break
		}
		log.Printf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, maxRetries, err, retryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
	}
	return nil
}
