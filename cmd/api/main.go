package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ASHISH26940/marketing-ops-api/pkg/appstate"
	"github.com/ASHISH26940/marketing-ops-api/pkg/config"
	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db/queries"
	"github.com/ASHISH26940/marketing-ops-api/pkg/handlers"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/llm"
	"github.com/ASHISH26940/marketing-ops-api/pkg/services"
	"github.com/ASHISH26940/marketing-ops-api/pkg/storage"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetOutput(gin.DefaultWriter)
	log.SetFormatter(&log.JSONFormatter{})
	log.Info("Starting Marketing Ops API...")

	cfg := config.LoadConfig()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		log.SetLevel(log.InfoLevel)
	}

	ctx := context.Background()

	conn, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(conn)

	registry, err := webhook.LoadRegistry(cfg.WebhooksFile)
	if err != nil {
		log.Fatalf("Failed to load webhook registry: %v", err)
	}
	client := webhook.NewClient(registry, cfg.SubmitTimeout)

	// Job statuses: Redis when configured so callbacks reach every instance.
	var jobStore jobs.Store
	housekeeping := cron.New()
	if cfg.RedisAddr != "" {
		redisStore, err := jobs.NewRedisStore(ctx, jobs.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize job store: %v", err)
		}
		defer redisStore.Close()
		jobStore = redisStore
	} else {
		memStore := jobs.NewMemoryStore(jobs.DefaultTTL)
		if _, err := housekeeping.AddFunc(cfg.SessionSweep, func() { memStore.Prune() }); err != nil {
			log.Fatalf("Failed to schedule job pruning: %v", err)
		}
		jobStore = memStore
		log.Warn("REDIS_ADDR not set, job statuses are kept in memory.")
	}

	getter := &jobs.StatusGetter{Store: jobStore}
	if _, err := registry.Lookup(webhook.EndpointLeadsStatus); err == nil {
		getter.Upstream = client
	} else {
		log.Warnf("No %s endpoint configured, generation results arrive by callback only.", webhook.EndpointLeadsStatus)
	}

	sessions := appstate.NewRegistry(appstate.Repos{
		History: &queries.LeadHistoryRepo{DB: conn},
		Content: &queries.ContentRepo{DB: conn},
	}, cfg.SessionIdleTTL)
	if err := sessions.StartJanitor(cfg.SessionSweep); err != nil {
		log.Fatalf("Failed to start session janitor: %v", err)
	}
	housekeeping.Start()

	deps := handlers.Deps{
		Config:     cfg,
		Users:      &queries.UserRepo{DB: conn},
		Leads:      &queries.LeadRepo{DB: conn},
		Videos:     &queries.VideoProjectRepo{DB: conn},
		Tokens:     services.NewTokenService(cfg.JwtSecret, cfg.TokenTTL),
		Sessions:   sessions,
		Jobs:       jobStore,
		Generation: webhook.NewGenerationService(client),
		Poller:     webhook.NewPoller(getter, "", cfg.PollInterval, cfg.PollMaxAttempts),
		Importer:   webhook.NewLeadImporter(client),
		Enricher:   webhook.NewEnricher(client),
		Forwarder:  webhook.NewForwarder(client),
		Scripts:    webhook.NewScriptWriter(client),
		Drafts:     content.NewWebhookGenerator(client),
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to initialize LLM client: %v", err)
		}
		defer gemini.Close()
		deps.Direct = gemini
	} else {
		log.Info("GEMINI_API_KEY not set, direct content generation disabled.")
	}

	var local *storage.LocalStorage
	switch cfg.StorageType {
	case "s3":
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{Bucket: cfg.AWSBucket, Region: cfg.AWSRegion})
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		deps.Media = s3Store
	default:
		local, err = storage.NewLocalStorage(cfg.UploadDir, cfg.BaseURL())
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		deps.Media = local
		deps.ResolveMedia = func(u string) (string, error) {
			if path, ok := local.Path(u); ok {
				return path, nil
			}
			return u, nil
		}
	}

	apiHandlers := handlers.NewHandlers(deps)

	router := gin.Default()
	if local != nil {
		router.Static("/uploads", local.UploadDir)
	}
	apiHandlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Server listening on %s:%s", cfg.Host, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if err := apiHandlers.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Background work did not finish before shutdown: %v", err)
	}
	sessions.Stop()
	<-housekeeping.Stop().Done()

	log.Info("Server exited gracefully.")
}
