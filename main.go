package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/uirun/uirun/config"
	"github.com/uirun/uirun/internal/adapter/embedding"
	"github.com/uirun/uirun/internal/adapter/notify"
	"github.com/uirun/uirun/internal/adapter/planner"
	"github.com/uirun/uirun/internal/artifacts"
	"github.com/uirun/uirun/internal/browser"
	"github.com/uirun/uirun/internal/index"
	"github.com/uirun/uirun/internal/interpreter"
	store "github.com/uirun/uirun/internal/repository"
	"github.com/uirun/uirun/internal/service"
	transporthttp "github.com/uirun/uirun/internal/transport/http"
	"github.com/uirun/uirun/internal/urlguard"
	"github.com/uirun/uirun/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting run engine...")
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Starting URL mode: %s", cfg.StartingURLMode)
	log.Printf("Artifact backend: %s", cfg.ArtifactBackend)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Initialize artifact storage
	var backend artifacts.Backend
	switch cfg.ArtifactBackend {
	case config.BackendS3:
		backend, err = artifacts.NewS3Backend(ctx, artifacts.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Secure:    cfg.S3UseSSL,
		})
	default:
		backend, err = artifacts.NewFSBackend(cfg.ArtifactsDir)
	}
	if err != nil {
		log.Fatalf("Failed to initialize artifact backend: %v", err)
	}
	bridge := artifacts.NewBridge(backend, db)

	// Initialize the SSRF guard
	guard := urlguard.New(cfg.DNSResolveTimeout)

	// Initialize the browser layer. The guard vets the starting URL on
	// every session creation when protection is on.
	driver := browser.NewRodDriver(browser.RodConfig{
		Headless: cfg.Headless,
		Width:    cfg.ViewportWidth,
		Height:   cfg.ViewportHeight,
	})
	var preflight browser.Preflight
	if cfg.SSRFProtection {
		preflight = guard.Check
	}
	sessions := browser.NewManager(driver, cfg.SessionIdleTTL, preflight)

	interp := interpreter.New(interpreter.Config{
		ClickTimeout:  cfg.ClickTimeout,
		WaitTimeout:   cfg.WaitTimeout,
		AssertTimeout: cfg.AssertTimeout,
		SettleDelay:   cfg.SettleDelay,
		LoadWait:      cfg.LoadWait,
		MaxSleep:      cfg.MaxWaitSleep,
	})

	// Initialize policy engine
	policyEngine, err := policy.FromFile(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize planner and brand-kit retrieval
	pl := planner.NewPlanner(cfg.PlannerURL, cfg.PlannerAPIKey, cfg.PlannerModel, cfg.PlannerTimeout)
	embedder := embedding.NewEmbedder(cfg.PlannerURL, cfg.PlannerAPIKey, cfg.EmbeddingModel, cfg.PlannerTimeout)
	idx := index.New(db, embedder)

	// Initialize the event push client
	var notifyClient *notify.Client
	if cfg.IngressURL != "" {
		notifyClient = notify.NewClient(cfg.IngressURL)
	}

	// Initialize service
	svc := service.New(db, sessions, interp, guard, bridge, pl, idx, notifyClient, policyEngine, cfg)

	// Reclaim idle browser sessions in the background
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go svc.RunSessionSweeper(sweepCtx)

	externalServer := transporthttp.NewExternalServer(svc, cfg)
	internalServer := transporthttp.NewInternalServer(svc)

	start := func(name string, e *echo.Echo, port int) {
		go func() {
			if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start %s server: %v", name, err)
			}
		}()
		log.Printf("%s server listening on port %d", name, port)
	}
	start("external", externalServer, cfg.HTTPPort)
	start("internal", internalServer, cfg.InternalPort)

	// Block until interrupted
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down run engine...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to stop external server cleanly: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to stop internal server cleanly: %v", err)
	}

	// Close every live browser session and the shared Chrome
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to stop browser sessions cleanly: %v", err)
	}

	log.Println("Run engine stopped")
}
