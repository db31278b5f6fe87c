package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafdoctor/internal/application"
	aiapp "github.com/bryanwahyu/leafdoctor/internal/application/ai"
	"github.com/bryanwahyu/leafdoctor/internal/application/analyzer"
	galleryapp "github.com/bryanwahyu/leafdoctor/internal/application/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/application/navigator"
	"github.com/bryanwahyu/leafdoctor/internal/config"
	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/infra/ai/openai"
	"github.com/bryanwahyu/leafdoctor/internal/infra/backend"
	snapcam "github.com/bryanwahyu/leafdoctor/internal/infra/camera"
	"github.com/bryanwahyu/leafdoctor/internal/infra/httpserver"
	"github.com/bryanwahyu/leafdoctor/internal/infra/persistence"
	"github.com/bryanwahyu/leafdoctor/internal/middleware"
	"github.com/bryanwahyu/leafdoctor/internal/pkg/logger"
)

func main() {
	// path config.yaml, optional
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	} else if _, err := os.Stat(path); err != nil {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		zap.NewExample().Fatal("logger init error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	loc, _ := cfg.Location() // checked by Validate

	ctx := context.Background()

	// metrics
	reg := prometheus.NewRegistry()
	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics(reg)
	}

	// storage backend
	store, closeStore, err := backend.Open(ctx, cfg.Storage, cfg.MySQLDSN(), log)
	if err != nil {
		log.Fatal("storage init error", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("storage close error", zap.Error(err))
		}
	}()

	repoOpts := persistence.Options{Key: cfg.Storage.Key, Compress: cfg.Storage.Compress}
	if metrics != nil {
		repoOpts.Metrics = metrics
	}
	repo, err := persistence.NewGalleryRepository(store, repoOpts)
	if err != nil {
		log.Fatal("gallery repository init error", zap.Error(err))
	}
	defer repo.Close()

	// gallery, hydrated once
	galleryOpts := []galleryapp.Option{galleryapp.WithLocation(loc)}
	if metrics != nil {
		galleryOpts = append(galleryOpts, galleryapp.WithMetrics(metrics))
	}
	gallerySvc := galleryapp.NewService(repo, log.Named("gallery"), galleryOpts...)
	if err := gallerySvc.Load(ctx); err != nil && !errors.Is(err, gallery.ErrCorrupt) {
		log.Fatal("gallery load error", zap.Error(err))
	}
	log.Info("gallery loaded", zap.Int("items", gallerySvc.Count()))

	// inference
	if cfg.AI.APIKey == "" {
		log.Warn("ai.apiKey is empty, analyses will fail")
	}
	aiClient := openai.NewClient(openai.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		MaxTokens:  cfg.AI.MaxTokens,
		HTTPClient: &http.Client{Timeout: cfg.AI.Timeout},
	})
	var aiRecorder aiapp.Recorder
	if metrics != nil {
		aiRecorder = metrics
	}
	analyzerAI := aiapp.NewService(aiClient, log.Named("ai"), aiRecorder)

	// camera
	var cam camera.Device = snapcam.None{}
	if cfg.Camera.SnapshotURL != "" {
		snap, err := snapcam.NewSnapshot(cfg.Camera.SnapshotURL, cfg.Camera.Timeout, nil)
		if err != nil {
			log.Fatal("camera init error", zap.Error(err))
		}
		cam = snap
	}
	constraints := camera.Constraints{
		FacingMode: cfg.Camera.FacingMode,
		Width:      cfg.Camera.Width,
		Height:     cfg.Camera.Height,
	}

	// sessions
	save := func(ctx context.Context, item *gallery.Item) error {
		_, err := gallerySvc.Add(ctx, item)
		return err
	}
	sessions := analyzer.NewSessions(cfg.Sessions.TTL, cfg.Sessions.CleanupInterval, func(id string) *analyzer.Workflow {
		return analyzer.New(id, analyzer.Deps{
			Analyzer:       analyzerAI,
			Camera:         cam,
			Save:           save,
			Clock:          application.SystemClock{},
			MaxUploadBytes: cfg.Sessions.MaxUploadBytes,
			Constraints:    constraints,
			Log:            log.Named("analyzer"),
		})
	}, log.Named("sessions"))
	if metrics != nil {
		metrics.TrackSessions(reg, sessions.Count)
	}

	catalog, err := navigator.LoadCatalog()
	if err != nil {
		log.Fatal("catalog load error", zap.Error(err))
	}
	nav := navigator.New(gallerySvc, sessions, catalog)

	var limiter *middleware.RateLimiter
	if rl := cfg.Security.RateLimit; rl.Capacity > 0 && rl.RefillRate > 0 {
		limiter = middleware.NewRateLimiter(rl.Capacity, rl.RefillRate)
	}

	var ready atomic.Bool
	handler := httpserver.NewRouter(httpserver.Deps{
		Gallery:   gallerySvc,
		Sessions:  sessions,
		Navigator: nav,
		Metrics:   metrics,
		Limiter:   limiter,
		Checkers: map[string]middleware.HealthChecker{
			"storage": &middleware.StoreHealthChecker{Store: store},
		},
		Ready:          ready.Load,
		APIKeys:        cfg.Security.APIKeys,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		MaxUploadBytes: cfg.Sessions.MaxUploadBytes,
		Log:            log.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	ready.Store(true)

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ready.Store(false)
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	sessions.Close()
	if limiter != nil {
		limiter.Stop()
	}
}
