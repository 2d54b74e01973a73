package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/enhance"
	"github.com/chaos-io/cutout/handler"
	"github.com/chaos-io/cutout/middleware"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/service"
	"github.com/chaos-io/cutout/util"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config; defaults apply when the file is missing.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config, using defaults: %v\n", err)
		cfg = config.New()
	}

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting cutout server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	// Redis result cache
	cache := service.NewResultCache(&cfg.Redis)
	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		cache = service.NewResultCache(&config.RedisConfig{})
	} else if cache.Enabled() {
		util.Logger.Info("redis connected successfully")
	}
	defer func() {
		_ = cache.Close()
	}()

	health := service.NewHealthMonitor(cfg.Model.Timeout)

	// Saliency model
	var session *rembg.Session
	if cfg.Model.SaliencyURL != "" {
		model, err := rembg.NewHTTPModel(cfg.Model.SaliencyURL, cfg.Model.Timeout)
		if err != nil {
			util.Logger.Fatal("invalid saliency model url", zap.Error(err))
		}
		session, err = rembg.NewSession(model, rembg.Options{
			InputSize: cfg.Model.InputSize,
			Threshold: cfg.Saliency,
			Clean:     true,
		})
		if err != nil {
			util.Logger.Fatal("failed to create saliency session", zap.Error(err))
		}
		health.Register(handler.ModelSaliency, model)
		util.Logger.Info("saliency model configured", zap.String("url", cfg.Model.SaliencyURL))
	} else {
		util.Logger.Warn("saliency model not configured, background removal disabled")
	}

	// Super-resolution model; local enhancement when none is configured.
	var upscaler enhance.Upscaler
	if cfg.Model.UpscalerURL != "" {
		upscaler = enhance.NewHTTPUpscaler(cfg.Model.UpscalerURL, cfg.Model.Timeout)
		util.Logger.Info("super-resolution model configured", zap.String("url", cfg.Model.UpscalerURL))
	}

	proc := pipeline.NewProcessor(session, cutout.NewRefiner(), enhance.NewEnhancer(upscaler))

	if err := health.Start(cfg.Model.HealthSpec); err != nil {
		util.Logger.Fatal("failed to start health monitor", zap.String("spec", cfg.Model.HealthSpec), zap.Error(err))
	}

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})
	handler.New(cfg, proc, cache, health).Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		util.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.Logger.Error("server forced to shutdown", zap.Error(err))
	}
	health.Stop()
	if err := session.Close(); err != nil {
		util.Logger.Warn("failed to close saliency session", zap.Error(err))
	}
}
