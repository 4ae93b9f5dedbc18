package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeshift-engine/internal/feed"
	"timeshift-engine/internal/platform/config"
	"timeshift-engine/internal/platform/logger"
	"timeshift-engine/internal/platform/metrics"
	"timeshift-engine/internal/surface"
	"timeshift-engine/internal/timeshift"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	cfg := timeshift.DefaultConfig()
	cfg.Capacity = config.GetEnvInt("RING_CAPACITY", cfg.Capacity)
	cfg.Stride = config.GetEnvInt("WINDOW_STRIDE", cfg.Stride)
	cfg.SegmentDuration = config.GetEnvDuration("SEGMENT_DURATION", cfg.SegmentDuration)
	cfg.JitterThreshold = config.GetEnvDuration("TIMELINE_JITTER_THRESHOLD", cfg.JitterThreshold)
	cfg.Delay.Min = config.GetEnvDuration("MIN_DELAY", cfg.Delay.Min)
	cfg.Delay.Max = config.GetEnvDuration("MAX_DELAY", cfg.Delay.Max)
	cfg.Delay.DesiredStart = config.GetEnvDuration("START_DELAY", cfg.Delay.DesiredStart)
	tickInterval := config.GetEnvDuration("UI_TICK_INTERVAL", 50*time.Millisecond)
	payloadSize := config.GetEnvInt("FEED_PAYLOAD_BYTES", feed.DefaultPayloadSize)

	log := logger.New(logLevel, logFormat)

	surf := surface.NewHeadless(time.Now)
	met := metrics.New()
	engine, err := timeshift.NewEngine(cfg, surf, log, met)
	if err != nil {
		log.Error("engine configuration invalid", "error", err)
		os.Exit(1)
	}
	h := timeshift.NewHandler(engine, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			st := engine.Status()
			met.SetBufferedSpanSeconds(st.BufferedSpanSeconds)
			met.SetRetainedWindows(st.WindowCount)
			if st.DisplayDelaySeconds != nil {
				met.SetLiveDelaySeconds(*st.DisplayDelaySeconds)
			}
		}).ServeHTTP(w, r)
	})
	r.Get("/status", h.Status)
	r.Route("/control", func(r chi.Router) {
		r.Post("/rewind", h.Rewind)
		r.Post("/forward", h.Forward)
		r.Post("/pin", h.PinDelay)
		r.Post("/live", h.GoLive)
		r.Post("/scrub", h.Scrub)
		r.Post("/toggle", h.TogglePlayPause)
	})
	r.Route("/lifecycle", func(r chi.Router) {
		r.Post("/pause", h.PipelinePause)
		r.Post("/resume", h.PipelineResume)
	})
	r.Post("/reset", h.Reset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := feed.NewSimulator(engine, cfg.SegmentDuration, payloadSize, log)
	go sim.Run(ctx)

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.Tick()
			}
		}
	}()

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"ring_capacity", cfg.Capacity,
		"window_stride", cfg.Stride,
		"segment_duration", cfg.SegmentDuration.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
