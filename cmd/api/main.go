package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/pipeline"
	"voice-agent-go/internal/server"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg := config.Load()
	log := logger.New()
	log.WithFields(logrus.Fields{
		"service":   "voice-agent-go",
		"mock_mode": cfg.UseMock,
		"base_url":  cfg.OpenAIBaseURL,
	}).Info("starting service")
	if cfg.UseMock {
		log.Warn("OPENAI_API_KEY missing or USE_MOCK set: every job returns the fixed mock result")
	}

	coord := pipeline.FromConfig(cfg, log.Entry)
	api := server.New(coord, log)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		// transcription of long recordings holds the request open
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown did not complete")
	}
	log.Info("stopped")
}
