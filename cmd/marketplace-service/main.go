package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		app.ConfigureLogging(os.Stderr, "info", app.LogFormatText)
		log.WithError(err).Fatal("invalid configuration")
	}
	app.ConfigureLogging(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"kafka":        len(cfg.KafkaBrokers) > 0,
		"redis":        cfg.RedisURL != "",
	}).Info("marketplace configuration loaded")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("marketplace stopped with error")
	}
	log.Info("marketplace stopped")
}
