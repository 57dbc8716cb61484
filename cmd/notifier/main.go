package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/AydinMate/wedding-admin/internal/config"
	kafkax "github.com/AydinMate/wedding-admin/internal/kafka"
	"github.com/AydinMate/wedding-admin/internal/notify"
	"github.com/AydinMate/wedding-admin/internal/orders"
	"github.com/AydinMate/wedding-admin/internal/postgres"
	"github.com/AydinMate/wedding-admin/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	cfg.SetupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var sender notify.Sender = notify.LogSender{}
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		log.Warn("RESEND_API_KEY not set, receipts are logged instead of sent")
	}

	svc := &notify.Service{
		Store:         orders.NewRepo(db),
		Sender:        sender,
		Dedup:         &redisx.Deduper{Redis: rdb, Consumer: "notifier"},
		BusinessName:  cfg.BusinessName,
		PickupAddress: cfg.PickupAddress,
		Location:      cfg.Location(),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicReceiptRequested, cfg.NotifierWorkers)
	log.WithFields(log.Fields{
		"group":   cfg.NotifierGroup,
		"topic":   orders.TopicReceiptRequested,
		"workers": cfg.NotifierWorkers,
	}).Info("notifier consumer started")
	if err := cons.Start(ctx, svc.HandleReceiptRequested); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("consumer exit")
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
