package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/AydinMate/wedding-admin/internal/auth"
	"github.com/AydinMate/wedding-admin/internal/config"
	"github.com/AydinMate/wedding-admin/internal/httpx"
	kafkax "github.com/AydinMate/wedding-admin/internal/kafka"
	"github.com/AydinMate/wedding-admin/internal/notify"
	"github.com/AydinMate/wedding-admin/internal/orders"
	"github.com/AydinMate/wedding-admin/internal/payments"
	"github.com/AydinMate/wedding-admin/internal/postgres"
	"github.com/AydinMate/wedding-admin/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:   "hire-admin",
		Usage:  "wedding product hire admin API",
		Before: setup,
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API and the receipt outbox relay", Action: serve},
			{Name: "migrate", Usage: "apply database migrations", Action: migrateDB},
			{
				Name:  "token",
				Usage: "issue a bearer token for a user id (local development)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: issueToken,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("hire-admin exited")
	}
}

var cfg config.Config

func setup(*cli.Context) error {
	var err error
	if cfg, err = config.Load(); err != nil {
		return err
	}
	cfg.SetupLogging()
	return nil
}

func migrateDB(*cli.Context) error {
	return postgres.Migrate(cfg.PostgresDSN)
}

func issueToken(c *cli.Context) error {
	token, err := auth.NewVerifier(cfg.JWTSecret).Issue(c.String("user"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(token + "\n")
	return err
}

func serve(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		return err
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	revenue := &redisx.RevenueCache{Redis: rdb}

	// Kafka producer, synchronous so the relay only marks rows it actually delivered
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicReceiptRequested)
	defer prod.Close()

	repo := orders.NewRepo(db)
	stripe := payments.NewStripe(payments.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.Currency,
		StoreURL:      cfg.FrontendStoreURL,
	})

	router := httpx.NewRouter(auth.NewVerifier(cfg.JWTSecret))
	(&httpx.OrdersHandler{Service: &orders.Service{Store: repo, Cache: revenue}}).Register(router)
	(&httpx.CheckoutHandler{
		Checkout: &orders.Checkout{Store: repo, Payments: stripe},
		Reconciler: &orders.PaymentReconciler{
			Store:    repo,
			Verifier: stripe,
			Dedup:    &redisx.Deduper{Redis: rdb, Consumer: "webhook"},
			Cache:    revenue,
			Mode:     orders.ReceiptMode(cfg.ReceiptMode),
		},
		CORSOrigins: cfg.CORSOrigins,
	}).Register(router)

	relay := &notify.Relay{
		Outbox:      repo,
		Publisher:   prod,
		ServiceName: cfg.ServiceName,
		Batch:       cfg.OutboxBatch,
		MaxAttempts: cfg.OutboxMaxAttempts,
		StaleAfter:  cfg.OutboxStaleAfter,
		Interval:    cfg.OutboxInterval,
	}
	log.WithField("topic", prod.Topic()).Info("outbox relay publishing")
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
		cancel()
	}
	log.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	<-relayDone
	return errors.Wrap(err, "listen")
}
