package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iuliailies/moneytrack-backend/internal/analytics"
	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/auth"
	"github.com/iuliailies/moneytrack-backend/internal/bank"
	"github.com/iuliailies/moneytrack-backend/internal/budget"
	"github.com/iuliailies/moneytrack-backend/internal/categorize"
	"github.com/iuliailies/moneytrack-backend/internal/config"
	"github.com/iuliailies/moneytrack-backend/internal/dashboard"
	"github.com/iuliailies/moneytrack-backend/internal/grpcserver"
	"github.com/iuliailies/moneytrack-backend/internal/httpapi"
	"github.com/iuliailies/moneytrack-backend/internal/ledger"
	"github.com/iuliailies/moneytrack-backend/internal/logger"
	"github.com/iuliailies/moneytrack-backend/internal/notify"
	"github.com/iuliailies/moneytrack-backend/internal/recurring"
	"github.com/iuliailies/moneytrack-backend/internal/store"
	"github.com/iuliailies/moneytrack-backend/internal/transactions"
	"github.com/iuliailies/moneytrack-backend/internal/worker"
)

const bankTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.json", "path to the optional JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	pg, err := store.New(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pg.Close()
	log.Info().Msg("connected to the database")

	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	sink, closeSink := auditSink(ctx, cfg, log)
	defer closeSink()

	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		rmq, err := notify.NewRabbitMQPublisher(cfg.AMQPURL, cfg.AMQPQueue, log)
		if err != nil {
			return err
		}
		defer rmq.Close()
		publisher = rmq
	} else {
		log.Warn().Msg("AMQP not configured, notifications stay in the database")
	}

	var chat notify.ChatSender
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			log.Error().Err(err).Msg("telegram disabled")
		} else {
			chat = tg
		}
	}

	var llm categorize.LLM
	if cfg.OpenAIKey != "" {
		llm = categorize.NewOpenAIChooser(cfg.OpenAIKey, cfg.OpenAIModel)
	}

	var vault *bank.Vault
	if cfg.CredentialsKey != "" {
		key, err := cfg.Key()
		if err != nil {
			return err
		}
		vault = bank.NewVault(key)
	} else {
		log.Warn().Msg("credentials key not configured, bank API connections are disabled")
	}

	notifier := notify.NewService(pg, publisher, chat, log.With().Str("component", "notify").Logger())
	budgets := budget.NewService(pg, notifier, log.With().Str("component", "budget").Logger())
	categorizer := categorize.NewService(pg, llm, log.With().Str("component", "categorize").Logger())
	txs := transactions.NewService(pg, categorizer, budgets, notifier, log.With().Str("component", "transactions").Logger())
	svc := httpapi.Services{
		Auth:         auth.NewService(pg, sink, log.With().Str("component", "auth").Logger(), cfg.DefaultCurrency, cfg.DefaultTimezone),
		Transactions: txs,
		Recurring:    recurring.NewService(pg, txs, log.With().Str("component", "recurring").Logger()),
		Bank: bank.NewService(pg, vault, bank.NewHTTPClient(bankTimeout), sink, txs, cfg.BankSyncWorkers,
			log.With().Str("component", "bank").Logger()),
		Budgets:   budgets,
		Ledgers:   ledger.NewService(pg, txs, notifier, log.With().Str("component", "ledger").Logger()),
		Dashboard: dashboard.NewService(pg, budgets, log.With().Str("component", "dashboard").Logger()),
		Notify:    notifier,
		Analytics: analytics.NewService(pg, notifier, log.With().Str("component", "analytics").Logger()),
		Audit:     sink,
		Ping:      pg.Ping,
	}

	handler := httpapi.NewHandler(svc, log)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := grpcserver.New(cfg.GRPCAddr, log)
	runner := worker.NewRunner(cfg.JobTimeout, log.With().Str("component", "worker").Logger(),
		worker.Job{Name: "recurring", Interval: cfg.RecurringInterval, Run: svc.Recurring.RunDue},
		worker.Job{Name: "bank-sync", Interval: cfg.BankSyncInterval, Run: svc.Bank.SyncDue},
		worker.Job{Name: "analytics-monthly", Interval: cfg.AnalyticsInterval, Run: svc.Analytics.RunMonthly},
		worker.Job{Name: "analytics-purge", Interval: cfg.AnalyticsInterval, Run: func(ctx context.Context) (int, error) {
			n, err := svc.Analytics.Purge(ctx)
			return int(n), err
		}},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(grpcSrv.Start)
	g.Go(func() error {
		runner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		grpcSrv.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// auditSink connects to MongoDB when configured and otherwise keeps the
// trail in memory.
func auditSink(ctx context.Context, cfg config.Config, log zerolog.Logger) (audit.Sink, func()) {
	if cfg.MongoURI == "" {
		log.Warn().Msg("MongoDB not configured, audit trail kept in memory")
		return audit.NewMemorySink(), func() {}
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sink, err := audit.NewMongoSink(connectCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Error().Err(err).Msg("audit trail falls back to memory")
		return audit.NewMemorySink(), func() {}
	}
	return sink, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("close audit sink")
		}
	}
}
