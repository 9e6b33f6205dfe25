package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/payledger/internal/alert"
	"github.com/punchamoorthee/payledger/internal/api"
	"github.com/punchamoorthee/payledger/internal/config"
	"github.com/punchamoorthee/payledger/internal/directory"
	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/logging"
	"github.com/punchamoorthee/payledger/internal/service"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var uow store.UnitOfWork
	var methods service.MethodDirectory
	if cfg.DBSource == "memory" {
		log.Warn("using in-memory store; data is lost on exit")
		uow = store.NewMemory()
		methods = directory.NewStatic(domain.PaymentMethod{
			CountryID: 1, MethodTypeID: 1, Name: "Bank Transfer", IsActive: true,
			UserInstructions: "Transfer the amount and submit the bank reference.",
		})
	} else {
		pg, err := store.NewStore(ctx, cfg.DBSource)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		uow = pg
		methods = directory.NewPostgres(pg.Db)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := directory.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Warn("payment method cache disabled")
		} else {
			defer rdb.Close()
			methods = directory.NewCached(methods, rdb, cfg.Redis.TTL, log)
		}
	}

	var alerter service.Alerter = alert.Nop{}
	if cfg.SMTP.Host != "" {
		alerter = alert.NewMailer(cfg.SMTP)
	}

	// Initialize Layers
	ledger := service.NewLedger(uow)
	subscriptions := service.NewSubscriptionService(uow)
	dispatcher := service.NewDispatcher(ledger, subscriptions)
	handler := api.NewHandler(api.Services{
		Ledger:        ledger,
		Transactions:  service.NewTransactionService(uow, methods, dispatcher, alerter, log),
		Withdrawals:   service.NewWithdrawalService(uow, ledger, log),
		Gifts:         service.NewGiftService(uow, ledger, subscriptions, methods, cfg.Currency, log),
		Subscriptions: subscriptions,
	}, cfg.AdminToken, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("Server starting on :%s (%s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
