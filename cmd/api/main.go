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

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/note"
	noterepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/note/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/otp"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ratelimit"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type serverConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	if err := run(sugar); err != nil {
		sugar.Errorw("service stopped", "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
	sugar.Info("goodbye")
}

func run(sugar *zap.SugaredLogger) error {
	sugar.Info("starting service-auth-go")

	var srvCfg serverConfig
	if err := env.Parse(&srvCfg); err != nil {
		return fmt.Errorf("parse server env: %w", err)
	}

	repCfg, err := utilities.ReporterConfigFromEnv()
	if err != nil {
		return err
	}
	reporter, err := utilities.NewReporter(repCfg)
	if err != nil {
		sugar.Warnw("error reporting disabled", "err", err)
	}
	defer reporter.Flush(2 * time.Second)

	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		return err
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx, db.DB)
	cancel()
	if err != nil {
		return err
	}

	tokenCfg, err := token.ConfigFromEnv()
	if err != nil {
		return err
	}
	tokens, err := token.NewService(tokenCfg, nil)
	if err != nil {
		return err
	}

	mailCfg, err := notify.ConfigFromEnv()
	if err != nil {
		return err
	}
	sender, err := notify.NewSender(mailCfg, sugar)
	if err != nil {
		return err
	}
	if mailCfg.Provider == notify.ProviderLog {
		sugar.Warn("EMAIL_PROVIDER=log: login codes are written to the log, not emailed")
	}

	limitCfg, err := ratelimit.ConfigFromEnv()
	if err != nil {
		return err
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		return err
	}
	routerCfg, err := router.ConfigFromEnv()
	if err != nil {
		return err
	}

	accounts := accountrepo.NewAccountRepo(db)
	authSvc := auth.NewService(auth.Deps{
		Store:    accounts,
		OTP:      otp.NewIssuer(accounts, nil, nil),
		Notifier: notify.NewDispatcher(sender, mailCfg, sugar),
		Tokens:   tokens,
		IDs:      utilities.NewIDGenerator(utilities.IDConfigFromEnv().Node),
		Logger:   sugar,
	})

	var provider auth.IdentityProvider
	if authCfg.GoogleEnabled() {
		provider = auth.NewGoogleProvider(authCfg)
	} else {
		sugar.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; Google login disabled")
	}

	handler := router.RegisterRoutes(sugar, routerCfg, router.Deps{
		Auth:    auth.NewHandler(authSvc, provider, tokens, authCfg, sugar, reporter),
		Notes:   note.NewHandler(note.NewService(noterepo.NewNoteRepo(db), utilities.NewKSUID), sugar, reporter),
		Limiter: ratelimit.New(limitCfg, nil),
		DB:      db,
	})

	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", srvCfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	// let pending welcome emails finish
	authSvc.Wait()
	return nil
}
