package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/carelink/whatsapp-bot/internal/config"
	"github.com/carelink/whatsapp-bot/internal/handler"
	"github.com/carelink/whatsapp-bot/internal/service/bot"
	"github.com/carelink/whatsapp-bot/internal/service/care"
	"github.com/carelink/whatsapp-bot/internal/service/messagelog"
	"github.com/carelink/whatsapp-bot/internal/service/ratelimit"
	"github.com/carelink/whatsapp-bot/internal/service/session"
	"github.com/carelink/whatsapp-bot/internal/service/token"
	"github.com/carelink/whatsapp-bot/internal/service/whatsapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	issuer, err := token.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize token issuer")
	}
	sessions := session.NewStore(issuer, cfg.Session.InactivityTimeout)

	limiter := ratelimit.New(map[string]ratelimit.BucketConfig{
		ratelimit.ClassWhatsAppSend: {Capacity: cfg.RateLimits.SendCapacity, RefillRate: cfg.RateLimits.SendRefillRate},
		ratelimit.ClassWhatsAppRead: {Capacity: cfg.RateLimits.ReadCapacity, RefillRate: cfg.RateLimits.ReadRefillRate},
		ratelimit.ClassCareAPI:      {Capacity: cfg.RateLimits.CareCapacity, RefillRate: cfg.RateLimits.CareRefillRate},
	})

	careClient := care.NewClient(cfg.CareAPI.BaseURL, cfg.CareAPI.APIKey, cfg.CareAPI.Timeout)
	careAPI := care.NewLimited(careClient, limiter)

	gateway := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, limiter, cfg.WhatsApp.Timeout)

	var audit messagelog.Recorder
	if cfg.MessageLog.Path != "" {
		msgLog, err := messagelog.Open(cfg.MessageLog.Path)
		if err != nil {
			logrus.WithError(err).Fatal("failed to open message log")
		}
		defer msgLog.Close()
		audit = msgLog
		logrus.WithField("path", cfg.MessageLog.Path).Info("message audit log enabled")
	} else {
		audit = messagelog.NewNop()
	}

	engine := bot.New(sessions, careAPI, audit)

	router := handler.NewRouter(engine, gateway, cfg.WhatsApp.VerifyToken)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logrus.WithField("addr", addr).Info("whatsapp bot listening")
	if err := runServer(ctx, srv); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
