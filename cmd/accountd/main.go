// Command accountd serves account signup, verification, login and password
// reset over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/internal/config"
	"github.com/MrEthical07/accountcore/internal/httpapi"
	"github.com/MrEthical07/accountcore/internal/logging"
	"github.com/MrEthical07/accountcore/metrics/export/prometheus"
	"github.com/MrEthical07/accountcore/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "accountd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.EphemeralSecret {
		logger.Warn("no token secret configured; sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backing, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backing.close()

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	engine, err := accountcore.New().
		WithConfig(engineCfg).
		WithStore(backing.store).
		WithNotifier(newSender(cfg, logger)).
		WithAuditSink(accountcore.NewLogSink(logger.With("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"signing", report.SigningAlgorithm,
		"key_id", report.KeyID,
		"session_ttl", report.SessionTTL,
		"reset_ttl", report.ResetTTL,
		"epoch_enforced", report.EpochEnforced,
		"otp_max_issues", report.OTPMaxIssues,
		"cookie_secure", report.CookieSecure,
		"audit", report.AuditEnabled,
	)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Engine:  engine,
			Logger:  logger,
			Metrics: prometheus.NewExporter(engine).Handler(),
			Health:  backing.health,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "store", cfg.Store, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSender(cfg *config.Config, logger *slog.Logger) notify.Sender {
	if cfg.SMTP.Host == "" {
		logger.Warn("no SMTP host configured; notifications are logged, not delivered")
		if cfg.Log.NotificationBodies {
			logger.Warn("notification bodies are logged; verification codes and reset links will appear in the log")
		}
		return notify.LogSender{
			Logger:      logger.With("component", "notify"),
			IncludeBody: cfg.Log.NotificationBodies,
		}
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}
