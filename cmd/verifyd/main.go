// Command verifyd serves the goVerify captcha and verification code
// endpoints over HTTP.
//
// Configuration comes from the environment and an optional .env file; see
// Config for the keys. Without REDIS_ADDR session facts live in memory,
// without DATABASE_URL the directory is empty, and without SMTP or SMS
// settings messages are only logged.
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

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/captcha"
	"github.com/MrEthical07/goVerify/directory"
	promexport "github.com/MrEthical07/goVerify/metrics/export/prometheus"
	"github.com/MrEthical07/goVerify/notify"
	"github.com/MrEthical07/goVerify/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("verifyd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	for _, w := range engineCfg.Lint() {
		logger.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	var checks []func(context.Context) error

	var facts interface {
		goVerify.SessionFacts
		sessionEraser
	} = session.NewMemoryFacts()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		rf := session.NewRedisFacts(rdb, cfg.RedisPrefix, cfg.SessionLifetime(), true)
		if _, err := rf.Ping(ctx); err != nil {
			return err
		}
		checks = append(checks, func(ctx context.Context) error {
			_, err := rf.Ping(ctx)
			return err
		})
		facts = rf
		logger.Info("session facts in redis", slog.String("addr", cfg.RedisAddr))
	}

	var dir goVerify.DirectoryLookup = directory.NewMemoryDirectory()
	if cfg.DatabaseURL != "" {
		pool, err := newDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		pd, err := directory.NewPostgresDirectory(pool, directory.WithTable(cfg.DirectoryTable))
		if err != nil {
			return err
		}
		checks = append(checks, pool.Ping)
		dir = pd
		logger.Info("directory in postgres", slog.String("table", cfg.DirectoryTable))
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := goVerify.New().
		WithConfig(engineCfg).
		WithNotifier(notifier).
		WithDirectory(dir).
		WithCaptchaRenderer(captcha.NewDigitRenderer()).
		WithSessionFacts(facts).
		WithAuditSink(goVerify.NewSlogSink(logger)).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &server{
		engine:       engine,
		facts:        facts,
		logger:       logger,
		metrics:      promexport.NewExporter(engine).Handler(),
		cookieName:   cfg.SessionCookie,
		cookieSecure: cfg.CookieSecure,
		cookieTTL:    cfg.SessionLifetime(),
		health: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("verifyd listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newNotifier routes email to SMTP and SMS to the gateway when configured,
// and logs messages for channels without a transport outside production.
func newNotifier(cfg *Config, logger *slog.Logger) (goVerify.Notifier, error) {
	mux := notify.NewMux()
	dev := notify.LogNotifier{Logger: logger}

	if cfg.SMTPAddr != "" {
		n, err := notify.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return nil, err
		}
		mux.Handle(goVerify.ChannelEmail, n)
	} else if !cfg.Production() {
		mux.Handle(goVerify.ChannelEmail, dev)
	}

	if cfg.SMSAPIKey != "" && cfg.SMSBaseURL != "" {
		mux.Handle(goVerify.ChannelSMS, notify.NewHTTPSMSNotifier(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender))
	} else if !cfg.Production() {
		mux.Handle(goVerify.ChannelSMS, dev)
	}

	return mux, nil
}

// newDBPool builds a pgxpool and validates connectivity.
func newDBPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
