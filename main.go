package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctf-arena/internal"
	"ctf-arena/internal/attachments"
	"ctf-arena/internal/config"
	"ctf-arena/internal/logging"
	"ctf-arena/internal/mail"
	"ctf-arena/internal/realtime"
	"ctf-arena/internal/scoreboard"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("ctf-arena", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := flags.Bool("migrate-only", false, "apply the database schema and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	checks := map[string]internal.Checker{}

	// --- Store ---
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		st = store.NewMemory()
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to postgres")
		st = pg
	}
	defer st.Close()
	checks["store"] = internal.CheckerFunc(st.Ping)

	if *migrateOnly {
		logger.Info("migrations applied")
		return nil
	}

	if cfg.AdminEmail != "" {
		hash, err := internal.HashPassword(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("hashing admin password: %w", err)
		}
		created, err := store.EnsureAdmin(ctx, st, cfg.AdminEmail, hash)
		if err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
		if created {
			logger.Info("created admin account", "email", cfg.AdminEmail)
		}
	}

	// --- Realtime ---
	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	var bus *realtime.RedisBus
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		bus = realtime.NewRedisBus(rdb, hub, logger)
		publisher = bus
		checks["redis"] = internal.CheckerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info("connected to redis")
	}

	// --- Attachments & mail ---
	files, err := attachments.NewDir(cfg.AttachmentsDir)
	if err != nil {
		return err
	}

	var mailer mail.Mailer = mail.LogMailer{Logger: logger}
	if cfg.SMTPEnabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	var limiter *internal.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiter = internal.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateLimit)
	}

	board := scoreboard.New(st, cfg.PollInterval, logger)

	// --- HTTP Server ---
	router := internal.Router(internal.Deps{
		Store:     st,
		Board:     board,
		Publisher: publisher,
		Files:     files,
		Mailer:    mailer,
		Logger:    logger,
		Auth: internal.AuthConfig{
			Secret:       cfg.JWTSecret,
			TokenTTL:     cfg.TokenTTL,
			CookieSecure: cfg.CookieSecure,
		},
		ClientURL:   cfg.ClientURL,
		StaticDir:   cfg.StaticDir,
		RateLimiter: limiter,
		Checks:      checks,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		events := hub.Subscribe()
		defer hub.Unsubscribe(events)
		return board.Run(gctx, events)
	})

	if bus != nil {
		g.Go(func() error { return bus.Run(gctx) })
	}

	if limiter != nil {
		g.Go(func() error {
			t := time.NewTicker(10 * time.Minute)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					limiter.Prune(time.Hour)
				}
			}
		})
	}

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
