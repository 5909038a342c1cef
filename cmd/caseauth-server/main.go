package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	caseAuth "github.com/MrEthical07/caseAuth"
	"github.com/MrEthical07/caseAuth/auditsink"
	"github.com/MrEthical07/caseAuth/directory"
	"github.com/MrEthical07/caseAuth/handler"
	"github.com/MrEthical07/caseAuth/internal/rate"
	"github.com/MrEthical07/caseAuth/internal/serverconfig"
	caseJWT "github.com/MrEthical07/caseAuth/jwt"
	promexport "github.com/MrEthical07/caseAuth/metrics/export/prometheus"
	"github.com/MrEthical07/caseAuth/store/postgres"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "caseauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := serverconfig.Load(args)
	if err != nil {
		return err
	}

	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	db, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	sinks, closeSinks := auditSinks(cfg, logger)
	defer closeSinks()

	engine, err := buildEngine(cfg, db, rdb, sinks, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	router, err := newRouter(cfg, engine, rdb, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen, "ldap", cfg.LDAP.Enabled, "external", cfg.External.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func auditSinks(cfg *serverconfig.Config, logger *slog.Logger) (caseAuth.MultiSink, func()) {
	var sinks caseAuth.MultiSink
	closeFn := func() {}

	if cfg.Engine.AuditStdout {
		sinks = append(sinks, caseAuth.NewJSONWriterSink(os.Stdout))
	}

	if cfg.AMQP.URL != "" {
		// audit shipping is best effort; logins keep working without the broker
		mq, err := auditsink.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("audit broker unavailable, continuing without it", "error", err)
		} else {
			sinks = append(sinks, mq)
			closeFn = func() { _ = mq.Close() }
		}
	}

	return sinks, closeFn
}

func buildEngine(cfg *serverconfig.Config, db *sql.DB, rdb redis.UniversalClient, sink caseAuth.AuditSink, logger *slog.Logger) (*caseAuth.Engine, error) {
	b := caseAuth.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithUserStore(postgres.NewUserRepository(db)).
		WithCaseStore(postgres.NewCaseRepository(db)).
		WithSettingsSource(postgres.NewSettingsRepository(db)).
		WithPermissions(cfg.Engine.Permissions).
		WithGroups(cfg.Engine.Groups).
		WithAuditSink(sink).
		WithLogger(logger)

	if cfg.LDAP.Enabled {
		dir, err := directory.NewLDAP(cfg.LDAP.DirectoryConfig())
		if err != nil {
			return nil, fmt.Errorf("ldap: %w", err)
		}
		b.WithDirectory(dir)
	}

	if cfg.External.Enabled {
		vcfg, err := cfg.External.VerifierConfig()
		if err != nil {
			return nil, err
		}
		verifier, err := caseJWT.NewVerifier(vcfg)
		if err != nil {
			return nil, fmt.Errorf("identity token verifier: %w", err)
		}
		b.WithExternalVerifier(verifier)
	}

	return b.Build()
}

func newRouter(cfg *serverconfig.Config, engine *caseAuth.Engine, rdb redis.UniversalClient, logger *slog.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Engine.SessionTTL.Seconds()),
		Secure:   cfg.Server.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	limiter := rate.New(rdb, rate.Config{
		Prefix:           cfg.Engine.SessionPrefix,
		EnableIPThrottle: cfg.Throttle.PerIP,
		MaxAttempts:      cfg.Throttle.MaxAttempts,
		Window:           cfg.Throttle.Window,
	})

	handler.New(handler.Config{
		TrustForwardedProto: cfg.Server.TrustForwardedProto,
		AllowLocalFallback:  cfg.LDAP.LocalFallback,
		EnableExternal:      cfg.External.Enabled,
	}, handler.Deps{
		Auth:     engine,
		Store:    store,
		Throttle: limiter,
		Sessions: engine,
		Metrics:  promexport.NewCollector(engine).Handler(),
		Logger:   logger,
	}).Register(r)

	return r, nil
}
