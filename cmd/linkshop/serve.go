package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	lshttp "github.com/Strob0t/linkshop/internal/adapter/http"
	"github.com/Strob0t/linkshop/internal/adapter/memlimit"
	lsnats "github.com/Strob0t/linkshop/internal/adapter/nats"
	"github.com/Strob0t/linkshop/internal/adapter/natskv"
	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/adapter/postgres"
	"github.com/Strob0t/linkshop/internal/adapter/redislimit"
	"github.com/Strob0t/linkshop/internal/adapter/ristretto"
	"github.com/Strob0t/linkshop/internal/adapter/sms"
	"github.com/Strob0t/linkshop/internal/adapter/tiered"
	"github.com/Strob0t/linkshop/internal/adapter/ws"
	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/logger"
	"github.com/Strob0t/linkshop/internal/port/cache"
	"github.com/Strob0t/linkshop/internal/port/messagequeue"
	"github.com/Strob0t/linkshop/internal/port/ratelimit"
	smsport "github.com/Strob0t/linkshop/internal/port/sms"
	"github.com/Strob0t/linkshop/internal/resilience"
	"github.com/Strob0t/linkshop/internal/secrets"
	"github.com/Strob0t/linkshop/internal/service"
)

// ServeCmd runs the HTTP API until SIGINT or SIGTERM.
type ServeCmd struct {
	Port     string `help:"Listen port, overrides server.port."`
	LogLevel string `help:"Log level, overrides logging.level."`
	DSN      string `help:"Postgres DSN, overrides postgres.dsn."`
	NatsURL  string `help:"NATS URL, overrides nats.url. Empty runs without a broker."`
	NodeID   int64  `help:"Snowflake node ID, unique per replica." default:"1" env:"LINKSHOP_NODE_ID"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load(config.Overrides{
		Port:     optional(c.Port),
		LogLevel: optional(c.LogLevel),
		DSN:      optional(c.DSN),
		NatsURL:  optional(c.NatsURL),
	})
	if err != nil {
		return err
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats", cfg.NATS.URL != "",
		"redis", cfg.Redis.Addr != "",
	)

	vault, err := secrets.NewVault(secrets.Chain(
		secrets.DotenvLoader(g.EnvFile, secrets.Keys...),
		secrets.EnvLoader(secrets.Keys...),
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if vault.Get(secrets.JWTSecret) == "" {
		return fmt.Errorf("%s is not set", secrets.JWTSecret)
	}
	vault.WatchSIGHUP(ctx)

	// --- Telemetry ---

	shutdownOTEL, err := lsotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := lsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")
	store := postgres.NewStore(pool)

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	var appCache cache.Cache = l1

	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := lsnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = q

		l2, err := natskv.Open(ctx, q.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("l2 cache: %w", err)
		}
		appCache = tiered.New(l1, l2, cfg.Cache.TenantTTL)
	}

	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rl, err := redislimit.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rl.Close() }()
		limiter = rl
	} else {
		ml := memlimit.New()
		ml.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		limiter = ml
	}

	var sender smsport.Sender
	switch cfg.SMS.Provider {
	case "http":
		breaker := resilience.NewBreaker("sms", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		sender = sms.NewGateway(cfg.SMS.URL, cfg.SMS.Sender, func() string {
			return vault.Get(secrets.SMSAPIKey)
		}, cfg.SMS.Timeout, breaker)
	default:
		sender = sms.NewLogSender(log)
	}

	node, err := snowflake.NewNode(c.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}

	origins := splitOrigins(cfg.Server.CORSOrigin)
	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	hub := ws.NewHub(originHosts(origins))

	// --- Services ---

	tenants := service.NewTenantService(store, appCache, cfg.Cache.TenantTTL)
	if queue != nil {
		tenants.ShareInvalidations(queue, l1)
	}
	plans := service.NewPlanService(tenants, store, plan.Tier(cfg.Plan.TrialTier))
	events := service.NewEventPublisher(queue, hub)
	defer events.Close()
	customerAuth := service.NewCustomerAuthService(store, sender, cfg.Auth, metrics)
	customerAuth.LimitPerPhone(limiter, ratelimit.Rule{Max: cfg.Rate.SendOTPPhone.Max, Interval: cfg.Rate.SendOTPPhone.Interval})
	recovery := service.NewRecoveryService(store, plans, metrics, node, cfg.Recovery)

	h := &lshttp.Handlers{
		Tenants:      tenants,
		Plans:        plans,
		Auth:         service.NewAuthService(store, cfg.Auth, vault),
		CustomerAuth: customerAuth,
		Orders:       service.NewOrderService(store, plans, events, metrics, node),
		Products:     service.NewProductService(store, plans),
		Analytics:    service.NewAnalyticsService(store, tenants, appCache),
		Coupons:      service.NewCouponService(store),
		Customers:    service.NewCustomerService(store),
		Recovery:     recovery,
		Hub:          hub,
		CookieSecure: cfg.Server.CookieSecure,
		Ready:        store.Ping,
	}

	stopFanout, err := events.StartFanout(ctx)
	if err != nil {
		return fmt.Errorf("event fanout: %w", err)
	}
	defer stopFanout()
	stopInvalidations, err := tenants.ListenInvalidations(ctx)
	if err != nil {
		return fmt.Errorf("tenant invalidations: %w", err)
	}
	defer stopInvalidations()
	recovery.Start(ctx)
	customerAuth.StartSessionCleanup(ctx, time.Hour)

	// --- HTTP ---

	otelService := ""
	if cfg.OTEL.Enabled {
		otelService = cfg.OTEL.ServiceName
	}
	router := lshttp.NewRouter(h, lshttp.RouterConfig{
		BaseDomain:       cfg.Server.BaseDomain,
		CORSOrigins:      origins,
		RequestTimeout:   cfg.Server.RequestTimeout,
		TrustedProxies:   proxies,
		Limiter:          limiter,
		Rates:            cfg.Rate,
		IdempotencyCache: appCache,
		IdempotencyTTL:   cfg.Idempotency.TTL,
		WebhookSecret:    func() string { return vault.Get(secrets.PaymentWebhookKey) },
		Metrics:          metrics,
		HTTPMetrics:      lshttp.NewHTTPMetrics(),
		OTELService:      otelService,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// splitOrigins parses the comma separated CORS origin list.
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// originHosts turns CORS origins into the host patterns the websocket
// upgrader matches against.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
