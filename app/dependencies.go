package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/ai-gateway/config"
	"github.com/upb/ai-gateway/handlers"
	"github.com/upb/ai-gateway/middleware"
	"github.com/upb/ai-gateway/policy"
	"github.com/upb/ai-gateway/repositories"
	"github.com/upb/ai-gateway/repositories/jsonl"
	"github.com/upb/ai-gateway/repositories/postgres"
	"github.com/upb/ai-gateway/services/audit"
	"github.com/upb/ai-gateway/services/counter"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/services/guard"
	"github.com/upb/ai-gateway/services/providers"
	"github.com/upb/ai-gateway/services/providers/azure"
	"github.com/upb/ai-gateway/services/providers/ollama"
	"github.com/upb/ai-gateway/services/providers/openai"
	"github.com/upb/ai-gateway/services/proxy"
	"github.com/upb/ai-gateway/services/quota"
	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/redact"
	"github.com/upb/ai-gateway/services/tokenizer"
	"go.uber.org/zap"
)

// proxyTimeout bounds one upstream round trip on proxy routes.
const proxyTimeout = 60 * time.Second

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Redis  *goredis.Client
	DB     *postgres.DB

	// Policy
	PolicyStore *policy.Store
	TenantAuth  *middleware.TenantAuth

	// Services
	Audit    *audit.Service
	Gateway  *gateway.Service
	Registry *providers.Registry

	// Handlers
	GenerateHandler *handlers.GenerateHandler
	ProxyHandler    *handlers.ProxyHandler
	AdminHandler    *handlers.AdminHandler
	HealthHandler   *handlers.HealthHandler

	jsonlRepo *jsonl.AuditRepository
	resolver  *policy.Resolver
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initCounterStore(ctx, cfg)

	if err := deps.initPolicy(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize policy: %w", err)
	}

	auditRepo, err := deps.initAuditSink(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit sink: %w", err)
	}

	deps.Audit = audit.NewService(auditRepo, logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := deps.Audit.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audit workers: %w", err)
	}

	deps.initProviders(cfg)
	deps.initGateway(cfg)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized",
		zap.Int("tenants", deps.PolicyStore.Snapshot().TenantCount()),
		zap.Strings("providers", deps.Registry.Names()),
		zap.String("failure_mode", cfg.Enforcement.FailureMode),
		zap.String("audit_sink", string(cfg.Audit.Sink)))

	return deps, nil
}

// initCounterStore connects to the shared counter store. An unreachable
// store at boot is not fatal; the failure mode decides per request.
func (d *Dependencies) initCounterStore(ctx context.Context, cfg *config.Config) {
	d.Redis = goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.Redis.Ping(pingCtx).Err(); err != nil {
		d.Logger.Warn("counter store unreachable at startup",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
	} else {
		d.Logger.Info("counter store connected", zap.String("addr", cfg.Redis.Addr))
	}
}

// initPolicy loads the tenant policy document and builds the credential
// resolver. The auth middleware itself is wired later, once the audit
// sink it reports denials to is running.
func (d *Dependencies) initPolicy(cfg *config.Config) error {
	d.PolicyStore = policy.NewStore(d.Logger)
	if err := d.PolicyStore.LoadFile(cfg.Policy.File); err != nil {
		return err
	}

	d.resolver = policy.NewResolver([]byte(cfg.Policy.JWTSecret), d.Logger)
	return nil
}

// initAuditSink builds the configured audit repository.
func (d *Dependencies) initAuditSink(ctx context.Context, cfg *config.Config) (repositories.AuditRepository, error) {
	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		db, err := postgres.NewDB(postgres.PoolConfig{
			DSN:             cfg.Audit.Database.DSN(),
			MaxOpenConns:    cfg.Audit.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.Database.ConnMaxLifetime,
		}, d.Logger)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		d.DB = db
		d.Logger.Info("audit sink ready",
			zap.String("sink", "postgres"),
			zap.String("database", cfg.Audit.Database.LogString()))
		return postgres.NewAuditRepository(db, d.Logger), nil

	case config.AuditSinkJSONL:
		repo, err := jsonl.NewAuditRepository(cfg.Audit.JSONLPath)
		if err != nil {
			return nil, err
		}
		d.jsonlRepo = repo
		d.Logger.Info("audit sink ready",
			zap.String("sink", "jsonl"),
			zap.String("path", cfg.Audit.JSONLPath))
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

// initProviders registers every provider the configuration enables.
func (d *Dependencies) initProviders(cfg *config.Config) {
	registry := providers.NewRegistry()

	if cfg.Providers.OpenAI.APIKey != "" {
		registry.Register(openai.New(providers.Config{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			Timeout: cfg.Providers.OpenAI.Timeout,
		}))
		d.Logger.Info("registered openai provider")
	}

	if cfg.Providers.Azure.APIKey != "" && cfg.Providers.Azure.BaseURL != "" {
		registry.Register(azure.New(providers.Config{
			APIKey:     cfg.Providers.Azure.APIKey,
			BaseURL:    cfg.Providers.Azure.BaseURL,
			Timeout:    cfg.Providers.Azure.Timeout,
			Deployment: cfg.Providers.Azure.Deployment,
			APIVersion: cfg.Providers.Azure.APIVersion,
		}))
		d.Logger.Info("registered azure provider")
	}

	if cfg.Providers.Ollama.BaseURL != "" {
		registry.Register(ollama.New(providers.Config{
			BaseURL: cfg.Providers.Ollama.BaseURL,
			Timeout: cfg.Providers.Ollama.Timeout,
		}))
		d.Logger.Info("registered ollama provider")
	}

	if len(registry.Names()) == 0 {
		d.Logger.Warn("no AI providers configured; AI routes will be rejected")
	}

	d.Registry = registry
}

// initGateway assembles the admission pipeline.
func (d *Dependencies) initGateway(cfg *config.Config) {
	mode := ratelimit.FailClosed
	if cfg.Enforcement.FailureMode == "open" {
		mode = ratelimit.FailOpen
	}

	store := counter.NewRedisStore(d.Redis,
		counter.WithKeyPrefix(cfg.Redis.KeyPrefix),
		counter.WithOpTimeout(cfg.Redis.OpTimeout))

	estimator := tokenizer.NewHeuristicEstimator()
	estimator.CompletionReserve = cfg.Enforcement.CompletionReserve

	d.Gateway = gateway.NewService(
		ratelimit.NewService(store, mode, d.Logger),
		quota.NewService(store, mode, d.Logger),
		redact.NewService(),
		guard.NewService(cfg.Enforcement.GuardThreshold),
		estimator,
		d.Registry,
		proxy.NewService(proxyTimeout, d.Logger),
		d.Audit,
		d.Logger,
	)
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.TenantAuth = middleware.NewTenantAuth(d.PolicyStore, d.resolver, d.Audit, d.Logger)
	d.GenerateHandler = handlers.NewGenerateHandler(d.Gateway, d.Logger)
	d.ProxyHandler = handlers.NewProxyHandler(d.Gateway, d.Logger)
	d.AdminHandler = handlers.NewAdminHandler(d.PolicyStore, cfg.Policy.File, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.PolicyStore)
}

// Close gracefully shuts down all dependencies. The audit queue drains
// first so in-flight records reach the sink before it closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain audit queue: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close counter store client: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit database: %w", err))
		}
	}

	if d.jsonlRepo != nil {
		if err := d.jsonlRepo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit file: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
