package quota

import (
	"context"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/services/counter"
	"github.com/upb/ai-gateway/services/ratelimit"
	"go.uber.org/zap"
)

// Result is the outcome of a quota consumption attempt.
type Result struct {
	Consumed  bool
	Remaining int64
	// Deficit is how many units the request was short by when denied.
	Deficit int64
	// Degraded is set when the store was unreachable and the decision came
	// from the configured failure mode.
	Degraded bool
}

// Service is the usage-quota side of the enforcement engine: a period
// ledger of consumed units (tokens for AI routes, requests for proxy
// routes) shared across replicas through the counter store.
type Service struct {
	store  counter.Store
	mode   ratelimit.FailureMode
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a quota service.
func NewService(store counter.Store, mode ratelimit.FailureMode, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		mode:   mode,
		logger: logger,
		now:    time.Now,
	}
}

// Consume atomically debits units from the tenant/scope ledger for the
// current period. Like the rate limiter it increments first and checks
// the returned value, so the ledger can transiently exceed the ceiling by
// at most the units of the request that caused the denial; that request
// is refunded before Denied is returned, keeping committed usage at or
// below the ceiling.
func (s *Service) Consume(ctx context.Context, tenantID, scope string, units int64, cfg models.QuotaConfig) *Result {
	if !cfg.Enabled() || units <= 0 {
		return &Result{Consumed: true, Remaining: cfg.Units}
	}

	now := s.now()
	key := models.QuotaKey(tenantID, scope, cfg.PeriodKey(now)).String()

	v, err := s.store.IncrBy(ctx, key, units, cfg.PeriodTTL(now))
	if err != nil {
		return s.resolveStoreFailure(tenantID, scope, err)
	}

	if v > cfg.Units {
		if _, derr := s.store.DecrBy(ctx, key, units); derr != nil {
			s.logger.Warn("quota refund failed",
				zap.String("tenant_id", tenantID),
				zap.String("scope", scope),
				zap.Int64("units", units),
				zap.Error(derr))
		}
		return &Result{
			Consumed: false,
			Deficit:  v - cfg.Units,
		}
	}

	return &Result{
		Consumed:  true,
		Remaining: cfg.Units - v,
	}
}

// Adjust reconciles the ledger after dispatch with the actual usage
// reported by the provider: delta is actual minus estimated units. The
// adjustment is unconditional; usage that already happened is committed
// even when it pushes the ledger past the ceiling, and over-estimates are
// refunded. Adjustment failures are logged, not surfaced: the request has
// already been served.
func (s *Service) Adjust(ctx context.Context, tenantID, scope string, delta int64, cfg models.QuotaConfig) {
	if !cfg.Enabled() || delta == 0 {
		return
	}

	now := s.now()
	key := models.QuotaKey(tenantID, scope, cfg.PeriodKey(now)).String()

	var err error
	if delta > 0 {
		_, err = s.store.IncrBy(ctx, key, delta, cfg.PeriodTTL(now))
	} else {
		_, err = s.store.DecrBy(ctx, key, -delta)
	}
	if err != nil {
		s.logger.Warn("quota post-hoc adjustment failed",
			zap.String("tenant_id", tenantID),
			zap.String("scope", scope),
			zap.Int64("delta", delta),
			zap.Error(err))
	}
}

// Remaining returns the unconsumed units for the current period.
func (s *Service) Remaining(ctx context.Context, tenantID, scope string, cfg models.QuotaConfig) (int64, error) {
	if !cfg.Enabled() {
		return 0, nil
	}

	key := models.QuotaKey(tenantID, scope, cfg.PeriodKey(s.now())).String()
	used, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	remaining := cfg.Units - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *Service) resolveStoreFailure(tenantID, scope string, err error) *Result {
	s.logger.Error("counter store unreachable during quota check",
		zap.String("tenant_id", tenantID),
		zap.String("scope", scope),
		zap.String("failure_mode", string(s.mode)),
		zap.Error(err))

	if s.mode == ratelimit.FailOpen {
		return &Result{Consumed: true, Degraded: true}
	}
	return &Result{Consumed: false, Degraded: true}
}
