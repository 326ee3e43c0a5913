package ratelimit

import (
	"context"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/services/counter"
	"go.uber.org/zap"
)

// FailureMode decides what happens when the counter store is unreachable.
type FailureMode string

const (
	// FailOpen admits requests when the store cannot be reached.
	FailOpen FailureMode = "open"
	// FailClosed denies requests when the store cannot be reached.
	FailClosed FailureMode = "closed"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	// Degraded is set when the store was unreachable and the decision came
	// from the configured failure mode rather than the counter.
	Degraded bool
}

// Service enforces fixed-window rate limits against a counter store
// shared by every gateway replica.
type Service struct {
	store  counter.Store
	mode   FailureMode
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a rate limit service.
func NewService(store counter.Store, mode FailureMode, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		mode:   mode,
		logger: logger,
		now:    time.Now,
	}
}

// Allow checks and consumes one slot of the fixed-window counter for the
// tenant/scope pair. The counter key includes the window index, so every
// replica sharing the store lands on the same counter and the key expires
// with the window.
//
// The check is increment-then-compare: the atomic increment happens first
// and the ceiling comparison is done on the returned value. Two concurrent
// requests can therefore never both observe "below ceiling" before either
// has incremented. When the post-increment value exceeds the ceiling the
// slot is refunded so denied attempts do not inflate the window.
func (s *Service) Allow(ctx context.Context, tenantID, scope string, cfg models.RateLimitConfig) *Result {
	if !cfg.Enabled() {
		return &Result{Allowed: true}
	}

	now := s.now()
	windowIndex := now.Unix() / int64(cfg.Window/time.Second)
	key := models.RateKey(tenantID, scope, windowIndex).String()

	v, err := s.store.IncrBy(ctx, key, 1, cfg.Window)
	if err != nil {
		return s.resolveStoreFailure(tenantID, scope, cfg, err)
	}

	if v > int64(cfg.Requests) {
		// Refund the denied attempt.
		if _, derr := s.store.DecrBy(ctx, key, 1); derr != nil {
			s.logger.Warn("rate limit refund failed",
				zap.String("tenant_id", tenantID),
				zap.String("scope", scope),
				zap.Error(derr))
		}
		return &Result{
			Allowed:    false,
			RetryAfter: s.retryAfter(ctx, key, cfg),
		}
	}

	return &Result{
		Allowed:   true,
		Remaining: cfg.Requests - int(v),
	}
}

// retryAfter reads the remaining window time from the counter's TTL,
// falling back to the full window length when the TTL is unavailable.
func (s *Service) retryAfter(ctx context.Context, key string, cfg models.RateLimitConfig) time.Duration {
	ttl, err := s.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return cfg.Window
	}
	return ttl
}

// resolveStoreFailure applies the configured fail-open/fail-closed policy
// to a store connectivity error. The degraded condition is flagged on the
// result so callers can record it in the audit trail.
func (s *Service) resolveStoreFailure(tenantID, scope string, cfg models.RateLimitConfig, err error) *Result {
	s.logger.Error("counter store unreachable during rate check",
		zap.String("tenant_id", tenantID),
		zap.String("scope", scope),
		zap.String("failure_mode", string(s.mode)),
		zap.Error(err))

	if s.mode == FailOpen {
		return &Result{Allowed: true, Degraded: true}
	}
	return &Result{Allowed: false, Degraded: true, RetryAfter: cfg.Window}
}
