package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/repositories"
	"go.uber.org/zap"
)

// Service persists audit records asynchronously so the request path
// never waits on the audit sink. Records are queued on a buffered
// channel and drained by a pool of workers.
type Service struct {
	repo        repositories.AuditRepository
	logger      *zap.Logger
	recordChan  chan *models.AuditRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewService creates a new audit Service instance
func NewService(repo repositories.AuditRepository, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:        repo,
		logger:      logger,
		recordChan:  make(chan *models.AuditRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
		started:     false,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending records to be persisted.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.recordChan)))

	// No more records will be accepted.
	close(s.recordChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues a record for persistence (non-blocking). When the
// buffer is full the record is dropped and the loss logged; the
// request path is never blocked by the sink.
func (s *Service) Record(record *models.AuditRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- record:
		return nil
	default:
		s.logger.Warn("audit record buffer full, dropping record",
			zap.String("tenant_id", record.TenantID),
			zap.String("request_id", record.RequestID),
			zap.String("decision", string(record.Decision)))
		return fmt.Errorf("audit record buffer full")
	}
}

// RecordBlocking queues a record, waiting until there is room or the
// context is cancelled.
func (s *Service) RecordBlocking(ctx context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit service stopped")
	}
}

// worker drains records from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.recordChan {
		if err := s.persist(record); err != nil {
			s.logger.Error("failed to persist audit record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("tenant_id", record.TenantID),
				zap.String("request_id", record.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) persist(record *models.AuditRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.recordChan),
		WorkerCount:    s.workerCount,
		Started:        s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Started        bool
}
