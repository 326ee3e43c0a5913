// Package jsonl provides a file-backed audit repository that appends one
// JSON object per line. Useful for development and for shipping the trail
// to log pipelines that tail files.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/repositories"
)

// AuditRepository implements repositories.AuditRepository on an
// append-only JSONL file.
type AuditRepository struct {
	mu   sync.Mutex
	file *os.File
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository opens (creating if needed) the audit file for
// appending.
func NewAuditRepository(path string) (*AuditRepository, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open audit file: %w", err)
	}
	return &AuditRepository{file: f}, nil
}

// Insert appends one record as a JSON line. The write is serialized so
// concurrent workers never interleave lines.
func (r *AuditRepository) Insert(_ context.Context, record *models.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("jsonl: marshal audit record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonl: append audit record: %w", err)
	}
	return nil
}

// GetByTenant scans the file for a tenant's records, newest first.
func (r *AuditRepository) GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditRecord, error) {
	return r.scan(ctx, func(rec *models.AuditRecord) bool {
		return rec.TenantID == tenantID
	}, limit, offset)
}

// GetByDateRange scans the file for a tenant's records within the range.
func (r *AuditRepository) GetByDateRange(ctx context.Context, tenantID string, start, end time.Time, limit, offset int) ([]*models.AuditRecord, error) {
	return r.scan(ctx, func(rec *models.AuditRecord) bool {
		return rec.TenantID == tenantID && !rec.Timestamp.Before(start) && !rec.Timestamp.After(end)
	}, limit, offset)
}

// Close flushes and closes the underlying file.
func (r *AuditRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *AuditRepository) scan(ctx context.Context, match func(*models.AuditRecord) bool, limit, offset int) ([]*models.AuditRecord, error) {
	r.mu.Lock()
	path := r.file.Name()
	r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open audit file: %w", err)
	}
	defer f.Close()

	var matched []*models.AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &models.AuditRecord{}
		if err := json.Unmarshal(scanner.Bytes(), rec); err != nil {
			continue // skip corrupt lines
		}
		if match(rec) {
			matched = append(matched, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: scan audit file: %w", err)
	}

	// Newest first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
