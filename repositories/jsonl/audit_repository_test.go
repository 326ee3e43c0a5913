package jsonl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/models"
)

func newTestRepo(t *testing.T) (*AuditRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	repo, err := NewAuditRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func insertRecords(t *testing.T, repo *AuditRepository, tenantID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := models.NewAuditRecord(tenantID, "chat").
			WithRequest(fmt.Sprintf("req-%d", i)).
			Allow()
		rec.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Insert(context.Background(), rec))
	}
}

func TestInsertAndGetByTenant(t *testing.T) {
	repo, _ := newTestRepo(t)
	insertRecords(t, repo, "acme", 3)
	insertRecords(t, repo, "globex", 1)

	records, err := repo.GetByTenant(context.Background(), "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, "req-2", records[0].RequestID)
	assert.Equal(t, "req-0", records[2].RequestID)
}

func TestGetByTenant_Pagination(t *testing.T) {
	repo, _ := newTestRepo(t)
	insertRecords(t, repo, "acme", 5)

	records, err := repo.GetByTenant(context.Background(), "acme", 2, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "req-3", records[0].RequestID)
	assert.Equal(t, "req-2", records[1].RequestID)

	records, err = repo.GetByTenant(context.Background(), "acme", 10, 99)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetByDateRange(t *testing.T) {
	repo, _ := newTestRepo(t)
	base := time.Now().UTC()

	for i := 0; i < 4; i++ {
		rec := models.NewAuditRecord("acme", "chat").
			WithRequest(fmt.Sprintf("req-%d", i)).
			Allow()
		rec.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Insert(context.Background(), rec))
	}

	records, err := repo.GetByDateRange(context.Background(), "acme",
		base.Add(30*time.Minute), base.Add(150*time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "req-2", records[0].RequestID)
	assert.Equal(t, "req-1", records[1].RequestID)
}

func TestScan_SkipsCorruptLines(t *testing.T) {
	repo, path := newTestRepo(t)
	insertRecords(t, repo, "acme", 1)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	insertRecords(t, repo, "acme", 1)

	records, err := repo.GetByTenant(context.Background(), "acme", 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestInsert_Concurrent(t *testing.T) {
	repo, _ := newTestRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := models.NewAuditRecord("acme", "chat").
				WithRequest(fmt.Sprintf("req-%d", i)).
				Allow()
			assert.NoError(t, repo.Insert(context.Background(), rec))
		}(i)
	}
	wg.Wait()

	records, err := repo.GetByTenant(context.Background(), "acme", 100, 0)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}
