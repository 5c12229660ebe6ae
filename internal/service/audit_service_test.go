package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/pkg/config"
)

type auditStoreStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (s *auditStoreStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *auditStoreStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

func TestAuditServiceWritesInlineBeforeStart(t *testing.T) {
	store := &auditStoreStub{}
	svc := NewAuditService(store, config.AuditConfig{}, nil, nil)

	require.NoError(t, svc.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionSessionDelete}))
	assert.Equal(t, []string{models.AuditActionSessionDelete}, store.actions())
	assert.NotEmpty(t, store.logs[0].ID)
}

func TestAuditServiceQueuesAndDrains(t *testing.T) {
	store := &auditStoreStub{}
	svc := NewAuditService(store, config.AuditConfig{Workers: 2, BufferSize: 8}, NewMetricsService(), nil)
	svc.Start(context.Background())

	require.NoError(t, svc.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionDeviceApprove}))
	require.NoError(t, svc.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionDeviceReject}))
	svc.Stop()

	assert.ElementsMatch(t, []string{models.AuditActionDeviceApprove, models.AuditActionDeviceReject}, store.actions())
}
