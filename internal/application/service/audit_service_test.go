package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

type mockAuditRepo struct {
	insertErr error
	entries   []*entity.AuditLogEntry
	rangeErr  error
}

func (m *mockAuditRepo) Insert(ctx context.Context, e *entity.AuditLogEntry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListByEntity(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.AuditLogEntry, error) {
	var out []*entity.AuditLogEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) ListByRange(ctx context.Context, from, to time.Time) ([]*entity.AuditLogEntry, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	return m.entries, nil
}

func TestAuditLog(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nopLogger{})

	e, err := svc.Log(context.Background(), "bob", entity.AuditActionApprove, entity.EntityTypeInvoice, 11, `{"from":"PENDING_APPROVAL","to":"APPROVED"}`)

	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "bob", e.ActorID)
	assert.Len(t, e.Checksum, 64, "checksum is hex-encoded sha256")
	assert.Equal(t, e.ComputeChecksum(), e.Checksum)
	require.Len(t, repo.entries, 1)
}

func TestAuditLogFailureIsWarningClass(t *testing.T) {
	repo := &mockAuditRepo{insertErr: errors.New("disk full")}
	svc := NewAuditService(repo, nopLogger{})

	e, err := svc.Log(context.Background(), "bob", entity.AuditActionApprove, entity.EntityTypeInvoice, 11, "{}")

	assert.Nil(t, e)
	require.ErrorIs(t, err, ErrAuditLogFailure)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAuditReport(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nopLogger{})

	ctx := context.Background()
	_, err := svc.Log(ctx, "alice", entity.AuditActionCreate, entity.EntityTypeInvoice, 1, "{}")
	require.NoError(t, err)
	_, err = svc.Log(ctx, "bob", entity.AuditActionApprove, entity.EntityTypeInvoice, 1, "{}")
	require.NoError(t, err)
	_, err = svc.Log(ctx, "bob", entity.AuditActionApprove, entity.EntityTypeExpense, 2, "{}")
	require.NoError(t, err)

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	report, err := svc.Report(ctx, from, to)

	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalEntries)
	assert.Equal(t, 2, report.ByAction[entity.AuditActionApprove])
	assert.Equal(t, 1, report.ByAction[entity.AuditActionCreate])
	assert.Equal(t, 2, report.ByActor["bob"])
	assert.Equal(t, 1, report.ByActor["alice"])
	assert.Equal(t, 2, report.ByEntityType["invoice"])
	assert.Equal(t, 1, report.ByEntityType["expense"])
}

func TestAuditEntityHistory(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nopLogger{})

	ctx := context.Background()
	_, err := svc.Log(ctx, "alice", entity.AuditActionCreate, entity.EntityTypeInvoice, 1, "{}")
	require.NoError(t, err)
	_, err = svc.Log(ctx, "alice", entity.AuditActionCreate, entity.EntityTypeInvoice, 2, "{}")
	require.NoError(t, err)

	entries, err := svc.EntityHistory(ctx, entity.EntityTypeInvoice, 1)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].EntityID)
}

func TestAuditExportReport(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nopLogger{})

	ctx := context.Background()
	_, err := svc.Log(ctx, "bob", entity.AuditActionApprove, entity.EntityTypeInvoice, 11, `{"to":"APPROVED"}`)
	require.NoError(t, err)

	data, err := svc.ExportReport(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Audit Log", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Timestamp", header)

	actor, err := f.GetCellValue("Audit Log", "B2")
	require.NoError(t, err)
	assert.Equal(t, "bob", actor)

	total, err := f.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Total entries", total)
}

func TestAuditReportLoadFailure(t *testing.T) {
	repo := &mockAuditRepo{rangeErr: errors.New("query timeout")}
	svc := NewAuditService(repo, nopLogger{})

	_, err := svc.Report(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load audit entries")
}
