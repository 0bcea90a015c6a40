package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ComplianceReport aggregates audit activity over a time range
type ComplianceReport struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	TotalEntries   int                    `json:"total_entries"`
	ByAction       map[string]int         `json:"by_action"`
	ByActor        map[string]int         `json:"by_actor"`
	ByEntityType   map[string]int         `json:"by_entity_type"`
	Entries        []*entity.AuditLogEntry `json:"entries,omitempty"`
}

// AuditService is the append-only audit logger. Log never returns domain
// errors; a persistence failure surfaces as ErrAuditLogFailure, which
// callers treat as a warning rather than aborting the audited operation.
type AuditService interface {
	Log(ctx context.Context, actorID, action string, entityType entity.EntityType, entityID int64, changeSet string) (*entity.AuditLogEntry, error)
	EntityHistory(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.AuditLogEntry, error)
	Report(ctx context.Context, from, to time.Time) (*ComplianceReport, error)
	ExportReport(ctx context.Context, from, to time.Time) ([]byte, error)
}

type auditServiceImpl struct {
	repo   port.AuditRepository
	logger Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{repo: repo, logger: logger}
}

// Log appends one audit entry with its tamper-evidence checksum
func (s *auditServiceImpl) Log(ctx context.Context, actorID, action string, entityType entity.EntityType, entityID int64, changeSet string) (*entity.AuditLogEntry, error) {
	e := &entity.AuditLogEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ChangeSet:  changeSet,
	}
	e.Checksum = e.ComputeChecksum()

	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Warn("Audit write failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrAuditLogFailure, err)
	}

	return e, nil
}

// EntityHistory returns the audit trail for one entity, oldest first
func (s *auditServiceImpl) EntityHistory(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.AuditLogEntry, error) {
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return entries, nil
}

// Report aggregates audit activity over a range
func (s *auditServiceImpl) Report(ctx context.Context, from, to time.Time) (*ComplianceReport, error) {
	entries, err := s.repo.ListByRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}

	report := &ComplianceReport{
		From:         from,
		To:           to,
		TotalEntries: len(entries),
		ByAction:     make(map[string]int),
		ByActor:      make(map[string]int),
		ByEntityType: make(map[string]int),
		Entries:      entries,
	}
	for _, e := range entries {
		report.ByAction[e.Action]++
		report.ByActor[e.ActorID]++
		report.ByEntityType[e.EntityType.String()]++
	}

	return report, nil
}

// ExportReport renders the compliance report as an .xlsx workbook
func (s *auditServiceImpl) ExportReport(ctx context.Context, from, to time.Time) ([]byte, error) {
	report, err := s.Report(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Audit Log"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to prepare worksheet: %w", err)
	}

	headers := []string{"Timestamp", "Actor", "Action", "Entity Type", "Entity ID", "Change Set", "Checksum"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, e := range report.Entries {
		values := []interface{}{
			e.Timestamp.Format(time.RFC3339),
			e.ActorID,
			e.Action,
			e.EntityType.String(),
			e.EntityID,
			e.ChangeSet,
			e.Checksum,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	f.SetCellValue(summary, "A1", "Period")
	f.SetCellValue(summary, "B1", fmt.Sprintf("%s - %s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	f.SetCellValue(summary, "A2", "Total entries")
	f.SetCellValue(summary, "B2", report.TotalEntries)

	line := 4
	f.SetCellValue(summary, fmt.Sprintf("A%d", line), "Entries by action")
	line++
	for action, count := range report.ByAction {
		f.SetCellValue(summary, fmt.Sprintf("A%d", line), action)
		f.SetCellValue(summary, fmt.Sprintf("B%d", line), count)
		line++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
