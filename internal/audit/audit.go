// Package audit records security relevant actions to the audit_logs table
// and, when configured, mirrors them into a search index.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/repo"
)

const (
	EntityUser  = "user"
	EntityToken = "token"
)

type Entry struct {
	UserID      *uint
	Entity      string
	EntityID    *uint
	Action      string
	Description string
	Metadata    map[string]any
}

type Store interface {
	CreateAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, error)
}

type Indexer interface {
	IndexAudit(ctx context.Context, row *models.AuditLog) error
}

type Service struct {
	Store   Store
	Indexer Indexer
	Now     func() time.Time
}

// Record persists e. Indexing failures are logged and do not fail the call.
func (s *Service) Record(ctx context.Context, e Entry) error {
	row := &models.AuditLog{
		UserID:      e.UserID,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		CreatedAt:   s.now(),
	}
	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("audit metadata: %w", err)
		}
		row.Metadata = string(meta)
	}
	if err := s.Store.CreateAudit(ctx, row); err != nil {
		return fmt.Errorf("audit %s/%s: %w", e.Entity, e.Action, err)
	}
	if s.Indexer != nil {
		if err := s.Indexer.IndexAudit(ctx, row); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Uint("audit_id", row.ID).Msg("audit index failed")
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, error) {
	return s.Store.ListAudit(ctx, f)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
