package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/galenos/internal/models"
)

type ESConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewESIndexer connects and checks the cluster answers before returning.
func NewESIndexer(cfg ESConfig) (*ESIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	index := cfg.Index
	if index == "" {
		index = "audit-logs"
	}
	return &ESIndexer{client: client, index: index}, nil
}

type auditDoc struct {
	ID          uint   `json:"id"`
	UserID      *uint  `json:"user_id,omitempty"`
	Entity      string `json:"entity"`
	EntityID    *uint  `json:"entity_id,omitempty"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// IndexAudit stores row under its database id, so re-indexing overwrites.
func (x *ESIndexer) IndexAudit(ctx context.Context, row *models.AuditLog) error {
	body, err := json.Marshal(auditDoc{
		ID:          row.ID,
		UserID:      row.UserID,
		Entity:      row.Entity,
		EntityID:    row.EntityID,
		Action:      row.Action,
		Description: row.Description,
		Metadata:    row.Metadata,
		CreatedAt:   row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return err
	}

	res, err := x.client.Index(
		x.index,
		bytes.NewReader(body),
		x.client.Index.WithDocumentID(strconv.FormatUint(uint64(row.ID), 10)),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index audit %d: %w", row.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index audit %d: %s", row.ID, res.Status())
	}
	return nil
}
