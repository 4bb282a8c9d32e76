package repo

import (
	"time"

	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// RevokeParams describes one revocation record. A zero RevokedAt means now.
type RevokeParams struct {
	JTI       string
	TokenType string
	UserID    *uint
	ExpiresAt *time.Time
	RevokedAt time.Time
}

type AuditFilter struct {
	Entity string
	Action string
	UserID *uint
	Limit  int
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)
