package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleFrontDesk Role = "frontdesk"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleFrontDesk:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"       json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"  json:"email"`
	Username     string    `gorm:"size:100;uniqueIndex;not null"  json:"username"`
	FullName     string    `gorm:"size:255;not null"              json:"full_name"`
	PasswordHash string    `gorm:"size:255;not null"              json:"-"`
	Role         Role      `gorm:"size:20;not null"               json:"role"`
	IsActive     bool      `gorm:"not null"                       json:"is_active"`
	CreatedAt    time.Time `gorm:"not null"                       json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null"                       json:"updated_at"`
}

// RevokedToken marks a refresh token identifier as spent. The unique index on
// jti is what makes rotation single-use across processes.
type RevokedToken struct {
	ID        uint       `gorm:"primaryKey"                    json:"id"`
	JTI       string     `gorm:"size:36;uniqueIndex;not null"  json:"jti"`
	TokenType string     `gorm:"size:20;not null"              json:"token_type"`
	RevokedAt time.Time  `gorm:"not null"                      json:"revoked_at"`
	ExpiresAt *time.Time `gorm:"index"                         json:"expires_at,omitempty"`
	UserID    *uint      `gorm:"index"                         json:"user_id,omitempty"`
}

type AuditLog struct {
	ID          uint      `gorm:"primaryKey"               json:"id"`
	UserID      *uint     `gorm:"index"                    json:"user_id,omitempty"`
	Entity      string    `gorm:"size:50;not null;index"   json:"entity"`
	EntityID    *uint     `gorm:"index"                    json:"entity_id,omitempty"`
	Action      string    `gorm:"size:50;not null;index"   json:"action"`
	Description string    `gorm:"type:text"                json:"description,omitempty"`
	Metadata    string    `gorm:"type:text"                json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index"           json:"created_at"`
}
