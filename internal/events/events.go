// Package events publishes authentication lifecycle events for downstream
// consumers (security monitoring, notification services).
package events

import (
	"context"
	"time"
)

const (
	UserRegistered       = "user_registered"
	UserLoggedIn         = "user_logged_in"
	LoginFailed          = "login_failed"
	TokenRefreshed       = "token_refreshed"
	RefreshReuseDetected = "refresh_reuse_detected"
	UserLoggedOut        = "user_logged_out"
	UserUpdated          = "user_updated"
)

type Event struct {
	Type       string    `json:"type"`
	Username   string    `json:"username,omitempty"`
	UserID     uint      `json:"user_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	RemoteIP   string    `json:"remote_ip,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
