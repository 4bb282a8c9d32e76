package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Skotchmaster/galenos/internal/audit"
	"github.com/Skotchmaster/galenos/internal/events"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/repo"
	"github.com/Skotchmaster/galenos/internal/util"
)

// UserPatch carries the admin editable fields. Nil means unchanged.
type UserPatch struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// ListUsers returns one page of users and the total user count.
func (s *AuthService) ListUsers(ctx context.Context, page, size int) ([]models.User, int64, error) {
	offset, limit := util.Page(page, size)
	users, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateUser applies p to user id. Admins cannot deactivate or demote
// themselves, so at least one admin always remains reachable.
func (s *AuthService) UpdateUser(ctx context.Context, actor *models.User, id uint, p UserPatch) (*models.User, error) {
	user, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	changed := map[string]any{}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if !validEmail(email) {
			return nil, invalid("email is not a valid address")
		}
		if err := s.checkAvailable(ctx, "", email, user.ID); err != nil {
			return nil, err
		}
		user.Email = email
		changed["email"] = email
	}
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if err := validateLength("full_name", name, 1, 255); err != nil {
			return nil, err
		}
		user.FullName = name
		changed["full_name"] = name
	}
	if p.Role != nil {
		role, err := models.ParseRole(*p.Role)
		if err != nil {
			return nil, invalid("role must be one of admin, doctor, frontdesk")
		}
		if actor != nil && actor.ID == user.ID && role != models.RoleAdmin {
			return nil, invalid("admins cannot change their own role")
		}
		user.Role = role
		changed["role"] = string(role)
	}
	if p.IsActive != nil {
		if actor != nil && actor.ID == user.ID && !*p.IsActive {
			return nil, invalid("admins cannot deactivate themselves")
		}
		user.IsActive = *p.IsActive
		changed["is_active"] = *p.IsActive
	}
	if len(changed) == 0 {
		return user, nil
	}

	if err := s.Repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, duplicateError(err)
		}
		return nil, err
	}

	var actorID *uint
	if actor != nil {
		actorID = &actor.ID
	}
	s.record(ctx, audit.Entry{
		UserID:   actorID,
		Entity:   audit.EntityUser,
		EntityID: &user.ID,
		Action:   "user_updated",
		Metadata: changed,
	})
	s.publish(ctx, events.Event{Type: events.UserUpdated, Username: user.Username, UserID: user.ID, Role: string(user.Role)})
	return user, nil
}
