package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/galenos/internal/audit"
	"github.com/Skotchmaster/galenos/internal/events"
	"github.com/Skotchmaster/galenos/internal/hash"
	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/repo"
)

type RegisterInput struct {
	Email    string `json:"email"     form:"email"`
	Username string `json:"username"  form:"username"`
	FullName string `json:"full_name" form:"full_name"`
	Password string `json:"password"  form:"password"`
	Role     string `json:"role"      form:"role"`
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@')+1:], ".")
}

func validateLength(field, v string, lo, hi int) error {
	n := utf8.RuneCountInString(v)
	if n < lo || n > hi {
		return invalid("%s must be between %d and %d characters", field, lo, hi)
	}
	return nil
}

func (in *RegisterInput) normalize() (models.Role, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)

	if !validEmail(in.Email) {
		return "", invalid("email is not a valid address")
	}
	if err := validateLength("username", in.Username, 3, 100); err != nil {
		return "", err
	}
	if err := validateLength("full_name", in.FullName, 1, 255); err != nil {
		return "", err
	}
	if err := validatePassword(in.Password); err != nil {
		return "", err
	}

	if in.Role == "" {
		return models.RoleFrontDesk, nil
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return "", invalid("role must be one of admin, doctor, frontdesk")
	}
	return role, nil
}

func validatePassword(pw string) error {
	if err := validateLength("password", pw, 8, 100); err != nil {
		return err
	}
	if len(pw) > hash.MaxPasswordBytes {
		return invalid("password must be at most %d bytes", hash.MaxPasswordBytes)
	}
	return nil
}

// Register creates an active user. actor is the admin performing the call and
// may be nil for bootstrap (CLI) use.
func (s *AuthService) Register(ctx context.Context, actor *models.User, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With().Str("svc", "auth.register").Str("username", in.Username).Logger()

	role, err := in.normalize()
	if err != nil {
		l.Warn().Err(err).Msg("register_rejected")
		return nil, err
	}

	if err := s.checkAvailable(ctx, in.Username, in.Email, 0); err != nil {
		if errors.Is(err, ErrConflict) {
			l.Warn().Err(err).Msg("register_rejected")
		} else {
			l.Error().Err(err).Msg("register_error")
		}
		return nil, err
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error().Err(err).Msg("register_error")
		return nil, err
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: digest,
		Role:         role,
		IsActive:     true,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			err = duplicateError(err)
			l.Warn().Err(err).Msg("register_rejected")
			return nil, err
		}
		l.Error().Err(err).Msg("register_error")
		return nil, err
	}

	var actorID *uint
	if actor != nil {
		actorID = &actor.ID
	}
	s.Metrics.Registered()
	s.record(ctx, audit.Entry{
		UserID:      actorID,
		Entity:      audit.EntityUser,
		EntityID:    &user.ID,
		Action:      "user_registered",
		Description: fmt.Sprintf("created %s user %s", user.Role, user.Username),
	})
	s.publish(ctx, events.Event{Type: events.UserRegistered, Username: user.Username, UserID: user.ID, Role: string(user.Role)})
	l.Info().Uint("user_id", user.ID).Msg("user_registered")
	return user, nil
}

// checkAvailable reports the first taken field, username before email. An
// empty value is not checked; self is the id of a user allowed to hold them.
// The unique indexes still catch a concurrent insert between check and write.
func (s *AuthService) checkAvailable(ctx context.Context, username, email string, self uint) error {
	if username != "" {
		u, err := s.Repo.FindUserByUsername(ctx, username)
		switch {
		case err == nil && u.ID != self:
			return ErrUsernameTaken
		case err != nil && !errors.Is(err, repo.ErrUserNotFound):
			return err
		}
	}
	if email != "" {
		u, err := s.Repo.FindUserByEmail(ctx, email)
		switch {
		case err == nil && u.ID != self:
			return ErrEmailTaken
		case err != nil && !errors.Is(err, repo.ErrUserNotFound):
			return err
		}
	}
	return nil
}

func duplicateError(err error) error {
	switch repo.DuplicateField(err) {
	case "email":
		return ErrEmailTaken
	case "username":
		return ErrUsernameTaken
	}
	return fmt.Errorf("%w: user already exists", ErrConflict)
}
