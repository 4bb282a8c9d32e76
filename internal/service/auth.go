package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skotchmaster/galenos/internal/audit"
	"github.com/Skotchmaster/galenos/internal/events"
	"github.com/Skotchmaster/galenos/internal/hash"
	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/metrics"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/repo"
	"github.com/Skotchmaster/galenos/internal/tokens"
)

type Repository interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, p repo.RevokeParams) error
	ClaimRefresh(ctx context.Context, p repo.RevokeParams) error
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type AuthService struct {
	Repo    Repository
	Codec   *tokens.Codec
	Hasher  *hash.Hasher
	Audit   Auditor
	Events  events.Publisher
	Metrics *metrics.Auth
	Now     func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) issue(u *models.User) (*TokenPair, error) {
	access, _, err := s.Codec.EncodeAccess(u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.Codec.EncodeRefresh(u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Login exchanges credentials for a token pair. Unknown user, wrong password
// and inactive account all fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With().Str("svc", "auth.login").Str("username", username).Logger()

	user, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			s.burnHash(password)
			return nil, s.loginFailed(ctx, username, nil, "unknown_user")
		}
		l.Error().Err(err).Msg("login_error")
		return nil, err
	}

	ok, err := s.Hasher.Verify(password, user.PasswordHash)
	if err != nil {
		l.Error().Err(err).Uint("user_id", user.ID).Msg("stored password hash unreadable")
		return nil, s.loginFailed(ctx, username, &user.ID, "malformed_hash")
	}
	if !ok {
		return nil, s.loginFailed(ctx, username, &user.ID, "bad_password")
	}
	if !user.IsActive {
		return nil, s.loginFailed(ctx, username, &user.ID, "inactive")
	}

	pair, err := s.issue(user)
	if err != nil {
		l.Error().Err(err).Msg("login_error")
		return nil, err
	}

	s.Metrics.Login("success")
	s.record(ctx, audit.Entry{
		UserID:      &user.ID,
		Entity:      audit.EntityUser,
		EntityID:    &user.ID,
		Action:      "login",
		Description: fmt.Sprintf("user %s logged in", user.Username),
		Metadata:    map[string]any{"ip": clientIP(ctx)},
	})
	s.publish(ctx, events.Event{Type: events.UserLoggedIn, Username: user.Username, UserID: user.ID, Role: string(user.Role)})
	l.Info().Msg("user_logged_in")
	return pair, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string, userID *uint, reason string) error {
	logging.FromContext(ctx).Warn().Str("username", username).Str("reason", reason).Msg("login_failed")
	s.Metrics.Login("invalid_credentials")
	s.record(ctx, audit.Entry{
		UserID:      userID,
		Entity:      audit.EntityUser,
		EntityID:    userID,
		Action:      "login_failed",
		Description: "failed login for " + username,
		Metadata:    map[string]any{"reason": reason, "ip": clientIP(ctx)},
	})
	s.publish(ctx, events.Event{Type: events.LoginFailed, Username: username, Reason: reason})
	return ErrInvalidCredentials
}

// burnHash spends about as long as a real verification so unknown usernames
// cannot be told apart by response time.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.Hasher.Hash("galenos-timing-equalizer")
	})
	_, _ = s.Hasher.Verify(password, s.dummyDigest)
}

// Refresh rotates a refresh token. The presented jti is claimed in the
// revocation store before the new pair is minted; of two concurrent calls
// with the same token only one can claim it.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With().Str("svc", "auth.refresh").Logger()

	claims := s.Codec.DecodeRefresh(raw)
	if claims == nil {
		return nil, s.refreshRejected(ctx, "", "undecodable")
	}

	user, err := s.Repo.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, s.refreshRejected(ctx, claims.Subject, "unknown_user")
		}
		l.Error().Err(err).Msg("refresh_error")
		return nil, err
	}
	if !user.IsActive {
		return nil, s.refreshRejected(ctx, user.Username, "inactive")
	}

	revoked, err := s.Repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		l.Error().Err(err).Msg("refresh_error")
		return nil, err
	}
	if revoked {
		return nil, s.reuseDetected(ctx, user, claims.ID)
	}

	exp := claims.ExpiresAt.Time.UTC()
	err = s.Repo.ClaimRefresh(ctx, repo.RevokeParams{
		JTI:       claims.ID,
		TokenType: tokens.TypeRefresh,
		UserID:    &user.ID,
		ExpiresAt: &exp,
		RevokedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyRevoked) {
			return nil, s.reuseDetected(ctx, user, claims.ID)
		}
		l.Error().Err(err).Msg("refresh_error")
		return nil, err
	}

	// role comes from the database so demotions apply on the next refresh
	pair, err := s.issue(user)
	if err != nil {
		l.Error().Err(err).Msg("refresh_error")
		return nil, err
	}

	s.Metrics.Refresh("success")
	s.record(ctx, audit.Entry{
		UserID:   &user.ID,
		Entity:   audit.EntityToken,
		Action:   "token_refreshed",
		Metadata: map[string]any{"jti": claims.ID},
	})
	s.publish(ctx, events.Event{Type: events.TokenRefreshed, Username: user.Username, UserID: user.ID, Role: string(user.Role)})
	return pair, nil
}

func (s *AuthService) refreshRejected(ctx context.Context, username, reason string) error {
	logging.FromContext(ctx).Warn().Str("username", username).Str("reason", reason).Msg("refresh_rejected")
	s.Metrics.Refresh(reason)
	return ErrInvalidToken
}

func (s *AuthService) reuseDetected(ctx context.Context, user *models.User, jti string) error {
	logging.FromContext(ctx).Warn().Str("username", user.Username).Str("jti", jti).Msg("refresh_reuse_detected")
	s.Metrics.Refresh("reuse")
	s.record(ctx, audit.Entry{
		UserID:      &user.ID,
		Entity:      audit.EntityToken,
		Action:      "refresh_reuse_detected",
		Description: "revoked refresh token presented",
		Metadata:    map[string]any{"jti": jti, "ip": clientIP(ctx)},
	})
	s.publish(ctx, events.Event{Type: events.RefreshReuseDetected, Username: user.Username, UserID: user.ID, Reason: "reuse"})
	return ErrInvalidToken
}

// LogOut revokes the presented refresh token. Logging out twice with the
// same token succeeds both times.
func (s *AuthService) LogOut(ctx context.Context, raw string) error {
	claims := s.Codec.DecodeRefresh(raw)
	if claims == nil {
		return ErrInvalidToken
	}

	var userID *uint
	if u, err := s.Repo.FindUserByUsername(ctx, claims.Subject); err == nil {
		userID = &u.ID
	}

	exp := claims.ExpiresAt.Time.UTC()
	if err := s.Repo.Revoke(ctx, repo.RevokeParams{
		JTI:       claims.ID,
		TokenType: tokens.TypeRefresh,
		UserID:    userID,
		ExpiresAt: &exp,
		RevokedAt: s.now(),
	}); err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("svc", "auth.logout").Msg("logout_error")
		return err
	}

	s.record(ctx, audit.Entry{
		UserID:   userID,
		Entity:   audit.EntityToken,
		Action:   "logout",
		Metadata: map[string]any{"jti": claims.ID},
	})
	s.publish(ctx, events.Event{Type: events.UserLoggedOut, Username: claims.Subject})
	return nil
}

// Authenticate resolves an access token to its user. Used by the HTTP gate.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims := s.Codec.DecodeAccess(raw)
	if claims == nil {
		return nil, ErrInvalidToken
	}
	user, err := s.Repo.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) record(ctx context.Context, e audit.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("action", e.Action).Msg("audit_failed")
	}
}

func (s *AuthService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	ev.RemoteIP = clientIP(ctx)
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("event", ev.Type).Msg("publish_failed")
	}
}
