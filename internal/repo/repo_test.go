package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/testdb"
)

func newRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(testdb.Open(t))
}

func seedUser(t *testing.T, r *GormRepo, username, email string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Test " + username,
		PasswordHash: "x",
		Role:         models.RoleDoctor,
		IsActive:     true,
	}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func TestUsers_CreateAndFind(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()

	u := seedUser(t, r, "doctor_test", "doctor@test.com")
	require.NotZero(t, u.ID)

	byName, err := r.FindUserByUsername(ctx, "doctor_test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.True(t, byName.IsActive)

	byEmail, err := r.FindUserByEmail(ctx, "doctor@test.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := r.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "doctor@test.com", byID.Email)

	_, err = r.FindUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = r.FindUserByEmail(ctx, "ghost@test.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = r.FindUserByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUsers_DuplicateDetection(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	seedUser(t, r, "doctor_test", "doctor@test.com")

	err := r.CreateUser(ctx, &models.User{Username: "doctor_test", Email: "other@test.com", Role: models.RoleDoctor, IsActive: true})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "username", DuplicateField(err))

	err = r.CreateUser(ctx, &models.User{Username: "other", Email: "doctor@test.com", Role: models.RoleDoctor, IsActive: true})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "email", DuplicateField(err))
}

func TestUsers_UpdateAndList(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	a := seedUser(t, r, "alpha", "a@test.com")
	seedUser(t, r, "beta", "b@test.com")

	a.IsActive = false
	a.Role = models.RoleFrontDesk
	require.NoError(t, r.UpdateUser(ctx, a))

	got, err := r.FindUserByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, models.RoleFrontDesk, got.Role)

	a.Email = "b@test.com"
	assert.ErrorIs(t, r.UpdateUser(ctx, a), ErrDuplicate)

	users, err := r.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alpha", users[0].Username)

	users, err = r.ListUsers(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "beta", users[0].Username)

	n, err := r.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRevoke_IsIdempotent(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	p := RevokeParams{JTI: "jti-1", TokenType: "refresh"}

	ok, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Revoke(ctx, p))
	require.NoError(t, r.Revoke(ctx, p))

	ok, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	var n int64
	require.NoError(t, r.DB.Model(&models.RevokedToken{}).Where("jti = ?", "jti-1").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestClaimRefresh_StrictOnSecondUse(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alpha", "a@test.com")
	exp := time.Now().Add(time.Hour).UTC()
	p := RevokeParams{JTI: "jti-2", TokenType: "refresh", UserID: &u.ID, ExpiresAt: &exp}

	require.NoError(t, r.ClaimRefresh(ctx, p))
	assert.ErrorIs(t, r.ClaimRefresh(ctx, p), ErrAlreadyRevoked)

	require.NoError(t, r.Revoke(ctx, RevokeParams{JTI: "jti-3", TokenType: "refresh"}))
	assert.ErrorIs(t, r.ClaimRefresh(ctx, RevokeParams{JTI: "jti-3", TokenType: "refresh"}), ErrAlreadyRevoked)
}

func TestClaimRefresh_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()

	const workers = 8
	var wins, lost atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.ClaimRefresh(ctx, RevokeParams{JTI: "shared", TokenType: "refresh"})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyRevoked):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, workers-1, lost.Load())
}

func TestPruneRevoked(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, r.Revoke(ctx, RevokeParams{JTI: "old", TokenType: "refresh", ExpiresAt: &past}))
	require.NoError(t, r.Revoke(ctx, RevokeParams{JTI: "live", TokenType: "refresh", ExpiresAt: &future}))
	require.NoError(t, r.Revoke(ctx, RevokeParams{JTI: "forever", TokenType: "refresh"}))

	n, err := r.PruneRevoked(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for jti, want := range map[string]bool{"old": false, "live": true, "forever": true} {
		ok, err := r.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.Equal(t, want, ok, jti)
	}
}

func TestAudit_CreateAndFilter(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	ctx := context.Background()
	uid := uint(7)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.AuditLog{
		{Entity: "user", Action: "login", UserID: &uid, CreatedAt: base},
		{Entity: "user", Action: "login_failed", CreatedAt: base.Add(time.Minute)},
		{Entity: "token", Action: "refresh", UserID: &uid, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		require.NoError(t, r.CreateAudit(ctx, &entries[i]))
	}

	all, err := r.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "refresh", all[0].Action)

	users, err := r.ListAudit(ctx, AuditFilter{Entity: "user"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	mine, err := r.ListAudit(ctx, AuditFilter{UserID: &uid, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "refresh", mine[0].Action)
}

func TestUniqueViolationClassification(t *testing.T) {
	t.Parallel()

	pg := &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"}
	tests := []struct {
		name   string
		err    error
		unique bool
		field  string
	}{
		{name: "nil", err: nil},
		{name: "pg unique", err: fmt.Errorf("insert: %w", pg), unique: true, field: "email"},
		{name: "pg other", err: &pgconn.PgError{Code: "23503"}},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), unique: true, field: "username"},
		{name: "other", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			if tt.unique {
				assert.Equal(t, tt.field, DuplicateField(tt.err))
			}
		})
	}
}
