package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/galenos/internal/models"
)

const testSecret = "k3y-for-unit-tests-0123456789-abcdefghij"

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	c, err := NewCodec(Settings{
		Secret:     []byte(testSecret),
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clock.Now)
	require.NoError(t, err)
	return c, clock
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t)
	raw, issued, err := c.EncodeAccess("doctor_test", models.RoleDoctor)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got := c.DecodeAccess(raw)
	require.NotNil(t, got)
	assert.Equal(t, "doctor_test", got.Subject)
	assert.Equal(t, models.RoleDoctor, got.Role)
	assert.Equal(t, TypeAccess, got.TokenType)
	assert.Empty(t, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, issued.ExpiresAt.Time, got.ExpiresAt.Time, 0)
	assert.WithinDuration(t, clock.Now().Add(30*time.Minute), got.ExpiresAt.Time, 0)
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t)
	raw, issued, err := c.EncodeRefresh("admin_test", models.RoleAdmin)
	require.NoError(t, err)

	got := c.DecodeRefresh(raw)
	require.NotNil(t, got)
	assert.Equal(t, "admin_test", got.Subject)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, TypeRefresh, got.TokenType)
	assert.Equal(t, issued.ID, got.ID)
	assert.NotEmpty(t, got.ID)
	assert.WithinDuration(t, clock.Now().Add(7*24*time.Hour), got.ExpiresAt.Time, 0)
}

func TestCodec_RefreshTokensGetDistinctJTI(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t)
	_, a, err := c.EncodeRefresh("u", models.RoleDoctor)
	require.NoError(t, err)
	_, b, err := c.EncodeRefresh("u", models.RoleDoctor)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t)
	raw, _, err := c.EncodeAccess("doctor_test", models.RoleDoctor)
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Second)
	assert.NotNil(t, c.DecodeAccess(raw), "one second before exp must still be valid")

	clock.Advance(time.Second)
	assert.Nil(t, c.DecodeAccess(raw), "a token is expired at its exp instant")

	clock.Advance(time.Hour)
	assert.Nil(t, c.DecodeAccess(raw))
}

func TestCodec_RejectsWrongKind(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t)
	access, _, err := c.EncodeAccess("u", models.RoleDoctor)
	require.NoError(t, err)
	refresh, _, err := c.EncodeRefresh("u", models.RoleDoctor)
	require.NoError(t, err)

	assert.Nil(t, c.DecodeRefresh(access))
	assert.Nil(t, c.DecodeAccess(refresh))
}

func TestCodec_RejectsTamperedAndForeignTokens(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t)
	raw, _, err := c.EncodeAccess("u", models.RoleDoctor)
	require.NoError(t, err)

	other, err := NewCodec(Settings{Secret: []byte(strings.Repeat("z", 40))}, clock.Now)
	require.NoError(t, err)
	foreign, _, err := other.EncodeAccess("u", models.RoleAdmin)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	hs512, err := NewCodec(Settings{Secret: []byte(testSecret), Algorithm: "HS512"}, clock.Now)
	require.NoError(t, err)
	otherAlg, _, err := hs512.EncodeAccess("u", models.RoleDoctor)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not-a-valid-jwt"},
		{name: "bad signature", raw: tampered},
		{name: "other secret", raw: foreign},
		{name: "other algorithm", raw: otherAlg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, c.DecodeAccess(tt.raw))
		})
	}
}

func TestCodec_RejectsMissingClaims(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t)
	sign := func(claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(clock.Now().Add(time.Minute))

	noExp := sign(&AccessClaims{Role: models.RoleDoctor, TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
	noSubject := sign(&AccessClaims{Role: models.RoleDoctor, TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	badRole := sign(&AccessClaims{Role: "nurse", TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: exp}})
	noJTI := sign(&RefreshClaims{Role: models.RoleDoctor, TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: exp}})

	assert.Nil(t, c.DecodeAccess(noExp))
	assert.Nil(t, c.DecodeAccess(noSubject))
	assert.Nil(t, c.DecodeAccess(badRole))
	assert.Nil(t, c.DecodeRefresh(noJTI))
}

func TestNewCodec_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(Settings{Secret: []byte("short")}, nil)
	assert.ErrorIs(t, err, ErrInsecureSecret)

	_, err = NewCodec(Settings{Secret: []byte(testSecret), Algorithm: "RS256"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	c, err := NewCodec(Settings{Secret: []byte(testSecret)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "HS256", c.Algorithm())
}

func TestValidateSecret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "empty", secret: "", wantErr: true},
		{name: "too short", secret: "abc123", wantErr: true},
		{name: "31 chars", secret: strings.Repeat("x", 31), wantErr: true},
		{name: "placeholder", secret: "your-secret-key-change-in-production", wantErr: true},
		{name: "placeholder any case", secret: "CHANGE-THIS-TO-A-SECURE-RANDOM-SECRET-KEY", wantErr: true},
		{name: "random 32", secret: "q8Vt2LmZ0rX9cP4nWb7Ks1Hd6Jf3Ga5E", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsecureSecret)
				return
			}
			assert.NoError(t, err)
		})
	}
}
