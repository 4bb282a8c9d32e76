package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/galenos/internal/models"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Settings is the immutable signing configuration shared by every token the
// process issues.
type Settings struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newJTI     func() string
}

// NewCodec validates s and returns a codec. now may be nil, in which case the
// wall clock is used.
func NewCodec(s Settings, now func() time.Time) (*Codec, error) {
	if err := ValidateSecret(string(s.Secret)); err != nil {
		return nil, err
	}
	method, err := signingMethod(s.Algorithm)
	if err != nil {
		return nil, err
	}
	if s.AccessTTL <= 0 {
		s.AccessTTL = DefaultAccessTTL
	}
	if s.RefreshTTL <= 0 {
		s.RefreshTTL = DefaultRefreshTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{
		secret:     append([]byte(nil), s.Secret...),
		method:     method,
		accessTTL:  s.AccessTTL,
		refreshTTL: s.RefreshTTL,
		now:        now,
		newJTI:     uuid.NewString,
	}, nil
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "", jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
}

func (c *Codec) Algorithm() string { return c.method.Alg() }

func (c *Codec) EncodeAccess(subject string, role models.Role) (string, *AccessClaims, error) {
	now := c.now()
	claims := &AccessClaims{
		Role:      role,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

// EncodeRefresh signs a refresh token carrying a fresh random jti.
func (c *Codec) EncodeRefresh(subject string, role models.Role) (string, *RefreshClaims, error) {
	now := c.now()
	claims := &RefreshClaims{
		Role:      role,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.newJTI(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, claims, nil
}

// DecodeAccess returns nil for anything that is not a valid, unexpired access
// token signed with this codec's key and algorithm.
func (c *Codec) DecodeAccess(raw string) *AccessClaims {
	var claims AccessClaims
	if !c.parse(raw, &claims) || !claims.valid() {
		return nil
	}
	return &claims
}

// DecodeRefresh is DecodeAccess for refresh tokens.
func (c *Codec) DecodeRefresh(raw string) *RefreshClaims {
	var claims RefreshClaims
	if !c.parse(raw, &claims) || !claims.valid() {
		return nil
	}
	return &claims
}

func (c *Codec) parse(raw string, claims jwt.Claims) bool {
	if raw == "" {
		return false
	}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return err == nil && tkn.Valid
}
