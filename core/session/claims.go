// Package session resolves the visitor's session from their credential.
package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/user"
)

const audience = "CoursePalette"

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrRefreshExpired = errors.New("refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64       `json:"oriat,omitempty"`
	Username     string      `json:"username,omitempty"`
	Email        string      `json:"email,omitempty"`
	Role         access.Role `json:"role,omitempty"`
}

// Signer issues and verifies the app's HS256 tokens.
type Signer struct {
	key              []byte
	issuer           string
	expiration       time.Duration
	refreshExpiresIn time.Duration
	now              func() time.Time
}

func NewSigner(conf *core.Config) *Signer {
	return &Signer{
		key:              []byte(conf.SecretKey),
		issuer:           conf.AppName,
		expiration:       conf.Server.JWTExpirationDelta,
		refreshExpiresIn: conf.Server.JWTRefreshExpirationDelta,
		now:              time.Now,
	}
}

// Key is the HMAC signing key, for the echo JWT middleware.
func (s *Signer) Key() []byte { return s.key }

// UserClaims returns fresh claims for usr. origIat keeps the original issue time across refreshes.
func (s *Signer) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := s.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    s.issuer,
			Subject:   usr.ID,
			Audience:  audience,
			ExpiresAt: now.Add(s.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (s *Signer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies tokenStr and returns its claims.
func (s *Signer) ParseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	})
	if err != nil || !token.Valid || !claims.VerifyAudience(audience, true) || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh issues a new token for usr if claims are still within the refresh window.
func (s *Signer) Refresh(claims *Claims, usr user.User) (string, error) {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.refreshExpiresIn)
	if s.now().After(expTime) {
		return "", ErrRefreshExpired
	}
	return s.GenerateToken(s.UserClaims(usr, claims.OrigIssuedAt))
}
