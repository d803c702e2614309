package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is disabled")
	ErrTokenExpired       = errors.New("token expired")
)

// Principal is an authenticated admin.
type Principal struct {
	AdminID  int64
	Username string
}

// AuthService authenticates admins by password or by a session token issued
// after a password login.
type AuthService struct {
	identity  *IdentityService
	jwtSecret []byte
	ttl       time.Duration
}

// NewAuthService creates an AuthService. Tokens are signed with jwtSecret
// and expire after ttl.
func NewAuthService(identity *IdentityService, jwtSecret string, ttl time.Duration) *AuthService {
	return &AuthService{
		identity:  identity,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
	}
}

// Authenticate checks username and password. Unknown users, wrong passwords
// and validation anomalies all yield ErrInvalidCredentials; a disabled
// account yields ErrInactive.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	admin, ok, err := s.identity.verify(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !admin.Active {
		return nil, ErrInactive
	}
	return &Principal{AdminID: admin.ID, Username: admin.Username}, nil
}

// IssueToken creates a signed session token for p and returns it with its
// expiry time.
func (s *AuthService) IssueToken(p *Principal) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := jwtClaims{
		AdminID:  p.AdminID,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "memberapi",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken verifies a session token and confirms that its admin still
// exists and is active.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*Principal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidCredentials
	}
	if !token.Valid {
		return nil, ErrInvalidCredentials
	}

	rec, err := s.identity.GetInfoByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if active, err := rec.Int(model.ColActive); err != nil || active == 0 {
		return nil, ErrInactive
	}

	// The record, not the claim, names the admin: renames apply at once.
	username, err := rec.String(model.ColUsername)
	if err != nil {
		return nil, err
	}
	return &Principal{AdminID: claims.AdminID, Username: username}, nil
}

type jwtClaims struct {
	AdminID  int64  `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
