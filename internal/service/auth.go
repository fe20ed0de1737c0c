// Package service contains application services for auth, users, attendance and enrollment.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/gymdesk/internal/crypto"
	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/limiter"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

// AuthService defines staff authentication operations.
type AuthService interface {
	// Login authenticates staff of one gym and issues an access token.
	Login(ctx context.Context, email, password string, gymID int64, ip string) (model.Tokens, model.User, error)
	// AuthenticateOperator verifies staff credentials by email alone (kiosk socket login).
	AuthenticateOperator(ctx context.Context, email, password, ip string) (*model.User, error)
	// UserFromToken validates a bearer token and returns its active user.
	UserFromToken(ctx context.Context, token string) (*model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService. accessTTL <= 0 issues non-expiring tokens.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// Login authenticates with rate limiting by (email, ip), scoped to gymID.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string, gymID int64, ip string) (model.Tokens, model.User, error) {
	u, err := s.authenticate(ctx, email, password, ip, func(ctx context.Context) (*model.User, error) {
		return s.users.GetByEmailAndGym(ctx, email, gymID)
	})
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// AuthenticateOperator authenticates by email in any gym.
func (s *AuthServiceImpl) AuthenticateOperator(ctx context.Context, email, password, ip string) (*model.User, error) {
	return s.authenticate(ctx, email, password, ip, func(ctx context.Context) (*model.User, error) {
		return s.users.GetByEmail(ctx, email)
	})
}

// authenticate checks limiter, password, role and active flag, in that order.
func (s *AuthServiceImpl) authenticate(
	ctx context.Context, email, password, ip string,
	lookup func(context.Context) (*model.User, error),
) (*model.User, error) {
	if email == "" || password == "" {
		return nil, errs.ErrUnauthorized
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	u, err := lookup(ctx)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, u.HashedPassword) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return nil, errs.ErrRateLimited
		}
		return nil, errs.ErrUnauthorized
	}
	if !u.Role.CanLogin() {
		return nil, errs.ErrForbidden
	}
	if !u.IsActive {
		return nil, errs.ErrInactive
	}

	_ = s.lim.Success(ctx, email, ipHash)
	return u, nil
}

// issueAccessToken creates a signed HS256 JWT whose subject is the user ID.
func (s *AuthServiceImpl) issueAccessToken(userID int64) (model.Tokens, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	var exp time.Time
	if s.accessTTL > 0 {
		exp = now.Add(s.accessTTL)
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// UserFromToken verifies HS256 signature and expiry, then loads the subject.
func (s *AuthServiceImpl) UserFromToken(ctx context.Context, token string) (*model.User, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, errs.ErrInactive
	}
	return u, nil
}
