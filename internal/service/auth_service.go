package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/postdesk/internal/blogapi"
)

var (
	ErrCredentialsRequired = errors.New("email and password are required")
	ErrNotAdmin            = errors.New("this account cannot edit posts")
	ErrMissingToken        = errors.New("login response did not include a token")
)

// Authenticator exchanges credentials with the blog API.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*blogapi.UserInfo, error)
}

// AuthService signs editors in against the blog API.
type AuthService struct {
	api Authenticator
	now func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(api Authenticator) *AuthService {
	return &AuthService{api: api, now: time.Now}
}

// Login returns the user when the credentials are valid and the account is an admin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*blogapi.UserInfo, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.Token) == "" {
		return nil, ErrMissingToken
	}
	if !user.Admin {
		return nil, ErrNotAdmin
	}
	return user, nil
}

// TokenExpired reports whether a JWT's exp claim has passed. Tokens that are not
// JWTs, or carry no exp, are left for the API to judge.
func (s *AuthService) TokenExpired(token string) bool {
	return TokenExpiredAt(token, s.now())
}

// TokenExpiredAt is TokenExpired with an explicit clock.
func TokenExpiredAt(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	// 签名由博客 API 校验，这里只读取过期时间
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
