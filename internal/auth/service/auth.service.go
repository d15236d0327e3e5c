package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"writingstuff/internal/auth/model"
	"writingstuff/internal/auth/repository"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService struct {
	Repo     repository.AccountRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(repo repository.AccountRepository, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{Repo: repo, secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.Account, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" {
		return nil, fmt.Errorf("username is required: %w", apperror.ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return nil, fmt.Errorf("email is not valid: %w", apperror.ErrInvalidArgument)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, apperror.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.Repo.Create(ctx, account); err != nil {
		return nil, err
	}
	logger.Sugar.Infof("Account %s registered", account.ID)
	return account, nil
}

// Login checks credentials and issues a token. identifier is tried as a
// username first, then as an email. Every failure looks the same to callers.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*model.TokenResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", apperror.ErrInvalidArgument)
	}

	account, err := s.Repo.FindByUsername(ctx, identifier)
	if errors.Is(err, apperror.ErrNotFound) {
		account, err = s.Repo.FindByEmail(ctx, strings.ToLower(identifier))
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("incorrect username or password: %w", apperror.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("incorrect username or password: %w", apperror.ErrUnauthorized)
	}
	return s.issue(account.ID)
}

func (s *AuthService) issue(accountID string) (*model.TokenResponse, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &model.TokenResponse{AccessToken: signed, TokenType: "bearer", ExpiresAt: expires.UTC()}, nil
}

// Verify resolves a bearer token to the account it was issued for. Tokens of
// accounts that no longer exist are rejected.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token: %w", apperror.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject: %w", apperror.ErrUnauthorized)
	}

	if _, err := s.Repo.FindByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("account no longer exists: %w", apperror.ErrUnauthorized)
		}
		return "", err
	}
	return claims.Subject, nil
}

func (s *AuthService) Me(ctx context.Context, accountID string) (*model.Account, error) {
	return s.Repo.FindByID(ctx, accountID)
}
