package service

import (
	"context"
	"testing"
	"time"

	"writingstuff/internal/auth/model"
	"writingstuff/internal/auth/repository"
	"writingstuff/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *AuthService {
	return NewAuthService(repository.NewMemoryAccountRepository(), "test-secret", 30*time.Minute)
}

func register(t *testing.T, s *AuthService) *model.Account {
	t.Helper()
	a, err := s.Register(context.Background(), model.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return a
}

func TestRegisterValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	cases := []model.RegisterRequest{
		{Username: " ", Email: "a@x.io", Password: "longenough"},
		{Username: "a", Email: "not-an-email", Password: "longenough"},
		{Username: "a", Email: "a@x.io", Password: "short"},
	}
	for _, c := range cases {
		_, err := s.Register(ctx, c)
		assert.ErrorIs(t, err, apperror.ErrInvalidArgument, "%+v", c)
	}
}

func TestRegisterNormalizesAndHashes(t *testing.T) {
	s := newService()
	a := register(t, s)

	assert.Equal(t, "alice@example.com", a.Email)
	assert.NotEqual(t, "correct horse", a.PasswordHash)
	assert.NotEmpty(t, a.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newService()
	register(t, s)

	_, err := s.Register(context.Background(), model.RegisterRequest{Username: "alice", Email: "other@x.io", Password: "longenough"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	s := newService()
	a := register(t, s)
	ctx := context.Background()

	for _, id := range []string{"alice", "alice@example.com", "ALICE@example.com"} {
		tok, err := s.Login(ctx, id, "correct horse")
		require.NoError(t, err, id)
		assert.Equal(t, "bearer", tok.TokenType)

		sub, err := s.Verify(ctx, tok.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, a.ID, sub)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	s := newService()
	register(t, s)
	ctx := context.Background()

	_, errWrongPass := s.Login(ctx, "alice", "wrong password")
	_, errNoUser := s.Login(ctx, "nobody", "correct horse")

	assert.ErrorIs(t, errWrongPass, apperror.ErrUnauthorized)
	assert.ErrorIs(t, errNoUser, apperror.ErrUnauthorized)
	assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := newService()
	register(t, s)
	ctx := context.Background()

	tok, err := s.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = s.Verify(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerifyRejectsForeignSignatureAndAlgorithm(t *testing.T) {
	s := newService()
	a := register(t, s)
	ctx := context.Background()

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   a.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := other.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)
	_, err = s.Verify(ctx, signed)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   a.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(ctx, unsigned)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerifyRejectsUnknownAccount(t *testing.T) {
	s := newService()
	tok, err := s.issue("ghost")
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
