package auth_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) IncrementTokenVersion(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// bcryptのコストを下げてテストを速くする
func testHasher() *auth.BcryptPasswordHasher { return auth.NewBcryptPasswordHasher(bcrypt.MinCost) }

// =====================
// Register
// =====================

func TestRegister_Success_NormalizesEmail(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == "alice@example.com" && u.Role == model.RoleUser && u.PasswordHash != "correct horse battery"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.User).ID = 10
	}).Return(nil)

	uc := auth.NewRegisterUserUsecase(repo, testHasher(), fixedClock{time.Now()})
	out, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "  Alice@Example.com ",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.User.ID)
	assert.True(t, out.User.IsActive)
	repo.AssertExpectations(t)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "correct horse battery", auth.ErrInvalidEmailFormat},
		{"short password", "a@example.com", "short", auth.ErrPasswordTooShort},
		{"weak password", "a@example.com", "123456789012", auth.ErrWeakPassword},
		{"contains email name", "alice@example.com", "Alice-secret-2024", auth.ErrWeakPassword},
		{"display name form", "Alice <alice@example.com>", "correct horse battery", auth.ErrInvalidEmailFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			uc := auth.NewRegisterUserUsecase(repo, testHasher(), auth.SystemClock{})
			_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, tt.want)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{ID: 1}, nil)

	uc := auth.NewRegisterUserUsecase(repo, testHasher(), auth.SystemClock{})
	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "a@example.com", Password: "correct horse battery"})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
}

func TestRegister_ConcurrentDuplicateOnInsert(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(repository.ErrConflict)

	uc := auth.NewRegisterUserUsecase(repo, testHasher(), auth.SystemClock{})
	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "a@example.com", Password: "correct horse battery"})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	repo.AssertExpectations(t)
}

// =====================
// Login
// =====================

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	hashed, err := testHasher().Hash("correct horse battery")
	require.NoError(t, err)

	user := &model.User{ID: 3, Email: "a@example.com", PasswordHash: hashed, Role: model.RoleAdmin, TokenVersion: 2, IsActive: true}
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "a@example.com").Return(user, nil)
	repo.On("Update", mock.Anything, user).Return(nil)

	now := time.Now()
	uc := auth.NewLoginUsecase(repo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer("secret", 15*time.Minute), fixedClock{now})

	out, err := uc.Execute(context.Background(), auth.LoginInput{Email: "A@example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, 900, out.Token.ExpiresIn)
	assert.Equal(t, 2, out.Token.TokenVersion)
	require.NotNil(t, user.LastLoginAt)

	parsed, err := jwt.Parse(out.Token.AccessToken, func(tok *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, strconv.FormatInt(3, 10), claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.Equal(t, float64(2), claims["tv"])
}

func TestLogin_Failures(t *testing.T) {
	hashed, err := testHasher().Hash("correct horse battery")
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("FindByEmail", mock.Anything, "x@example.com").Return(nil, repository.ErrUserNotFound)
		uc := auth.NewLoginUsecase(repo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer("s", 0), auth.SystemClock{})
		_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "x@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{ID: 1, PasswordHash: hashed, IsActive: true}, nil)
		uc := auth.NewLoginUsecase(repo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer("s", 0), auth.SystemClock{})
		_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "a@example.com", Password: "nope"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("inactive user", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{ID: 1, PasswordHash: hashed, IsActive: false}, nil)
		uc := auth.NewLoginUsecase(repo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer("s", 0), auth.SystemClock{})
		_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "a@example.com", Password: "correct horse battery"})
		assert.ErrorIs(t, err, auth.ErrUserInactive)
	})
}

// =====================
// ForceLogout
// =====================

func TestForceLogout(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("IncrementTokenVersion", mock.Anything, int64(5)).Return(4, nil)
	repo.On("IncrementTokenVersion", mock.Anything, int64(6)).Return(0, repository.ErrUserNotFound)

	uc := auth.NewForceLogoutUsecase(repo)

	out, err := uc.Execute(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, auth.ForceLogoutOutput{UserID: 5, NewTokenVersion: 4}, out)

	_, err = uc.Execute(context.Background(), 6)
	assert.True(t, errors.Is(err, repository.ErrUserNotFound))

	_, err = uc.Execute(context.Background(), 0)
	assert.ErrorIs(t, err, auth.ErrInvalidUserID)
}
