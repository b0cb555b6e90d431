package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

var ErrEmailAlreadyExists = errors.New("email already exists")

type RegisterUserInput struct {
	Email    string
	Password string
}

type RegisterUserOutput struct {
	User UserDTO `json:"user"`
}

// password_hashは含めない
type UserDTO struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role"`
	TokenVersion int        `json:"token_version"`
	IsActive     bool       `json:"is_active"`
}

func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}

// 会員登録。新規ユーザーは常にUSER/有効
type RegisterUserUsecase struct {
	users  repository.UserRepository
	hasher PasswordHasher
	clock  Clock
}

func NewRegisterUserUsecase(users repository.UserRepository, hasher PasswordHasher, clock Clock) *RegisterUserUsecase {
	return &RegisterUserUsecase{users: users, hasher: hasher, clock: clock}
}

func (u *RegisterUserUsecase) Execute(ctx context.Context, in RegisterUserInput) (RegisterUserOutput, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return RegisterUserOutput{}, err
	}
	if err := checkPassword(email, in.Password); err != nil {
		return RegisterUserOutput{}, err
	}

	switch _, err := u.users.FindByEmail(ctx, email); {
	case err == nil:
		return RegisterUserOutput{}, ErrEmailAlreadyExists
	case !errors.Is(err, repository.ErrUserNotFound):
		return RegisterUserOutput{}, err
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return RegisterUserOutput{}, err
	}

	now := u.clock.Now()
	user := &model.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RegisterUserOutput{}, ErrEmailAlreadyExists
		}
		return RegisterUserOutput{}, err
	}
	return RegisterUserOutput{User: toUserDTO(user)}, nil
}

// 小文字化してから "a@b" 形式だけを受け付ける（表示名付きは不可）
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		return "", ErrInvalidEmailFormat
	}
	return email, nil
}
