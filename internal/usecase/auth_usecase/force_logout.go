package auth

import (
	"context"
	"errors"

	"storefront/internal/repository"
)

type ForceLogoutOutput struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

var ErrInvalidUserID = errors.New("invalid user id")

// token_versionを上げて、発行済みのアクセストークンを全部無効にする
type ForceLogoutUsecase struct {
	userRepo repository.UserRepository
}

func NewForceLogoutUsecase(userRepo repository.UserRepository) *ForceLogoutUsecase {
	return &ForceLogoutUsecase{userRepo: userRepo}
}

func (u *ForceLogoutUsecase) Execute(ctx context.Context, targetUserID int64) (ForceLogoutOutput, error) {
	if targetUserID <= 0 {
		return ForceLogoutOutput{}, ErrInvalidUserID
	}
	tv, err := u.userRepo.IncrementTokenVersion(ctx, targetUserID)
	if err != nil {
		return ForceLogoutOutput{}, err
	}
	return ForceLogoutOutput{UserID: targetUserID, NewTokenVersion: tv}, nil
}
