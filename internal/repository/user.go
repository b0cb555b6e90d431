package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 見つからないときはErrUserNotFoundを返す
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// force-logout用。+1後の値を返す
	IncrementTokenVersion(ctx context.Context, userID int64) (int, error)
}
