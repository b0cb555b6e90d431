package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type UserGormRepository struct {
	db *gorm.DB
}

func NewUserGormRepository(db *gorm.DB) *UserGormRepository {
	return &UserGormRepository{db: db}
}

// 同時登録でemailが重なったらErrConflict
func (r *UserGormRepository) Create(ctx context.Context, user *model.User) error {
	return mapUniqueViolation(r.db.WithContext(ctx).Create(user).Error, repo.ErrConflict)
}

func (r *UserGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserGormRepository) first(ctx context.Context, cond string, arg interface{}) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&u).Error; err != nil {
		return nil, mapNotFound(err, repo.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserGormRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// +1とその読み直しを1Txで行う
func (r *UserGormRepository) IncrementTokenVersion(ctx context.Context, id int64) (int, error) {
	var u model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ?", id).
			UpdateColumn("token_version", gorm.Expr("token_version + 1"))
		if err := affected(res, repo.ErrUserNotFound); err != nil {
			return err
		}
		return tx.Select("token_version").Where("id = ?", id).Take(&u).Error
	})
	if err != nil {
		return 0, err
	}
	return u.TokenVersion, nil
}
