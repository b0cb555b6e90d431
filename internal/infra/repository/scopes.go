package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgresのunique_violation
const pgUniqueViolation = "23505"

// page/limitからOFFSET/LIMITを付ける。不正値は呼び出し側で弾いておく
func paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

// created_atの期間（両端含む）。nilは無制限
func createdBetween(from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}

// UPDATE/DELETEの結果を見て、0件ならnotFoundにする
func affected(res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}

// First/Takeのgorm.ErrRecordNotFoundをドメインのエラーに寄せる
func mapNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// 一意制約違反だけconflictに置き換える
func mapUniqueViolation(err, conflict error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return conflict
	}
	return err
}
