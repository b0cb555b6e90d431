package repository

import "errors"

var (
	// 対象の行が無い（0件更新も含む）
	ErrNotFound = errors.New("not found")
	// users専用。認証まわりで区別したいので別にしている
	ErrUserNotFound = errors.New("user not found")
	// 一意制約違反（emailなど）
	ErrConflict = errors.New("already exists")
)
