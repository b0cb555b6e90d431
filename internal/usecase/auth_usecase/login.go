package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

type LoginInput struct {
	Email    string
	Password string
}

// expires_inは秒
type JwtAccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type LoginOutput struct {
	User  UserDTO        `json:"user"`
	Token JwtAccessToken `json:"token"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

type AccessTokenIssuer interface {
	Issue(userID int64, role model.Role, tokenVersion int, now time.Time) (token string, expiresAt time.Time, err error)
}

type LoginUsecase struct {
	userRepo repository.UserRepository
	verifier PasswordVerifier
	issuer   AccessTokenIssuer
	clock    Clock
}

func NewLoginUsecase(
	userRepo repository.UserRepository,
	verifier PasswordVerifier,
	issuer AccessTokenIssuer,
	clock Clock,
) *LoginUsecase {
	return &LoginUsecase{
		userRepo: userRepo,
		verifier: verifier,
		issuer:   issuer,
		clock:    clock,
	}
}

// パスワード照合の後で停止チェック。未登録と不一致は区別しない
func (u *LoginUsecase) Execute(ctx context.Context, in LoginInput) (LoginOutput, error) {
	var out LoginOutput

	user, err := u.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return out, ErrInvalidCredentials
	case err != nil:
		return out, err
	}

	if !u.verifier.Verify(in.Password, user.PasswordHash) {
		return out, ErrInvalidCredentials
	}
	if !user.IsActive {
		return out, ErrUserInactive
	}

	//AccessToken発行
	now := u.clock.Now()
	accessToken, accessExp, err := u.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return out, err
	}

	//最終ログイン時刻更新
	user.LastLoginAt = &now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return out, err
	}

	out.User = toUserDTO(user)
	out.Token = JwtAccessToken{
		AccessToken:  accessToken,
		ExpiresIn:    int(accessExp.Sub(now).Seconds()),
		TokenVersion: user.TokenVersion,
	}
	return out, nil
}
