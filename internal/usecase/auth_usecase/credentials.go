package auth

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 12

var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWeakPassword       = errors.New("weak password")
)

// 小文字で比較する
var weakPasswords = map[string]struct{}{
	"password":     {},
	"password123":  {},
	"123456789012": {},
	"1234567890":   {},
	"qwertyuiop":   {},
	"letmein":      {},
	"admin123":     {},
	"iloveyou":     {},
}

// 長さ、よくある値、メールのローカル部を含むもの、の順に見る
func checkPassword(email, plain string) error {
	if utf8.RuneCountInString(plain) < minPasswordLen {
		return ErrPasswordTooShort
	}
	lower := strings.ToLower(strings.TrimSpace(plain))
	if _, ok := weakPasswords[lower]; ok {
		return ErrWeakPassword
	}
	if local, _, ok := strings.Cut(email, "@"); ok && len(local) >= 4 && strings.Contains(lower, local) {
		return ErrWeakPassword
	}
	return nil
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

type BcryptPasswordHasher struct {
	cost int
}

// cost<=0ならbcrypt.DefaultCost
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost: cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	return string(b), err
}

type BcryptPasswordVerifier struct{}

func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
