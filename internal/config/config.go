package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string
	DBMaxOpenConns   int

	JWTSecret      string        // JWT署名シークレット
	AccessTokenTTL time.Duration // アクセストークンの有効期限

	FEURL string // フロントURL（CORSで使う）

	MoMo MoMoConfig

	RedisAddr string // 空ならキャッシュ無し

	KafkaBrokers []string // 空ならイベント発行無し
	KafkaTopic   string

	RateLimitRPS   float64
	RateLimitBurst int
}

// モバイルマネー決済プロバイダの設定
type MoMoConfig struct {
	BaseURL         string
	ClientID        string // API user
	ClientSecret    string // API key
	SubscriptionKey string
	TargetEnv       string
	Currency        string
	Timeout         time.Duration
	CallbackURL     string
	WebhookSecret   string
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	maxOpen, err := atoiDefault("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return Config{}, err
	}
	accessTTL, err := durationDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	momoTimeout, err := durationDefault("MOMO_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	burst, err := atoiDefault("RATE_LIMIT_BURST", 20)
	if err != nil {
		return Config{}, err
	}
	rps, err := floatDefault("RATE_LIMIT_RPS", 10)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "dev"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		DBMaxOpenConns:   maxOpen,

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: accessTTL,

		FEURL: os.Getenv("FE_URL"),

		MoMo: MoMoConfig{
			BaseURL:         strings.TrimRight(getenv("MOMO_BASE_URL", "https://sandbox.momodeveloper.mtn.com"), "/"),
			ClientID:        os.Getenv("MOMO_CLIENT_ID"),
			ClientSecret:    os.Getenv("MOMO_CLIENT_SECRET"),
			SubscriptionKey: os.Getenv("MOMO_SUBSCRIPTION_KEY"),
			TargetEnv:       getenv("MOMO_TARGET_ENV", "sandbox"),
			Currency:        getenv("MOMO_CURRENCY", "XAF"),
			Timeout:         momoTimeout,
			CallbackURL:     os.Getenv("MOMO_CALLBACK_URL"),
			WebhookSecret:   os.Getenv("MOMO_WEBHOOK_SECRET"),
		},

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "order-events"),

		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv != "dev" && cfg.GoEnv != "prod" && cfg.GoEnv != "test" {
		return Config{}, fmt.Errorf("GO_ENV must be dev, test or prod")
	}
	if len(cfg.MoMo.Currency) != 3 {
		return Config{}, fmt.Errorf("MOMO_CURRENCY must be a 3-letter code")
	}
	//本番はwebhook署名必須
	if cfg.IsProd() && cfg.MoMo.WebhookSecret == "" {
		return Config{}, fmt.Errorf("MOMO_WEBHOOK_SECRET is required in prod")
	}

	return cfg, nil
}

// gorm/pgx向けのDSN
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration (e.g. 15s): %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
