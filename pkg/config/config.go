package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Payment       PaymentConfig
	IPaymu        IPaymuConfig
	Sendgrid      SendgridConfig
	Verification  VerificationConfig
	Cron          CronConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FISHIT_APP_ENV" required:"true"`
	Port         string `envconfig:"FISHIT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FISHIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FISHIT_LOG_WARN_STACK" default:"false"`
	// PublicBaseURL is the storefront origin used in emails.
	PublicBaseURL string `envconfig:"FISHIT_PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FISHIT_DB_DSN"`
	Driver string `envconfig:"FISHIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FISHIT_DB_HOST"`
	LegacyPort     int    `envconfig:"FISHIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FISHIT_DB_USER"`
	LegacyPassword string `envconfig:"FISHIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FISHIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FISHIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FISHIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FISHIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FISHIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FISHIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FISHIT_REDIS_URL"`
	Address      string        `envconfig:"FISHIT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FISHIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FISHIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FISHIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FISHIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FISHIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FISHIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FISHIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FISHIT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FISHIT_JWT_ISSUER" default:"fishit-marketplace"`
	ExpirationMinutes int    `envconfig:"FISHIT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type PasswordConfig struct {
	Iterations int `envconfig:"FISHIT_PASSWORD_ITERATIONS" default:"100000"`
	SaltLen    int `envconfig:"FISHIT_PASSWORD_SALT_LEN" default:"16"`
	KeyLen     int `envconfig:"FISHIT_PASSWORD_KEY_LEN" default:"64"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FISHIT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
	LoginEmailLimit    int           `envconfig:"FISHIT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FISHIT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"0"`
	RegisterWindow     time.Duration `envconfig:"FISHIT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterEmailLimit int           `envconfig:"FISHIT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FISHIT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"0"`
}

// RateLimitConfig holds the per-minute ceilings for each in-memory tier.
type RateLimitConfig struct {
	General     int           `envconfig:"FISHIT_RATE_LIMIT_GENERAL_PER_MINUTE" default:"100"`
	Strict      int           `envconfig:"FISHIT_RATE_LIMIT_STRICT_PER_MINUTE" default:"20"`
	Auth        int           `envconfig:"FISHIT_RATE_LIMIT_AUTH_PER_MINUTE" default:"10"`
	Transaction int           `envconfig:"FISHIT_RATE_LIMIT_TRANSACTION_PER_MINUTE" default:"10"`
	Search      int           `envconfig:"FISHIT_RATE_LIMIT_SEARCH_PER_MINUTE" default:"30"`
	IdleTTL     time.Duration `envconfig:"FISHIT_RATE_LIMIT_IDLE_TTL" default:"10m"`
	Sweep       time.Duration `envconfig:"FISHIT_RATE_LIMIT_SWEEP_INTERVAL" default:"1m"`
	// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers name the client. Empty means key on the socket peer.
	TrustedProxies []string `envconfig:"FISHIT_TRUSTED_PROXIES"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FISHIT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FISHIT_AUTO_MIGRATE" default:"false"`
}

type PaymentConfig struct {
	Flow                  string        `envconfig:"FISHIT_PAYMENT_FLOW" default:"gateway"`
	ManualTransferTimeout time.Duration `envconfig:"FISHIT_PAYMENT_MANUAL_DEADLINE" default:"2h"`
	GatewayTimeout        time.Duration `envconfig:"FISHIT_PAYMENT_GATEWAY_DEADLINE" default:"24h"`
	CallbackDedupeTTL     time.Duration `envconfig:"FISHIT_PAYMENT_CALLBACK_DEDUPE_TTL" default:"24h"`
}

func (p PaymentConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Flow)) {
	case PaymentFlowGateway, PaymentFlowManual:
		return nil
	}
	return fmt.Errorf("%s must be one of %q or %q", EnvPaymentFlow, PaymentFlowGateway, PaymentFlowManual)
}

type IPaymuConfig struct {
	VA          string `envconfig:"FISHIT_IPAYMU_VA"`
	APIKey      string `envconfig:"FISHIT_IPAYMU_API_KEY"`
	BaseURL     string `envconfig:"FISHIT_IPAYMU_BASE_URL" default:"https://sandbox.ipaymu.com"`
	ReturnURL   string `envconfig:"FISHIT_IPAYMU_RETURN_URL"`
	CancelURL   string `envconfig:"FISHIT_IPAYMU_CANCEL_URL"`
	NotifyURL   string `envconfig:"FISHIT_IPAYMU_NOTIFY_URL"`
	ExpiryHours int    `envconfig:"FISHIT_IPAYMU_EXPIRY_HOURS" default:"24"`
}

// Enabled reports whether credentials for the gateway are present.
func (c IPaymuConfig) Enabled() bool {
	return strings.TrimSpace(c.VA) != "" && strings.TrimSpace(c.APIKey) != ""
}

type SendgridConfig struct {
	APIKey      string `envconfig:"FISHIT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"FISHIT_SENDGRID_FROM_EMAIL" default:"no-reply@fishit.local"`
	FromName    string `envconfig:"FISHIT_SENDGRID_FROM_NAME" default:"Fishit Marketplace"`
}

type VerificationConfig struct {
	TokenTTL        time.Duration `envconfig:"FISHIT_VERIFICATION_TOKEN_TTL" default:"24h"`
	MaxResendPerDay int           `envconfig:"FISHIT_VERIFICATION_MAX_RESEND" default:"5"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FISHIT_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"FISHIT_CRON_LOCK_TTL" default:"4m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FISHIT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type AdminSeedConfig struct {
	Username string `envconfig:"FISHIT_ADMIN_USERNAME" default:"admin"`
	Email    string `envconfig:"FISHIT_ADMIN_EMAIL"`
	Password string `envconfig:"FISHIT_ADMIN_PASSWORD"`
}

// LoadAdminSeed reads the admin bootstrap credentials.
func LoadAdminSeed() (*AdminSeedConfig, error) {
	var cfg AdminSeedConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing admin seed config: %w", err)
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%s and %s are required", EnvAdminEmail, EnvAdminPassword)
	}
	return &cfg, nil
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:fishit.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
