package config

// EnvPrefix is handed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "FISHIT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PaymentFlowGateway = "gateway"
	PaymentFlowManual  = "manual"
)

const (
	EnvAppEnv        = "FISHIT_APP_ENV"
	EnvPort          = "FISHIT_APP_PORT"
	EnvDBDSN         = "FISHIT_DB_DSN"
	EnvDBHost        = "FISHIT_DB_HOST"
	EnvDBUser        = "FISHIT_DB_USER"
	EnvDBName        = "FISHIT_DB_NAME"
	EnvUseSQLite     = "FISHIT_USE_SQLITE"
	EnvRedisURL      = "FISHIT_REDIS_URL"
	EnvJWTSecret     = "FISHIT_JWT_SECRET"
	EnvJWTIssuer     = "FISHIT_JWT_ISSUER"
	EnvJWTExpMins    = "FISHIT_JWT_EXPIRATION_MINUTES"
	EnvPaymentFlow   = "FISHIT_PAYMENT_FLOW"
	EnvIPaymuVA      = "FISHIT_IPAYMU_VA"
	EnvIPaymuAPIKey  = "FISHIT_IPAYMU_API_KEY"
	EnvCORSOrigins   = "FISHIT_CORS_ALLOWED_ORIGINS"
	EnvRateGeneral   = "FISHIT_RATE_LIMIT_GENERAL_PER_MINUTE"
	EnvAdminEmail    = "FISHIT_ADMIN_EMAIL"
	EnvAdminPassword = "FISHIT_ADMIN_PASSWORD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
