package config

// EnvPrefix is the envconfig prefix; individual fields carry explicit names
// so the prefix only guards against accidental collisions.
const EnvPrefix = "TERANGA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv    = "TERANGA_APP_ENV"
	EnvPort      = "TERANGA_APP_PORT"
	EnvDBDSN     = "TERANGA_DB_DSN"
	EnvDBHost    = "TERANGA_DB_HOST"
	EnvDBUser    = "TERANGA_DB_USER"
	EnvDBName    = "TERANGA_DB_NAME"
	EnvRedisURL  = "TERANGA_REDIS_URL"
	EnvJWTSecret = "TERANGA_JWT_SECRET"
	EnvJWTIssuer = "TERANGA_JWT_ISSUER"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
