package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Checkout CheckoutConfig
	PayDunya PayDunyaConfig
	CORS     CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TERANGA_APP_ENV" required:"true"`
	Port         string `envconfig:"TERANGA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TERANGA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TERANGA_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"TERANGA_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"TERANGA_DB_DSN"`

	Host     string `envconfig:"TERANGA_DB_HOST"`
	Port     int    `envconfig:"TERANGA_DB_PORT" default:"5432"`
	User     string `envconfig:"TERANGA_DB_USER"`
	Password string `envconfig:"TERANGA_DB_PASSWORD"`
	Name     string `envconfig:"TERANGA_DB_NAME"`
	SSLMode  string `envconfig:"TERANGA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TERANGA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TERANGA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TERANGA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TERANGA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TERANGA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TERANGA_REDIS_ADDR"`
	Password     string        `envconfig:"TERANGA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TERANGA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TERANGA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TERANGA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TERANGA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TERANGA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TERANGA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TERANGA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TERANGA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TERANGA_JWT_EXPIRATION_MINUTES" default:"480"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TERANGA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TERANGA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TERANGA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TERANGA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TERANGA_ARGON_KEY_LEN" default:"32"`
}

type CheckoutConfig struct {
	// DeliveryFee is the flat surcharge in XOF applied to delivery orders.
	DeliveryFee    int64         `envconfig:"TERANGA_DELIVERY_FEE" default:"1000"`
	OrderLockTTL   time.Duration `envconfig:"TERANGA_ORDER_LOCK_TTL" default:"15s"`
	CallbackDedupe time.Duration `envconfig:"TERANGA_CALLBACK_DEDUPE_TTL" default:"72h"`
}

type PayDunyaConfig struct {
	BaseURL     string        `envconfig:"TERANGA_PAYDUNYA_BASE_URL" default:"https://app.paydunya.com"`
	MasterKey   string        `envconfig:"TERANGA_PAYDUNYA_MASTER_KEY"`
	PrivateKey  string        `envconfig:"TERANGA_PAYDUNYA_PRIVATE_KEY"`
	Token       string        `envconfig:"TERANGA_PAYDUNYA_TOKEN"`
	Mode        string        `envconfig:"TERANGA_PAYDUNYA_MODE" default:"test"`
	StoreName   string        `envconfig:"TERANGA_PAYDUNYA_STORE_NAME" default:"Teranga Eats"`
	CallbackURL string        `envconfig:"TERANGA_PAYDUNYA_CALLBACK_URL"`
	ReturnURL   string        `envconfig:"TERANGA_PAYDUNYA_RETURN_URL"`
	CancelURL   string        `envconfig:"TERANGA_PAYDUNYA_CANCEL_URL"`
	Timeout     time.Duration `envconfig:"TERANGA_PAYDUNYA_TIMEOUT" default:"15s"`
}

// Environment returns the normalized PayDunya environment (test/live).
func (p PayDunyaConfig) Environment() string {
	mode := strings.TrimSpace(strings.ToLower(p.Mode))
	if mode == "" {
		return "test"
	}
	return mode
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TERANGA_CORS_ALLOWED_ORIGINS"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
