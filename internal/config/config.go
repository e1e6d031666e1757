package config

import (
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/tasktracker/pkg/config"
	"github.com/Skotchmaster/tasktracker/pkg/db"
)

type AdminConfig struct {
	Username string
	Email    string
	Password string
}

type Config struct {
	ServiceName string
	Port        string
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret  []byte
	JWTTTL     time.Duration
	BcryptCost int

	CookieSecure bool
	CSRFEnabled  bool
	CORSOrigins  []string

	Admin         AdminConfig
	PruneInterval time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		ServiceName: config.EnvDefault("SERVICE_NAME", "tasktracker"),
		Port:        config.EnvDefault("SERVER_PORT", "8080"),
		LogLevel:    config.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    config.EnvDefault("DB_DRIVER", db.DriverPostgres),
		DatabaseURL: config.EnvDefault("DATABASE_URL", ""),

		JWTSecret:  []byte(config.EnvDefault("JWT_SECRET", "")),
		JWTTTL:     config.EnvDurationDefault("JWT_TTL", 15*time.Minute),
		BcryptCost: config.EnvIntDefault("BCRYPT_COST", bcrypt.DefaultCost),

		CookieSecure: config.EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:  config.EnvBoolDefault("CSRF_ENABLED", false),
		CORSOrigins:  config.CSV(config.EnvDefault("CORS_ALLOWED_ORIGINS", "")),

		Admin: AdminConfig{
			Username: config.EnvDefault("TODOLIST_ADMIN_USERNAME", "admin"),
			Email:    config.EnvDefault("TODOLIST_ADMIN_EMAIL", "admin@example.pl"),
			Password: config.EnvDefault("TODOLIST_ADMIN_PASSWORD", "admin"),
		},
		PruneInterval: config.EnvDurationDefault("REVOKED_PRUNE_INTERVAL", time.Hour),

		KafkaBrokers: config.CSV(config.EnvDefault("KAFKA_BROKERS", "")),

		ESURL:      config.EnvDefault("ES_URL", ""),
		ESUser:     config.EnvDefault("ES_USER", ""),
		ESPassword: config.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    config.EnvDefault("ES_INDEX", "tasks"),
	}

	var req config.Required
	req.NonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	req.NonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	if err := req.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
