package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Auth providers
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Config holds the service configuration read from the environment
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	StoreBackend     string        `envconfig:"STORE_BACKEND" default:"mongo"`
	MongoURI         string        `envconfig:"MONGO_URI"`
	MongoDatabase    string        `envconfig:"MONGO_DATABASE" default:"woventales"`
	PostgresConnStr  string        `envconfig:"POSTGRES_CONN_STR"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`

	AuthProvider            string `envconfig:"AUTH_PROVIDER" default:"jwt"`
	JWTSecret               string `envconfig:"JWT_SECRET"`
	FirebaseCredentialsPath string `envconfig:"FIREBASE_CREDENTIALS_PATH" default:"./firebase_credentials.json"`
	FirebaseProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseCheckRevoked    bool   `envconfig:"FIREBASE_CHECK_REVOKED" default:"false"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

// Load reads .env when present and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations envconfig tags cannot express
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
		if c.PostgresConnStr == "" {
			return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET environment variable not set")
		}
	case AuthFirebase:
		if c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable not set")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}
	return nil
}
