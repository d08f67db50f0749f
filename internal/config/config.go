package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env           string        `env:"ENV" env-default:"local"`
	ServerAddress string        `env:"SERVER_ADDRESS" env-default:":8080"`
	JWTSecret     string        `env:"JWT_SECRET" env-default:"your-secret-key-change-in-production"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" env-default:"24h"`

	// StoreDriver selects persistence: "memory" (optionally snapshotted to DataDir) or "mongo".
	StoreDriver string `env:"STORE_DRIVER" env-default:"memory"`
	DataDir     string `env:"DATA_DIR" env-default:""`
	MongoURI    string `env:"MONGO_URI" env-default:""`
	MongoDB     string `env:"MONGO_DB" env-default:"huddle"`

	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID" env-default:""`
	FirebaseCredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON" env-default:""`

	AvatarBackend    string `env:"AVATAR_BACKEND" env-default:"local"`
	UploadDir        string `env:"UPLOAD_DIR" env-default:"./uploads"`
	PublicBaseURL    string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	GCSBucket        string `env:"GCS_BUCKET" env-default:""`
	AvatarModeration bool   `env:"AVATAR_MODERATION" env-default:"false"`
	S3Bucket         string `env:"S3_BUCKET" env-default:""`
	AWSRegion        string `env:"AWS_REGION" env-default:"us-east-1"`

	RedisAddr     string `env:"REDIS_ADDR" env-default:""`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	NATSURL string `env:"NATS_URL" env-default:""`

	GeocoderURL        string        `env:"GEOCODER_URL" env-default:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent  string        `env:"GEOCODER_USER_AGENT" env-default:"huddle-backend/1.0"`
	GeocodeTimeout     time.Duration `env:"GEOCODE_TIMEOUT" env-default:"5s"`
	GeocodeCacheTTL    time.Duration `env:"GEOCODE_CACHE_TTL" env-default:"24h"`
	AddressDebounce    time.Duration `env:"ADDRESS_DEBOUNCE" env-default:"1s"`
	StrictAddressCheck bool          `env:"STRICT_ADDRESS_CHECK" env-default:"true"`

	Timezone         string `env:"TIMEZONE" env-default:"Local"`
	ChatHistoryLimit int    `env:"CHAT_HISTORY_LIMIT" env-default:"200"`

	location *time.Location
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("cannot load config: " + err.Error())
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AvatarBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when AVATAR_BACKEND=gcs")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when AVATAR_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown AVATAR_BACKEND %q", c.AvatarBackend)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.ChatHistoryLimit <= 0 {
		c.ChatHistoryLimit = 200
	}
	return nil
}

// Location is the wall-clock zone that event dates and times are interpreted in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
