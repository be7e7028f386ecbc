package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Engine    EngineConfig
	Events    EventsConfig
	Storage   StorageConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	EnhancePerHour  int
	UploadPerHour   int
	FeedbackPerHour int
}

// EngineConfig locates the DSP binaries and the local working
// directories the pipeline uses.
type EngineConfig struct {
	FFmpegBin  string
	FFprobeBin string
	TimeoutSec int
	ScratchDir string
	OutputDir  string
	StagingDir string
}

type EventsConfig struct {
	RingSize int
	DBPath   string
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("engine.ffmpeg_bin", "FFMPEG_BIN")
	_ = viper.BindEnv("engine.ffprobe_bin", "FFPROBE_BIN")
	_ = viper.BindEnv("engine.timeout", "ENGINE_TIMEOUT")
	_ = viper.BindEnv("engine.scratch_dir", "SCRATCH_DIR")
	_ = viper.BindEnv("engine.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("engine.staging_dir", "STAGING_DIR")
	_ = viper.BindEnv("events.ring_size", "EVENTS_RING_SIZE")
	_ = viper.BindEnv("events.db_path", "EVENTS_DB_PATH")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.enhance_per_hour", 20)
	viper.SetDefault("ratelimit.upload_per_hour", 30)
	viper.SetDefault("ratelimit.feedback_per_hour", 60)

	// Engine defaults
	viper.SetDefault("engine.ffmpeg_bin", "ffmpeg")
	viper.SetDefault("engine.ffprobe_bin", "ffprobe")
	viper.SetDefault("engine.timeout", 300)
	viper.SetDefault("engine.scratch_dir", "./data/scratch")
	viper.SetDefault("engine.output_dir", "./data/outputs")
	viper.SetDefault("engine.staging_dir", "./data/staging")

	// Events defaults
	viper.SetDefault("events.ring_size", 200)
	viper.SetDefault("events.db_path", "./data/events.db")

	// Storage defaults
	viper.SetDefault("storage.region", "auto")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			EnhancePerHour:  viper.GetInt("ratelimit.enhance_per_hour"),
			UploadPerHour:   viper.GetInt("ratelimit.upload_per_hour"),
			FeedbackPerHour: viper.GetInt("ratelimit.feedback_per_hour"),
		},
		Engine: EngineConfig{
			FFmpegBin:  viper.GetString("engine.ffmpeg_bin"),
			FFprobeBin: viper.GetString("engine.ffprobe_bin"),
			TimeoutSec: viper.GetInt("engine.timeout"),
			ScratchDir: viper.GetString("engine.scratch_dir"),
			OutputDir:  viper.GetString("engine.output_dir"),
			StagingDir: viper.GetString("engine.staging_dir"),
		},
		Events: EventsConfig{
			RingSize: viper.GetInt("events.ring_size"),
			DBPath:   viper.GetString("events.db_path"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			Bucket:          viper.GetString("storage.bucket"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
