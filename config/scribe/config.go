package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON  bool   `env:"LOG_JSON" env-default:"false"`

	Discord   DiscordConfig
	Gemini    GeminiConfig
	Speech    SpeechConfig
	Recording RecordingConfig
	Database  DatabaseConfig
}

type DiscordConfig struct {
	Token   string `env:"DISCORD_TOKEN" env-required:"true"`
	GuildID string `env:"DISCORD_GUILD_ID"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	Model   string `env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	BaseURL string `env:"GEMINI_BASE_URL"`
}

type SpeechConfig struct {
	Language        string `env:"SPEECH_LANGUAGE" env-default:"en-US"`
	CredentialsFile string `env:"SPEECH_CREDENTIALS_FILE"`
	APIKey          string `env:"SPEECH_API_KEY"`
}

type RecordingConfig struct {
	Dir           string `env:"RECORDINGS_DIR" env-default:"."`
	ChunkSeconds  int    `env:"CHUNK_SECONDS" env-default:"50"`
	MinAudioBytes int64  `env:"MIN_AUDIO_BYTES" env-default:"1024"`
}

// ChunkLength is the longest stretch of audio sent to the recognizer in one call.
func (r RecordingConfig) ChunkLength() time.Duration {
	return time.Duration(r.ChunkSeconds) * time.Second
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" env-default:"sqlite"`
	Path     string `env:"DB_PATH" env-default:"transcripts.db"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Name     string `env:"DB_NAME"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Name,
		d.Password,
		d.SSLMode,
	)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.Recording.ChunkSeconds <= 0 {
		return fmt.Errorf("CHUNK_SECONDS must be positive, got %d", c.Recording.ChunkSeconds)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	return nil
}
