package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"16"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT"` // unset: EvaluationBudget plus writeTimeoutSlack
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken    string `env:"AUTH_TOKEN"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ErrorLogPath string `env:"ERROR_LOG_PATH" envDefault:"./logs/errors.log"`

	// Audio ingestion
	TempDir       string        `env:"TEMP_DIR"`
	AudioDir      string        `env:"AUDIO_DIR"`
	FFmpegPath    string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	MaxAudioBytes int64         `env:"MAX_AUDIO_BYTES" envDefault:"26214400"`

	// Scoring
	AcousticPolicy     string  `env:"ACOUSTIC_POLICY" envDefault:"volume"`
	SilenceThreshold   float64 `env:"SILENCE_THRESHOLD" envDefault:"45"`
	LanguageModelsFile string  `env:"LANGUAGE_MODELS_FILE"`

	// Transcription service
	TranscriptionURL          string        `env:"TRANSCRIPTION_URL" envDefault:"https://api.assemblyai.com/v2"`
	TranscriptionAPIKey       string        `env:"TRANSCRIPTION_API_KEY"`
	TranscriptionPollInterval time.Duration `env:"TRANSCRIPTION_POLL_INTERVAL" envDefault:"3s"`
	TranscriptionMaxAttempts  int           `env:"TRANSCRIPTION_MAX_ATTEMPTS" envDefault:"20"`
	TranscriptionTimeout      time.Duration `env:"TRANSCRIPTION_TIMEOUT" envDefault:"15s"`

	// Evaluation pool
	EvalWorkers   int `env:"EVAL_WORKERS" envDefault:"8"`
	EvalQueueSize int `env:"EVAL_QUEUE_SIZE" envDefault:"64"`

	// Assessment events (optional)
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"speakscore"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"speakscore"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional S3-compatible source for s3:// audio URLs.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Enabled reports whether enough S3 settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// writeTimeoutSlack covers queueing, scoring and persistence on top of the
// network-bound steps counted by EvaluationBudget.
const writeTimeoutSlack = 30 * time.Second

// EvaluationBudget is the longest a single evaluation can spend on the network:
// one recording fetch, the transcription submit and every poll with its wait.
func (c *Config) EvaluationBudget() time.Duration {
	polls := time.Duration(c.TranscriptionMaxAttempts) * (c.TranscriptionPollInterval + c.TranscriptionTimeout)
	return c.FetchTimeout + c.TranscriptionTimeout + polls
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile        string
	HTTPAddr       string
	LogLevel       string
	DatabaseURL    string
	AcousticPolicy string
	TempDir        string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.AcousticPolicy != "" {
		cfg.AcousticPolicy = overrides.AcousticPolicy
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.EvaluationBudget() + writeTimeoutSlack
	}

	return cfg, nil
}
